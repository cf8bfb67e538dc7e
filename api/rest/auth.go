package rest

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/studymon/server/cache"
	"github.com/studymon/server/config"
	"github.com/studymon/server/game/battle"
	mw "github.com/studymon/server/middleware"
	"github.com/studymon/server/model"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AuthHandler handles account signup, login and logout.
type AuthHandler struct {
	db     *gorm.DB
	cache  cache.Cache
	sec    config.SecurityConfig
	cost   int
	logger *zap.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(db *gorm.DB, c cache.Cache, sec config.SecurityConfig, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sec.JWTTTLH <= 0 {
		sec.JWTTTLH = 72 * time.Hour
	}
	return &AuthHandler{db: db, cache: c, sec: sec, cost: bcrypt.DefaultCost, logger: logger}
}

type signupRequest struct {
	Email    string `json:"email" binding:"required,email,max=128"`
	Password string `json:"password" binding:"required,min=6,max=64"`
	Nickname string `json:"nickname" binding:"max=32"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) enabled(c *gin.Context) bool {
	if h.sec.JWTSecret == "" {
		writeError(c, battle.NewError(battle.CodeUnavailable, "authentication is disabled"))
		return false
	}
	return true
}

// Signup handles POST /api/auth/signup.
func (h *AuthHandler) Signup(c *gin.Context) {
	if !h.enabled(c) {
		return
	}
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "a valid email and a password of at least 6 characters are required")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	nickname := req.Nickname
	if nickname == "" {
		nickname = strings.SplitN(email, "@", 2)[0]
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.cost)
	if err != nil {
		writeError(c, err)
		return
	}
	user := model.User{Email: email, PasswordHash: string(hash), Nickname: nickname}
	if err := h.db.WithContext(c.Request.Context()).Create(&user).Error; err != nil {
		if model.IsDuplicate(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "ALREADY_EXISTS", "message": "email already registered"})
			return
		}
		writeError(c, battle.Wrap(battle.CodeUnavailable, "create user", err))
		return
	}
	h.logger.Info("user signed up", zap.Int64("user_id", user.ID))

	token, ok := h.issue(c, user.ID)
	if !ok {
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token": token, "user_id": user.ID, "nickname": user.Nickname})
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	if !h.enabled(c) {
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email and password are required")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var user model.User
	err := h.db.WithContext(c.Request.Context()).Where("email = ?", email).First(&user).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(c, battle.Wrap(battle.CodeUnavailable, "load user", err))
		return
	}
	if err != nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "UNAUTHORIZED", "message": "invalid credentials"})
		return
	}

	token, ok := h.issue(c, user.ID)
	if !ok {
		return
	}
	_ = h.db.Model(&user).Update("last_login_at", time.Now())
	c.JSON(http.StatusOK, gin.H{"token": token, "user_id": user.ID, "nickname": user.Nickname})
}

// Logout handles POST /api/auth/logout. The session key is removed so the
// token stops working before it expires.
func (h *AuthHandler) Logout(c *gin.Context) {
	token := mw.BearerToken(c)
	if token == "" {
		badRequest(c, "missing token")
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	_ = h.cache.Del(ctx, mw.SessionKey(token))
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// issue signs a token for userID and records its session.
func (h *AuthHandler) issue(c *gin.Context, userID int64) (string, bool) {
	token, err := mw.GenerateToken(userID, h.sec.JWTSecret, h.sec.JWTTTLH)
	if err != nil {
		writeError(c, err)
		return "", false
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.cache.Set(ctx, mw.SessionKey(token), strconv.FormatInt(userID, 10), h.sec.JWTTTLH); err != nil {
		writeError(c, battle.Wrap(battle.CodeUnavailable, "store session", err))
		return "", false
	}
	return token, true
}
