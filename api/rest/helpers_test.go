package rest_test

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/studymon/server/api/rest"
	"github.com/studymon/server/audit"
	"github.com/studymon/server/cache"
	"github.com/studymon/server/config"
	"github.com/studymon/server/game/arena"
	"github.com/studymon/server/game/battle"
	"github.com/studymon/server/game/matchmaking"
	mw "github.com/studymon/server/middleware"
	"github.com/studymon/server/model"
	"github.com/studymon/server/scheduler"
	"github.com/studymon/server/testutil"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type topRand struct{}

func (topRand) Intn(int) int     { return 0 }
func (topRand) Float64() float64 { return 1 }

type testEnv struct {
	db     *gorm.DB
	cache  cache.Cache
	arena  *arena.Service
	audit  *audit.Service
	sched  *scheduler.Scheduler
	router *gin.Engine
	sec    config.SecurityConfig

	alice, bob *model.User
	a, b       *model.Creature
}

const adminKey = "admin-key"

// newEnv builds a router wired like main: species 1 is a fast normal type
// with 100 HP, species 2 a slow fire type with defenderHP.
func newEnv(t *testing.T, sec config.SecurityConfig, defenderHP int) *testEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	c, ps := testutil.SetupTestCache(t)
	moves := testutil.SeedStandardMoves(t, db)
	testutil.SeedSpecies(t, db, testutil.SimpleSpecies(1, battle.TypeNormal, 100, 50, 90))
	testutil.SeedSpecies(t, db, testutil.SimpleSpecies(2, battle.TypeFire, defenderHP, 50, 30))
	testutil.SeedLearnset(t, db, 1, moves...)
	testutil.SeedLearnset(t, db, 2, moves...)

	env := &testEnv{db: db, cache: c, sec: sec}
	env.alice = testutil.SeedUser(t, db, "alice@example.com")
	env.bob = testutil.SeedUser(t, db, "bob@example.com")
	env.a = testutil.SeedCreature(t, db, env.alice.ID, 1)
	env.b = testutil.SeedCreature(t, db, env.bob.ID, 2)

	env.arena = arena.NewService(arena.Config{
		DB:          db,
		Guard:       matchmaking.NewGuard(c, time.Minute, nil),
		PubSub:      ps,
		RNG:         topRand{},
		IdleTimeout: time.Minute,
	})
	env.audit = audit.New(db, nil)
	env.sched = scheduler.New(nil)
	t.Cleanup(env.sched.Stop)

	battleH := rest.NewBattleHandler(env.arena, env.audit)
	creatureH := rest.NewCreatureHandler(db)
	authH := rest.NewAuthHandler(db, c, sec, nil)
	adminH := rest.NewAdminHandler(db, env.arena, env.sched, nil)

	r := gin.New()
	r.Use(mw.TraceID())
	api := r.Group("/api")
	auth := api.Group("/auth")
	auth.POST("/signup", authH.Signup)
	auth.POST("/login", authH.Login)
	auth.POST("/logout", mw.Auth(sec, c), authH.Logout)

	battles := api.Group("/battle", mw.Auth(sec, c))
	battles.POST("", battleH.Create)
	battles.POST("/damage", battleH.Damage)
	battles.GET("/:id", battleH.Get)
	battles.GET("/:id/moves", battleH.Moves)
	api.GET("/creatures/:id", mw.Auth(sec, c), creatureH.Get)

	admin := api.Group("/admin", mw.IPWhitelist([]string{"127.0.0.0/8", "192.0.2.0/24"}), rest.AdminAuth(adminKey))
	admin.GET("/metrics", adminH.Metrics)
	admin.GET("/scheduler", adminH.ListSchedulerTasks)
	admin.POST("/battles/sweep", adminH.SweepBattles)

	env.router = r
	return env
}

func (e *testEnv) do(method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	var rd *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorBody
	decode(t, w, &body)
	return body.Error
}
