package integration

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/studymon/server/api"
	"github.com/studymon/server/audit"
	"github.com/studymon/server/cache"
	"github.com/studymon/server/config"
	"github.com/studymon/server/game/arena"
	"github.com/studymon/server/game/battle"
	"github.com/studymon/server/game/catalog"
	"github.com/studymon/server/game/matchmaking"
	"github.com/studymon/server/game/progression"
	"github.com/studymon/server/model"
	"github.com/studymon/server/scheduler"
	"github.com/studymon/server/testutil"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const AdminKey = "integration-admin-key"

// TestServer wraps a real HTTP server with every subsystem wired together.
type TestServer struct {
	DB     *gorm.DB
	Cache  cache.Cache
	PubSub cache.PubSub
	Arena  *arena.Service
	Audit  *audit.Service
	Sched  *scheduler.Scheduler
	Server *httptest.Server
	URL    string // http://127.0.0.1:<port>
	Config *config.Config
}

// NewTestServer creates a fully wired server for integration testing. It
// mirrors the dependency wiring in main.go with an in-memory store and a
// seeded catalog: species 1 is a fast normal type with 100 HP, species 2 a
// slow fire type with 30 HP.
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	// ---- Infrastructure ----
	db := testutil.SetupTestDB(t)
	c, pubsub := testutil.SetupTestCache(t)
	logger := zap.NewNop()
	ctx := context.Background()

	cfg := &config.Config{
		Server: config.ServerConfig{AdminKey: AdminKey, AdminIPs: []string{"127.0.0.0/8"}},
		Security: config.SecurityConfig{
			JWTSecret:      "integration-test-secret",
			JWTTTLH:        72 * time.Hour,
			RateLimitRPS:   1000,
			RateLimitBurst: 2000,
		},
		Battle: config.BattleConfig{
			DefaultPP:     10,
			LockTTL:       10 * time.Second,
			IdleTimeout:   time.Hour,
			RequireRoster: true,
		},
		Progression: config.ProgressionConfig{
			ExpPerLevel:        100,
			UserVictoryExp:     1,
			CreatureVictoryExp: 5,
			EvolutionLevels:    config.DefaultEvolutionLevels(),
		},
	}

	// ---- Catalog ----
	_, err := catalog.SeedTypeChart(ctx, db)
	require.NoError(t, err)
	chart, err := catalog.LoadTypeChart(ctx, db)
	require.NoError(t, err)
	moves := testutil.SeedStandardMoves(t, db)
	testutil.SeedSpecies(t, db, testutil.SimpleSpecies(1, battle.TypeNormal, 100, 50, 90))
	testutil.SeedSpecies(t, db, testutil.SimpleSpecies(2, battle.TypeFire, 30, 50, 30))
	testutil.SeedLearnset(t, db, 1, moves...)
	testutil.SeedLearnset(t, db, 2, moves...)

	// ---- Services ----
	auditSvc := audit.New(db, logger)
	arenaSvc := arena.NewService(arena.Config{
		DB:            db,
		Learnset:      catalog.NewDBLearnset(db),
		Guard:         matchmaking.NewGuard(c, cfg.Battle.LockTTL, logger),
		Progression:   progression.NewService(progression.Rules(cfg.Progression), logger),
		Calculator:    battle.NewCalculator(chart, battle.DefaultDamageConfig()),
		PubSub:        pubsub,
		Logger:        logger,
		DefaultPP:     cfg.Battle.DefaultPP,
		IdleTimeout:   cfg.Battle.IdleTimeout,
		RequireRoster: cfg.Battle.RequireRoster,
	})
	sched := scheduler.New(logger)
	sched.AddTicker("battle_idle_sweep", time.Minute, func(ctx context.Context) error {
		_, err := arenaSvc.SweepIdle(ctx)
		return err
	})

	// ---- HTTP ----
	r := api.NewRouter(api.Deps{
		Config:    cfg,
		DB:        db,
		Cache:     c,
		PubSub:    pubsub,
		Arena:     arenaSvc,
		Audit:     auditSvc,
		Scheduler: sched,
		Logger:    logger,
	})
	server := httptest.NewServer(r)

	ts := &TestServer{
		DB:     db,
		Cache:  c,
		PubSub: pubsub,
		Arena:  arenaSvc,
		Audit:  auditSvc,
		Sched:  sched,
		Server: server,
		URL:    server.URL,
		Config: cfg,
	}
	t.Cleanup(ts.Close)
	return ts
}

// Close shuts down the server and background workers. It is safe to call
// more than once.
func (ts *TestServer) Close() {
	ts.Server.Close()
	ts.Sched.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ts.Audit.Stop(ctx)
}

// --- HTTP helpers ---

// Do sends a request with an optional JSON body and Bearer token. Extra
// headers are given as name/value pairs.
func (ts *TestServer) Do(t *testing.T, method, path string, body interface{}, token string, headers ...string) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// PostJSON sends a POST request with JSON body and optional Bearer token.
func (ts *TestServer) PostJSON(t *testing.T, path string, body interface{}, token string) *http.Response {
	t.Helper()
	return ts.Do(t, http.MethodPost, path, body, token)
}

// Get sends a GET request with optional Bearer token.
func (ts *TestServer) Get(t *testing.T, path string, token string) *http.Response {
	t.Helper()
	return ts.Do(t, http.MethodGet, path, nil, token)
}

// ReadJSON reads and decodes a JSON response body into the given target.
func ReadJSON(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, target), "body: %s", string(data))
}

// ErrorCode decodes an error response and returns its code.
func ErrorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	ReadJSON(t, resp, &body)
	return body.Error
}

// --- Auth helpers ---

// Signup registers a new account and returns its token and user id.
func (ts *TestServer) Signup(t *testing.T, email, password string) (token string, userID int64) {
	t.Helper()
	resp := ts.PostJSON(t, "/api/auth/signup", map[string]string{
		"email":    email,
		"password": password,
	}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var result struct {
		Token  string `json:"token"`
		UserID int64  `json:"user_id"`
	}
	ReadJSON(t, resp, &result)
	return result.Token, result.UserID
}

// Login returns a fresh token for an existing account.
func (ts *TestServer) Login(t *testing.T, email, password string) (token string, userID int64) {
	t.Helper()
	resp := ts.PostJSON(t, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result struct {
		Token  string `json:"token"`
		UserID int64  `json:"user_id"`
	}
	ReadJSON(t, resp, &result)
	return result.Token, result.UserID
}

// --- Domain helpers ---

// GiveCreature adds a level 1 creature of speciesID to the user's roster.
func (ts *TestServer) GiveCreature(t *testing.T, userID, speciesID int64) int64 {
	t.Helper()
	return testutil.SeedCreature(t, ts.DB, userID, speciesID).ID
}

// SetDrowsiness overwrites a user's drowsiness count.
func (ts *TestServer) SetDrowsiness(t *testing.T, userID int64, count int) {
	t.Helper()
	require.NoError(t, ts.DB.Model(&model.User{}).Where("id = ?", userID).
		Update("drowsiness_count", count).Error)
}

// CreateBattle starts a battle over REST and returns the decoded result.
func (ts *TestServer) CreateBattle(t *testing.T, token string, a, b int64) arena.CreateResult {
	t.Helper()
	resp := ts.PostJSON(t, "/api/battle", map[string]int64{
		"creature_a_id": a,
		"creature_b_id": b,
	}, token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var out arena.CreateResult
	ReadJSON(t, resp, &out)
	return out
}

// Attack resolves one move over REST. The raw response is returned so that
// callers can assert on error statuses.
func (ts *TestServer) Attack(t *testing.T, token string, battleID, attacker, defender, move int64) *http.Response {
	t.Helper()
	return ts.PostJSON(t, "/api/battle/damage", map[string]int64{
		"battle_id":            battleID,
		"attacker_creature_id": attacker,
		"defender_creature_id": defender,
		"move_id":              move,
	}, token)
}

// --- SSE helpers ---

// SSEEvent is one server-sent event.
type SSEEvent struct {
	Name string
	Data string
}

// SSEClient reads a battle's event stream.
type SSEClient struct {
	resp   *http.Response
	events chan SSEEvent
}

// SubscribeBattle opens the event stream of a battle.
func (ts *TestServer) SubscribeBattle(t *testing.T, battleID int64, token string) *SSEClient {
	t.Helper()
	path := fmt.Sprintf("%s/sse/battles/%d", ts.URL, battleID)
	if token != "" {
		path += "?token=" + token
	}
	resp, err := http.Get(path)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	sc := &SSEClient{resp: resp, events: make(chan SSEEvent, 64)}
	go sc.readLoop()
	t.Cleanup(sc.Close)
	return sc
}

func (sc *SSEClient) readLoop() {
	defer close(sc.events)
	scanner := bufio.NewScanner(sc.resp.Body)
	var cur SSEEvent
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			cur.Name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			cur.Data += strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		case line == "":
			if cur.Name != "" {
				sc.events <- cur
			}
			cur = SSEEvent{}
		}
	}
}

// Next returns the next named event, skipping keepalives. ok is false when
// the stream ended or timeout elapsed.
func (sc *SSEClient) Next(timeout time.Duration) (ev SSEEvent, ok bool) {
	select {
	case ev, ok = <-sc.events:
		return ev, ok
	case <-time.After(timeout):
		return SSEEvent{}, false
	}
}

// Close ends the stream.
func (sc *SSEClient) Close() {
	sc.resp.Body.Close()
}

var idCounter int64

// UniqueEmail returns an address unique within the test binary.
func UniqueEmail(prefix string) string {
	n := atomic.AddInt64(&idCounter, 1)
	return fmt.Sprintf("%s_%d_%d@example.com", prefix, time.Now().UnixNano()%100000, n)
}
