package rest_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/studymon/server/api/rest"
	"github.com/studymon/server/config"
	"github.com/studymon/server/model"
)

func TestAdminAuth(t *testing.T) {
	env := newEnv(t, config.SecurityConfig{}, 80)

	w := env.do(http.MethodGet, "/api/admin/metrics", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(http.MethodGet, "/api/admin/metrics", nil, "X-Admin-Key", "wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(http.MethodGet, "/api/admin/metrics", nil, "X-Admin-Key", adminKey, "X-Real-IP", "203.0.113.9")
	assert.Equal(t, http.StatusForbidden, w.Code, "outside the admin network")
}

func TestAdminAuthDisabled(t *testing.T) {
	r := gin.New()
	r.GET("/admin", rest.AdminAuth(""), func(c *gin.Context) { c.Status(http.StatusOK) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAdminMetrics(t *testing.T) {
	env := newEnv(t, config.SecurityConfig{}, 80)
	env.createBattle(t)
	env.sched.AddTicker("battle_idle_sweep", time.Hour, func(context.Context) error { return nil })

	w := env.do(http.MethodGet, "/api/admin/metrics", nil, "X-Admin-Key", adminKey)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body struct {
		Ongoing   int64 `json:"ongoing_battles"`
		Finished  int64 `json:"finished_battles"`
		Users     int64 `json:"users"`
		Creatures int64 `json:"creatures"`
		Tasks     []struct {
			Name string `json:"name"`
		} `json:"scheduler_tasks"`
	}
	decode(t, w, &body)
	assert.Equal(t, int64(1), body.Ongoing)
	assert.Zero(t, body.Finished)
	assert.Equal(t, int64(2), body.Users)
	assert.Equal(t, int64(2), body.Creatures)
	require.Len(t, body.Tasks, 1)
	assert.Equal(t, "battle_idle_sweep", body.Tasks[0].Name)

	w = env.do(http.MethodGet, "/api/admin/scheduler", nil, "X-Admin-Key", adminKey)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminSweep(t *testing.T) {
	env := newEnv(t, config.SecurityConfig{}, 80)
	res := env.createBattle(t)
	require.NoError(t, env.db.Model(&model.Battle{}).Where("id = ?", res.BattleID).
		UpdateColumn("updated_at", time.Now().Add(-time.Hour)).Error)

	w := env.do(http.MethodPost, "/api/admin/battles/sweep", nil, "X-Admin-Key", adminKey)
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]int
	decode(t, w, &body)
	assert.Equal(t, 1, body["closed"])

	var row model.Battle
	require.NoError(t, env.db.First(&row, res.BattleID).Error)
	assert.Equal(t, model.BattleFinished, row.Status)
}
