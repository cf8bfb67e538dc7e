package integration

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFullAuthLifecycle(t *testing.T) {
	ts := NewTestServer(t)

	email := UniqueEmail("auth")
	password := "testpass1234"

	// 1. Signup returns a working token.
	token1, userID := ts.Signup(t, email, password)
	require.NotEmpty(t, token1)
	require.Greater(t, userID, int64(0))

	// 2. Battle routes reject anonymous callers.
	resp := ts.Get(t, "/api/battle/1", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// 3. The token passes auth (unknown battle, not an auth failure).
	resp = ts.Get(t, "/api/battle/999", token1)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// 4. Login again issues a new token for the same user.
	// Different JWT timestamps need a second boundary.
	time.Sleep(1100 * time.Millisecond)
	token2, userID2 := ts.Login(t, email, password)
	assert.Equal(t, userID, userID2)
	assert.NotEqual(t, token1, token2)

	// 5. Logout invalidates only token2.
	resp = ts.PostJSON(t, "/api/auth/logout", nil, token2)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = ts.Get(t, "/api/battle/999", token2)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = ts.Get(t, "/api/battle/999", token1)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestLoginWrongPassword(t *testing.T) {
	ts := NewTestServer(t)

	email := UniqueEmail("wrongpw")
	ts.Signup(t, email, "correctpass")

	resp := ts.PostJSON(t, "/api/auth/login", map[string]string{
		"email":    email,
		"password": "wrongpassword",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestSignupDuplicateEmail(t *testing.T) {
	ts := NewTestServer(t)

	email := UniqueEmail("dup")
	ts.Signup(t, email, "password1")

	resp := ts.PostJSON(t, "/api/auth/signup", map[string]string{
		"email":    email,
		"password": "password2",
	}, "")
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "ALREADY_EXISTS", ErrorCode(t, resp))
}

func TestHealth(t *testing.T) {
	ts := NewTestServer(t)

	resp := ts.Get(t, "/health", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	ReadJSON(t, resp, &body)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, resp.Header.Get("X-Trace-ID"))
}
