package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tlogandesigns/site-visitor-dash/internal/api/dto"
	"github.com/tlogandesigns/site-visitor-dash/internal/database/models"
	"github.com/tlogandesigns/site-visitor-dash/internal/testutil"
)

func TestAuthHandler_Login(t *testing.T) {
	env := setupRouter(t)

	t.Run("successful login", func(t *testing.T) {
		body := map[string]string{
			"username": env.User.Username,
			"password": testutil.TestPassword,
		}

		rr := env.do(t, "POST", "/api/v1/auth/login", body, "")
		testutil.AssertStatus(t, rr, http.StatusOK)

		var resp dto.AuthResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, env.User.Username, resp.User.Username)
		assert.Equal(t, models.RoleUser, resp.User.Role)
		assert.Equal(t, env.Agent.ID.String(), resp.User.AgentID)
		assert.Equal(t, env.Agent.Name, resp.User.AgentName)
		assert.NotNil(t, resp.User.LastLoginAt)
		assert.Equal(t, []string{testutil.Site}, resp.User.Sites)
		assert.False(t, resp.ExpiresAt.IsZero())

		var tokenCookie *http.Cookie
		for _, c := range rr.Result().Cookies() {
			if c.Name == "token" {
				tokenCookie = c
				break
			}
		}
		require.NotNil(t, tokenCookie)
		assert.Equal(t, resp.Token, tokenCookie.Value)
		assert.True(t, tokenCookie.HttpOnly)
		assert.Equal(t, 3600, tokenCookie.MaxAge)
	})

	t.Run("wrong password", func(t *testing.T) {
		body := map[string]string{"username": env.User.Username, "password": "wrongpassword"}
		rr := env.do(t, "POST", "/api/v1/auth/login", body, "")
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	})

	t.Run("non-existent user", func(t *testing.T) {
		body := map[string]string{"username": "nobody", "password": "anypassword"}
		rr := env.do(t, "POST", "/api/v1/auth/login", body, "")
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	})

	t.Run("missing fields", func(t *testing.T) {
		rr := env.do(t, "POST", "/api/v1/auth/login", map[string]string{}, "")
		testutil.AssertStatus(t, rr, http.StatusBadRequest)

		var resp dto.ErrorResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Contains(t, resp.Details, "username")
		assert.Contains(t, resp.Details, "password")
	})

	t.Run("inactive account", func(t *testing.T) {
		inactive := testutil.CreateTestUser(t, env.DB, models.RoleAdmin, nil)
		require.NoError(t, env.DB.Model(inactive).Update("is_active", false).Error)

		body := map[string]string{"username": inactive.Username, "password": testutil.TestPassword}
		rr := env.do(t, "POST", "/api/v1/auth/login", body, "")
		testutil.AssertStatus(t, rr, http.StatusForbidden)
	})
}

func TestAuthHandler_Logout(t *testing.T) {
	env := setupRouter(t)

	rr := env.do(t, "POST", "/api/v1/auth/logout", nil, "")
	testutil.AssertStatus(t, rr, http.StatusOK)

	var tokenCookie *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == "token" {
			tokenCookie = c
			break
		}
	}
	require.NotNil(t, tokenCookie)
	assert.Empty(t, tokenCookie.Value)
	assert.Equal(t, -1, tokenCookie.MaxAge)
}

func TestAuthHandler_Me(t *testing.T) {
	env := setupRouter(t)

	t.Run("user sees agent sites", func(t *testing.T) {
		rr := env.do(t, "GET", "/api/v1/me", nil, env.Token)
		testutil.AssertStatus(t, rr, http.StatusOK)

		var user dto.UserDTO
		testutil.ParseJSONResponse(t, rr, &user)
		assert.Equal(t, env.User.ID.String(), user.ID)
		assert.Equal(t, []string{testutil.Site}, user.Sites)
	})

	t.Run("admin without agent", func(t *testing.T) {
		rr := env.do(t, "GET", "/api/v1/me", nil, env.AdminToken)
		testutil.AssertStatus(t, rr, http.StatusOK)

		var user dto.UserDTO
		testutil.ParseJSONResponse(t, rr, &user)
		assert.Equal(t, models.RoleAdmin, user.Role)
		assert.Empty(t, user.AgentID)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		rr := env.do(t, "GET", "/api/v1/me", nil, "")
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	})
}
