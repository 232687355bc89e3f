package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autodock-deploy/config"
	"github.com/autodock-deploy/utils"
)

func newAuthedRouter(settings config.Settings) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Auth(settings))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.POST("/api/auth/token", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/api/deployments", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/ws/deployments/all", func(c *gin.Context) { c.Status(http.StatusOK) })
	return router
}

func testAuthSettings() config.Settings {
	return config.Settings{APIKey: "test-key", JWTSecret: "test-secret"}
}

func TestAuthAcceptsConfiguredAPIKey(t *testing.T) {
	router := newAuthedRouter(testAuthSettings())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/deployments", nil)
	req.Header.Set("X-API-Key", "test-key")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthRejectsWrongOrMissingKey(t *testing.T) {
	router := newAuthedRouter(testAuthSettings())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/deployments", nil)
	req.Header.Set("X-API-Key", "wrong")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/deployments", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthAcceptsIssuedBearerToken(t *testing.T) {
	settings := testAuthSettings()
	router := newAuthedRouter(settings)

	token, _, err := utils.GenerateOperatorToken(settings.JWTSecret, "operator")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/deployments", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthLeavesOpenPathsOpen(t *testing.T) {
	router := newAuthedRouter(testAuthSettings())

	for _, path := range []string{"/", "/ws/deployments/all"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/token", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
