package routes_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junaidrashid-git/crm-admin-api/auth"
	"github.com/junaidrashid-git/crm-admin-api/config"
	"github.com/junaidrashid-git/crm-admin-api/database/dbtest"
	"github.com/junaidrashid-git/crm-admin-api/events"
	"github.com/junaidrashid-git/crm-admin-api/mailer"
	"github.com/junaidrashid-git/crm-admin-api/payment"
	"github.com/junaidrashid-git/crm-admin-api/permissions"
	"github.com/junaidrashid-git/crm-admin-api/routes"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	db := dbtest.Open(t)
	for _, a := range []auth.NewAdmin{
		{Email: "owner@example.com", Password: "password123", Role: permissions.RoleOwner},
		{Email: "ops@example.com", Password: "password123", Role: permissions.RoleOperator},
	} {
		_, err := auth.CreateAdmin(db, a)
		require.NoError(t, err)
	}

	r := gin.New()
	routes.SetupRoutes(r, routes.Deps{
		DB:     db,
		Config: &config.Config{UploadDir: t.TempDir()},
		Issuer: auth.NewTokenIssuer("0123456789abcdef0123", time.Hour),
		Mailer: mailer.Disabled{},
		Telr:   payment.NewClient(""),
		Hub:    events.NewHub(),
	})
	return r
}

func send(r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func login(t *testing.T, r http.Handler, path, email string) string {
	t.Helper()
	w := send(r, http.MethodPost, path, "", gin.H{"email": email, "password": "password123"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.NotEmpty(t, out.Token)
	return out.Token
}

func TestHealthz(t *testing.T) {
	r := newRouter(t)
	w := send(r, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","database":"up"}`, w.Body.String())
}

func TestAPIRequiresSession(t *testing.T) {
	r := newRouter(t)
	assert.Equal(t, http.StatusUnauthorized, send(r, http.MethodGet, "/api/me", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, send(r, http.MethodGet, "/api/customers", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, send(r, http.MethodGet, "/api/me", "not-a-token", nil).Code)
}

func TestGoogleLoginDisabledWithoutVerifier(t *testing.T) {
	r := newRouter(t)
	w := send(r, http.MethodPost, "/auth/admin/google", "", gin.H{"idToken": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRolePermissionsOnRoutes(t *testing.T) {
	r := newRouter(t)
	owner := login(t, r, "/auth/admin/login", "owner@example.com")
	ops := login(t, r, "/auth/admin/login", "ops@example.com")

	assert.Equal(t, http.StatusOK, send(r, http.MethodGet, "/api/me", owner, nil).Code)
	assert.Equal(t, http.StatusOK, send(r, http.MethodGet, "/api/admins", owner, nil).Code)
	assert.Equal(t, http.StatusForbidden, send(r, http.MethodGet, "/api/admins", ops, nil).Code)
	assert.Equal(t, http.StatusOK, send(r, http.MethodGet, "/api/orders", ops, nil).Code)

	w := send(r, http.MethodPost, "/auth/customer/register", "", gin.H{
		"email": "jane@example.com", "name": "Jane", "password": "password123",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	customer := login(t, r, "/auth/customer/login", "jane@example.com")

	assert.Equal(t, http.StatusForbidden, send(r, http.MethodGet, "/api/customers", customer, nil).Code)
	assert.Equal(t, http.StatusForbidden, send(r, http.MethodGet, "/api/admins", customer, nil).Code)
	assert.Equal(t, http.StatusOK, send(r, http.MethodGet, "/api/orders", customer, nil).Code)
}
