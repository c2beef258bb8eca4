package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junaidrashid-git/crm-admin-api/auth"
	"github.com/junaidrashid-git/crm-admin-api/database/dbtest"
	"github.com/junaidrashid-git/crm-admin-api/middleware"
	"github.com/junaidrashid-git/crm-admin-api/models"
	"github.com/junaidrashid-git/crm-admin-api/payment"
	"github.com/junaidrashid-git/crm-admin-api/permissions"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func ok(c *gin.Context) {
	p, _ := auth.PrincipalFrom(c)
	c.JSON(http.StatusOK, gin.H{"role": p.Role})
}

func do(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireSessionAndPermission(t *testing.T) {
	db := dbtest.Open(t)
	issuer := auth.NewTokenIssuer("0123456789abcdef0123", time.Hour)
	operator, err := auth.CreateAdmin(db, auth.NewAdmin{
		Email: "ops@example.com", Password: "password123", Role: permissions.RoleOperator,
	})
	require.NoError(t, err)
	token, _, err := issuer.Issue(auth.AdminPrincipal(operator))
	require.NoError(t, err)

	r := gin.New()
	api := r.Group("/api", middleware.RequireSession(db, issuer))
	api.GET("/orders", middleware.Require(permissions.OrdersRead), ok)
	api.GET("/admins", middleware.Require(permissions.AdminsManage), ok)
	api.GET("/either", middleware.Require(permissions.AdminsManage, permissions.CustomersRead), ok)

	authed := func(path string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		return req
	}

	assert.Equal(t, http.StatusUnauthorized, do(r, httptest.NewRequest(http.MethodGet, "/api/orders", nil)).Code)
	assert.Equal(t, http.StatusOK, do(r, authed("/api/orders")).Code)
	assert.Equal(t, http.StatusForbidden, do(r, authed("/api/admins")).Code)
	assert.Equal(t, http.StatusOK, do(r, authed("/api/either")).Code)

	w := do(r, httptest.NewRequest(http.MethodGet, "/api/orders?token="+url.QueryEscape(token), nil))
	assert.Equal(t, http.StatusOK, w.Code)

	bad := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	bad.Header.Set("Authorization", "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, do(r, bad).Code)

	// Promotion takes effect without a new token
	require.NoError(t, db.Model(&models.Admin{}).Where("id = ?", operator.ID).Update("role", permissions.RoleOwner).Error)
	assert.Equal(t, http.StatusOK, do(r, authed("/api/admins")).Code)

	require.NoError(t, db.Model(&models.Admin{}).Where("id = ?", operator.ID).Update("approved", false).Error)
	assert.Equal(t, http.StatusForbidden, do(r, authed("/api/orders")).Code)
}

func TestStaffOnly(t *testing.T) {
	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		auth.SetPrincipal(c, auth.Principal{Kind: auth.KindCustomer, ID: 1, Role: permissions.RoleCustomer})
	}, middleware.StaffOnly(), ok)
	assert.Equal(t, http.StatusForbidden, do(r, httptest.NewRequest(http.MethodGet, "/x", nil)).Code)
}

func TestRequireDatabase(t *testing.T) {
	db := dbtest.Open(t)
	r := gin.New()
	r.GET("/x", middleware.RequireDatabase(db), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	assert.Equal(t, http.StatusNoContent, do(r, httptest.NewRequest(http.MethodGet, "/x", nil)).Code)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	w := do(r, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"error":"Database unavailable"}`, w.Body.String())
}

func TestRequireDatabaseNilHandle(t *testing.T) {
	r := gin.New()
	r.GET("/x", middleware.RequireDatabase(nil), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	assert.Equal(t, http.StatusServiceUnavailable, do(r, httptest.NewRequest(http.MethodGet, "/x", nil)).Code)
}

func TestTelrWebhookAuth(t *testing.T) {
	const secret = "hook-secret"
	form := url.Values{"tran_cartid": {"ORD-1"}, "tran_status": {"A"}}
	form.Set("tran_check", payment.Sign(secret, form))

	post := func(sandbox bool, body url.Values) int {
		r := gin.New()
		r.POST("/hook", middleware.TelrWebhookAuth(secret, sandbox), func(c *gin.Context) { c.Status(http.StatusOK) })
		req := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(body.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return do(r, req).Code
	}

	assert.Equal(t, http.StatusOK, post(false, form))
	assert.Equal(t, http.StatusForbidden, post(false, url.Values{"tran_cartid": {"ORD-1"}}))

	tampered := url.Values{"tran_cartid": {"ORD-2"}, "tran_status": {"A"}, "tran_check": form["tran_check"]}
	assert.Equal(t, http.StatusForbidden, post(false, tampered))
	assert.Equal(t, http.StatusOK, post(true, tampered))
}
