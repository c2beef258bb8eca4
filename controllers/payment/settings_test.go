package paymentControllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/junaidrashid-git/crm-admin-api/auth"
	paymentControllers "github.com/junaidrashid-git/crm-admin-api/controllers/payment"
	"github.com/junaidrashid-git/crm-admin-api/database/dbtest"
	"github.com/junaidrashid-git/crm-admin-api/models"
	"github.com/junaidrashid-git/crm-admin-api/payment"
	"github.com/junaidrashid-git/crm-admin-api/permissions"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeTester struct {
	got payment.Credentials
	err error
}

func (f *fakeTester) TestConnection(_ context.Context, creds payment.Credentials) error {
	f.got = creds
	return f.err
}

func router(db *gorm.DB, tester paymentControllers.ConnectionTester) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		auth.SetPrincipal(c, auth.Principal{Kind: auth.KindAdmin, ID: 1, Role: permissions.RoleOwner})
		c.Next()
	})
	r.GET("/payment-settings", paymentControllers.GetSettings(db))
	r.PUT("/payment-settings", paymentControllers.UpdateSettings(db))
	r.POST("/payment-settings/test", paymentControllers.TestConnection(db, tester))
	return r
}

func do(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestUpdateSettingsMasksSecrets(t *testing.T) {
	db := dbtest.Open(t)
	r := router(db, &fakeTester{})

	w := do(r, http.MethodPut, "/payment-settings", gin.H{
		"card_enabled":  true,
		"telr_store_id": "15996",
		"telr_auth_key": "s3cr3t-key",
		"telr_mode":     "LIVE",
		"cod_enabled":   true,
		"cod_fee":       "7.50",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "s3cr3t-key")
	assert.NotContains(t, w.Body.String(), "15996")

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "*5996", got["telr_store_id"])
	assert.Equal(t, true, got["auth_key_set"])
	assert.Equal(t, "live", got["telr_mode"])

	var stored models.PaymentSettings
	require.NoError(t, db.First(&stored, models.PaymentSettingsID).Error)
	assert.Equal(t, "15996", stored.TelrStoreID)
	assert.Equal(t, "s3cr3t-key", stored.TelrAuthKey)
	assert.True(t, decimal.RequireFromString("7.5").Equal(stored.CODFee))

	var logs []models.AuditLog
	require.NoError(t, db.Where("entity_type = ?", "payment_settings").Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.NotContains(t, logs[0].After, "s3cr3t-key")
	assert.NotContains(t, logs[0].After, "15996")

	// Partial update leaves the key alone
	w = do(r, http.MethodPut, "/payment-settings", gin.H{"cod_enabled": false})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, db.First(&stored, models.PaymentSettingsID).Error)
	assert.Equal(t, "s3cr3t-key", stored.TelrAuthKey)
	assert.False(t, stored.CODEnabled)

	w = do(r, http.MethodGet, "/payment-settings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "s3cr3t-key")
}

func TestUpdateSettingsValidation(t *testing.T) {
	db := dbtest.Open(t)
	r := router(db, &fakeTester{})

	tests := []struct {
		name string
		body gin.H
	}{
		{"card without credentials", gin.H{"card_enabled": true}},
		{"unknown mode", gin.H{"telr_mode": "staging"}},
		{"negative cod fee", gin.H{"cod_fee": -1}},
		{"bank transfer without instructions", gin.H{"bank_transfer_enabled": true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPut, "/payment-settings", tt.body).Code)
		})
	}

	var n int64
	require.NoError(t, db.Model(&models.AuditLog{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestConnection(t *testing.T) {
	db := dbtest.Open(t)
	require.NoError(t, db.Model(&models.PaymentSettings{}).Where("id = ?", models.PaymentSettingsID).
		Updates(map[string]interface{}{"telr_store_id": "100", "telr_auth_key": "stored", "telr_mode": "sandbox"}).Error)

	tester := &fakeTester{}
	r := router(db, tester)

	w := do(r, http.MethodPost, "/payment-settings/test", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"connected":true`)
	assert.Equal(t, payment.Credentials{StoreID: "100", AuthKey: "stored", Test: true}, tester.got)

	w = do(r, http.MethodPost, "/payment-settings/test", gin.H{"telr_auth_key": "candidate", "telr_mode": "live"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, payment.Credentials{StoreID: "100", AuthKey: "candidate", Test: false}, tester.got)

	tester.err = payment.ErrInvalidCredentials
	w = do(r, http.MethodPost, "/payment-settings/test", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"connected":false`)

	tester.err = payment.ErrNotConfigured
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/payment-settings/test", nil).Code)

	tester.err = errors.New("dial tcp: timeout")
	assert.Equal(t, http.StatusBadGateway, do(r, http.MethodPost, "/payment-settings/test", nil).Code)
}

func TestBankTransferQR(t *testing.T) {
	db := dbtest.Open(t)
	dir := t.TempDir()
	r := gin.New()
	r.Use(func(c *gin.Context) {
		auth.SetPrincipal(c, auth.Principal{Kind: auth.KindAdmin, ID: 1, Role: permissions.RoleOwner})
		c.Next()
	})
	r.POST("/qr", paymentControllers.UploadBankTransferQR(db, dir, "https://api.example.com"))
	r.DELETE("/qr", paymentControllers.DeleteBankTransferQR(db, dir, "https://api.example.com"))

	upload := func(name string) *httptest.ResponseRecorder {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		fw, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		_, _ = fw.Write([]byte("qr bytes"))
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/qr", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}
	current := func() string {
		var s models.PaymentSettings
		require.NoError(t, db.First(&s, models.PaymentSettingsID).Error)
		return s.BankTransferQR
	}

	w := upload("bank (main).png")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	first := current()
	assert.Regexp(t, `^https://api\.example\.com/uploads/qr/\d+_bank__main_\.png$`, first)
	_, err := os.Stat(filepath.Join(dir, "qr", filepath.Base(first)))
	require.NoError(t, err)

	w = upload("second.png")
	require.Equal(t, http.StatusOK, w.Code)
	_, err = os.Stat(filepath.Join(dir, "qr", filepath.Base(first)))
	assert.True(t, os.IsNotExist(err), "replaced image is removed")

	assert.Equal(t, http.StatusBadRequest, upload("qr.pdf").Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/qr", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, current())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/qr", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
