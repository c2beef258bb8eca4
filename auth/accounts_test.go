package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/junaidrashid-git/crm-admin-api/apperr"
	"github.com/junaidrashid-git/crm-admin-api/auth"
	"github.com/junaidrashid-git/crm-admin-api/database/dbtest"
	"github.com/junaidrashid-git/crm-admin-api/models"
	"github.com/junaidrashid-git/crm-admin-api/permissions"
)

func createAdmin(t *testing.T, db *gorm.DB, email string, role permissions.Role) *models.Admin {
	t.Helper()
	admin, err := auth.CreateAdmin(db, auth.NewAdmin{Email: email, Name: "Staff", Password: "password123", Role: role})
	require.NoError(t, err)
	return admin
}

func TestRegisterCustomer(t *testing.T) {
	db := dbtest.Open(t)

	customer, err := auth.RegisterCustomer(db, auth.CustomerRegistration{
		Email: "  Jane@Example.com ", Name: "Jane", Password: "password123",
	})
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", customer.Email)
	assert.NotEqual(t, "password123", customer.PasswordHash)

	got, err := auth.AuthenticateCustomer(db, "JANE@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, customer.ID, got.ID)

	_, err = auth.AuthenticateCustomer(db, "jane@example.com", "wrong-password")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestRegisterCustomerValidation(t *testing.T) {
	db := dbtest.Open(t)

	cases := map[string]auth.CustomerRegistration{
		"bad email":      {Email: "nope", Name: "A", Password: "password123"},
		"missing name":   {Email: "a@example.com", Name: " ", Password: "password123"},
		"short password": {Email: "a@example.com", Name: "A", Password: "short"},
	}
	for name, reg := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := auth.RegisterCustomer(db, reg)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		})
	}
}

func TestEmailUniqueAcrossAccounts(t *testing.T) {
	db := dbtest.Open(t)
	createAdmin(t, db, "staff@example.com", permissions.RoleAdmin)

	_, err := auth.RegisterCustomer(db, auth.CustomerRegistration{
		Email: "STAFF@example.com", Name: "Copycat", Password: "password123",
	})
	assert.ErrorIs(t, err, auth.ErrEmailTaken)

	_, err = auth.RegisterCustomer(db, auth.CustomerRegistration{
		Email: "buyer@example.com", Name: "Buyer", Password: "password123",
	})
	require.NoError(t, err)

	_, err = auth.CreateAdmin(db, auth.NewAdmin{
		Email: "buyer@example.com", Name: "Staff", Password: "password123", Role: permissions.RoleOperator,
	})
	assert.ErrorIs(t, err, auth.ErrEmailTaken)
	assert.Equal(t, 409, apperr.Status(err))
}

func TestCreateAdminRejectsCustomerRole(t *testing.T) {
	db := dbtest.Open(t)
	_, err := auth.CreateAdmin(db, auth.NewAdmin{
		Email: "x@example.com", Password: "password123", Role: permissions.RoleCustomer,
	})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestAuthenticateAdmin(t *testing.T) {
	db := dbtest.Open(t)
	admin := createAdmin(t, db, "ops@example.com", permissions.RoleOperator)

	got, err := auth.AuthenticateAdmin(db, "ops@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, got.ID)
	assert.NotNil(t, got.LastLoginAt)

	require.NoError(t, db.Model(&models.Admin{}).Where("id = ?", admin.ID).Update("approved", false).Error)
	_, err = auth.AuthenticateAdmin(db, "ops@example.com", "password123")
	assert.ErrorIs(t, err, auth.ErrNotApproved)

	_, err = auth.AuthenticateAdmin(db, "nobody@example.com", "password123")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestRefresh(t *testing.T) {
	db := dbtest.Open(t)
	admin := createAdmin(t, db, "ops@example.com", permissions.RoleOperator)
	stale := auth.AdminPrincipal(admin)

	require.NoError(t, db.Model(&models.Admin{}).Where("id = ?", admin.ID).Update("role", permissions.RoleAdmin).Error)
	p, err := auth.Refresh(db, stale)
	require.NoError(t, err)
	assert.Equal(t, permissions.RoleAdmin, p.Role)

	require.NoError(t, db.Delete(&models.Admin{}, admin.ID).Error)
	_, err = auth.Refresh(db, stale)
	assert.ErrorIs(t, err, auth.ErrAccountGone)
}

type fakeVerifier struct {
	identity *auth.GoogleIdentity
	err      error
}

func (f fakeVerifier) Verify(context.Context, string) (*auth.GoogleIdentity, error) {
	return f.identity, f.err
}

func TestGoogleAdminSignIn(t *testing.T) {
	db := dbtest.Open(t)
	id := &auth.GoogleIdentity{UID: "g-1", Email: "New@Example.com", Name: "Newcomer"}

	_, err := auth.GoogleAdminSignIn(db, id)
	assert.ErrorIs(t, err, auth.ErrNotApproved)

	var pending models.Admin
	require.NoError(t, db.Where("email = ?", "new@example.com").First(&pending).Error)
	assert.False(t, pending.Approved)
	assert.Equal(t, permissions.RoleOperator, pending.Role)
	assert.Equal(t, models.ProviderGoogle, pending.Provider)

	require.NoError(t, db.Model(&pending).Update("approved", true).Error)
	admin, err := auth.GoogleAdminSignIn(db, id)
	require.NoError(t, err)
	assert.Equal(t, pending.ID, admin.ID)
}

func TestGoogleAdminSignInRejectsCustomerEmail(t *testing.T) {
	db := dbtest.Open(t)
	_, err := auth.RegisterCustomer(db, auth.CustomerRegistration{
		Email: "buyer@example.com", Name: "Buyer", Password: "password123",
	})
	require.NoError(t, err)

	_, err = auth.GoogleAdminSignIn(db, &auth.GoogleIdentity{Email: "buyer@example.com"})
	assert.ErrorIs(t, err, auth.ErrEmailTaken)
}
