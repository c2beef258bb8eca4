package auth

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/junaidrashid-git/crm-admin-api/apperr"
	"github.com/junaidrashid-git/crm-admin-api/models"
	"github.com/junaidrashid-git/crm-admin-api/permissions"
)

const minPasswordLength = 8

var (
	ErrEmailTaken         = apperr.Conflict("Email already registered")
	ErrInvalidCredentials = apperr.Unauthenticated("Invalid email or password")
	ErrNotApproved        = apperr.Forbidden("Admin account is awaiting approval")
	ErrAccountGone        = apperr.Unauthenticated("Account no longer exists")
)

// NormalizeEmail lower-cases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail returns the normalised address or a validation error.
func ValidateEmail(email string) (string, error) {
	email = NormalizeEmail(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperr.Validation("Invalid email address")
	}
	return email, nil
}

func HashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", apperr.Validation("Password must be at least %d characters", minPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// EnsureEmailAvailable fails with ErrEmailTaken when email belongs to any admin or
// customer other than the excluded ids. Addresses are unique across both tables.
func EnsureEmailAvailable(db *gorm.DB, email string, exceptCustomerID, exceptAdminID uint) error {
	var count int64
	if err := db.Model(&models.Customer{}).
		Where("email = ? AND id <> ?", email, exceptCustomerID).
		Count(&count).Error; err != nil {
		return fmt.Errorf("check customer email: %w", err)
	}
	if count > 0 {
		return ErrEmailTaken
	}
	if err := db.Model(&models.Admin{}).
		Where("email = ? AND id <> ?", email, exceptAdminID).
		Count(&count).Error; err != nil {
		return fmt.Errorf("check admin email: %w", err)
	}
	if count > 0 {
		return ErrEmailTaken
	}
	return nil
}

type CustomerRegistration struct {
	Email    string
	Name     string
	Phone    string
	Password string
}

// RegisterCustomer creates a self-service customer account.
func RegisterCustomer(db *gorm.DB, reg CustomerRegistration) (*models.Customer, error) {
	email, err := ValidateEmail(reg.Email)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(reg.Name)
	if name == "" {
		return nil, apperr.Validation("Name is required")
	}
	hash, err := HashPassword(reg.Password)
	if err != nil {
		return nil, err
	}

	customer := models.Customer{
		Email:        email,
		Name:         name,
		Phone:        strings.TrimSpace(reg.Phone),
		PasswordHash: hash,
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := EnsureEmailAvailable(tx, email, 0, 0); err != nil {
			return err
		}
		if err := tx.Create(&customer).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrEmailTaken
			}
			return fmt.Errorf("insert customer: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

type NewAdmin struct {
	Email    string
	Name     string
	Password string
	Role     permissions.Role
}

// CreateAdmin creates an approved staff account with a password.
func CreateAdmin(db *gorm.DB, in NewAdmin) (*models.Admin, error) {
	email, err := ValidateEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if !in.Role.IsStaff() {
		return nil, apperr.Validation("Invalid role %q", in.Role)
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	admin := models.Admin{
		Email:        email,
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: hash,
		Role:         in.Role,
		Provider:     models.ProviderPassword,
		Approved:     true,
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := EnsureEmailAvailable(tx, email, 0, 0); err != nil {
			return err
		}
		if err := tx.Create(&admin).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrEmailTaken
			}
			return fmt.Errorf("insert admin: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &admin, nil
}

// AuthenticateAdmin checks an email/password pair for a staff account.
func AuthenticateAdmin(db *gorm.DB, email, password string) (*models.Admin, error) {
	var admin models.Admin
	if err := db.Where("email = ?", NormalizeEmail(email)).First(&admin).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get admin: %w", err)
	}
	if admin.PasswordHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	if !admin.Approved {
		return nil, ErrNotApproved
	}

	now := time.Now()
	if err := db.Model(&admin).UpdateColumn("last_login_at", now).Error; err != nil {
		return nil, fmt.Errorf("update last login: %w", err)
	}
	admin.LastLoginAt = &now
	return &admin, nil
}

// AuthenticateCustomer checks an email/password pair for a customer account.
// Customers created by staff without a password cannot sign in.
func AuthenticateCustomer(db *gorm.DB, email, password string) (*models.Customer, error) {
	var customer models.Customer
	if err := db.Where("email = ?", NormalizeEmail(email)).First(&customer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}
	if customer.PasswordHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(customer.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return &customer, nil
}

func AdminPrincipal(a *models.Admin) Principal {
	return Principal{Kind: KindAdmin, ID: a.ID, Email: a.Email, Name: a.Name, Role: a.Role}
}

func CustomerPrincipal(c *models.Customer) Principal {
	return Principal{Kind: KindCustomer, ID: c.ID, Email: c.Email, Name: c.Name, Role: permissions.RoleCustomer}
}

// Refresh reloads the account behind a token so that deleted, unapproved or
// re-roled admins take effect on their next request.
func Refresh(db *gorm.DB, p Principal) (Principal, error) {
	switch p.Kind {
	case KindAdmin:
		var admin models.Admin
		if err := db.First(&admin, p.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return Principal{}, ErrAccountGone
			}
			return Principal{}, fmt.Errorf("load admin: %w", err)
		}
		if !admin.Approved {
			return Principal{}, ErrNotApproved
		}
		return AdminPrincipal(&admin), nil
	case KindCustomer:
		var customer models.Customer
		if err := db.First(&customer, p.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return Principal{}, ErrAccountGone
			}
			return Principal{}, fmt.Errorf("load customer: %w", err)
		}
		return CustomerPrincipal(&customer), nil
	}
	return Principal{}, ErrInvalidToken
}
