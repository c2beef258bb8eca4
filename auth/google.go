package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	firebase "firebase.google.com/go"
	fbauth "firebase.google.com/go/auth"
	"google.golang.org/api/option"
	"gorm.io/gorm"

	"github.com/junaidrashid-git/crm-admin-api/apperr"
	"github.com/junaidrashid-git/crm-admin-api/models"
	"github.com/junaidrashid-git/crm-admin-api/permissions"
)

// GoogleIdentity is what a verified Google ID token tells us about the caller.
type GoogleIdentity struct {
	UID     string
	Email   string
	Name    string
	Picture string
}

type IDTokenVerifier interface {
	Verify(ctx context.Context, idToken string) (*GoogleIdentity, error)
}

// FirebaseVerifier checks ID tokens issued by Firebase Authentication.
type FirebaseVerifier struct {
	client    *fbauth.Client
	projectID string
}

// NewFirebaseVerifier initialises the Firebase app from the credentials JSON
// blob itself, no key file on disk.
func NewFirebaseVerifier(ctx context.Context, credentialsJSON, projectID string) (*FirebaseVerifier, error) {
	opt := option.WithCredentialsJSON([]byte(credentialsJSON))
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opt)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase auth: %w", err)
	}
	return &FirebaseVerifier{client: client, projectID: projectID}, nil
}

func (v *FirebaseVerifier) Verify(ctx context.Context, idToken string) (*GoogleIdentity, error) {
	// Verify the token AND check for revocation
	token, err := v.client.VerifyIDTokenAndCheckRevoked(ctx, idToken)
	if err != nil {
		return nil, apperr.Unauthenticated("Invalid or revoked ID token")
	}
	if token.Audience != v.projectID {
		return nil, apperr.Unauthenticated("Invalid token audience")
	}

	email, _ := token.Claims["email"].(string)
	if email == "" {
		return nil, apperr.Unauthenticated("Email not found in token")
	}
	name, _ := token.Claims["name"].(string)
	picture, _ := token.Claims["picture"].(string)

	return &GoogleIdentity{UID: token.UID, Email: email, Name: name, Picture: picture}, nil
}

// GoogleAdminSignIn resolves a verified Google identity to a staff account.
// Unknown addresses are registered as unapproved operators and wait for an owner.
func GoogleAdminSignIn(db *gorm.DB, id *GoogleIdentity) (*models.Admin, error) {
	email := NormalizeEmail(id.Email)

	var admin models.Admin
	err := db.Where("email = ?", email).First(&admin).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := EnsureEmailAvailable(db, email, 0, 0); err != nil {
			return nil, err
		}
		admin = models.Admin{
			Email:    email,
			Name:     strings.TrimSpace(id.Name),
			Picture:  id.Picture,
			Role:     permissions.RoleOperator,
			Provider: models.ProviderGoogle,
			Approved: false,
		}
		if err := db.Create(&admin).Error; err != nil {
			return nil, fmt.Errorf("register admin: %w", err)
		}
		slog.Info("new admin registered, pending approval", "email", email)
		return nil, ErrNotApproved
	} else if err != nil {
		return nil, fmt.Errorf("get admin: %w", err)
	}

	// Update profile if changed
	if err := db.Model(&admin).Updates(models.Admin{Name: id.Name, Picture: id.Picture}).Error; err != nil {
		return nil, fmt.Errorf("update admin profile: %w", err)
	}
	if !admin.Approved {
		return nil, ErrNotApproved
	}
	return &admin, nil
}
