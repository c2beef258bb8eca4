// Package database owns the process-wide gorm handle.
package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/junaidrashid-git/crm-admin-api/models"
	"github.com/junaidrashid-git/crm-admin-api/permissions"
)

var (
	once    sync.Once
	shared  *gorm.DB
	initErr error
)

// Connect opens the shared pool on first use and returns it on every later call.
func Connect(dsn string) (*gorm.DB, error) {
	once.Do(func() {
		shared, initErr = open(dsn)
	})
	return shared, initErr
}

// Get returns the handle created by Connect, or nil before Connect succeeded.
func Get() *gorm.DB {
	return shared
}

func open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}

// Ping checks that the database answers within the context deadline.
func Ping(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return errors.New("database not initialised")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Migrate creates or updates every table. It runs at start-up only.
func Migrate(db *gorm.DB) error {
	if err := db.SetupJoinTable(&models.Customer{}, "Tags", &models.CustomerTag{}); err != nil {
		return fmt.Errorf("setup customer_tags: %w", err)
	}
	if err := db.AutoMigrate(
		&models.Admin{},
		&models.Tag{},
		&models.Customer{},
		&models.CustomerTag{},
		&models.Course{},
		&models.Enrollment{},
		&models.Category{},
		&models.ShippingRate{},
		&models.Product{},
		&models.Order{},
		&models.OrderItem{},
		&models.EmailTemplate{},
		&models.EmailLog{},
		&models.PaymentSettings{},
		&models.SystemSetting{},
		&models.AuditLog{},
	); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	settings := models.PaymentSettings{ID: models.PaymentSettingsID, TelrMode: "sandbox"}
	if err := db.Where(models.PaymentSettings{ID: models.PaymentSettingsID}).
		FirstOrCreate(&settings).Error; err != nil {
		return fmt.Errorf("seed payment settings: %w", err)
	}
	return nil
}

// SeedOwner creates the bootstrap OWNER account when no admin exists yet.
// passwordHash must already be hashed.
func SeedOwner(db *gorm.DB, email, passwordHash string) error {
	if email == "" || passwordHash == "" {
		return nil
	}
	var count int64
	if err := db.Model(&models.Admin{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count admins: %w", err)
	}
	if count > 0 {
		return nil
	}
	owner := models.Admin{
		Email:        strings.ToLower(strings.TrimSpace(email)),
		Name:         "Owner",
		PasswordHash: passwordHash,
		Role:         permissions.RoleOwner,
		Provider:     models.ProviderPassword,
		Approved:     true,
	}
	if err := db.Create(&owner).Error; err != nil {
		return fmt.Errorf("create owner: %w", err)
	}
	slog.Info("bootstrap owner created", "email", owner.Email)
	return nil
}
