package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/junaidrashid-git/crm-admin-api/auth"
	"github.com/junaidrashid-git/crm-admin-api/config"
	"github.com/junaidrashid-git/crm-admin-api/database"
	"github.com/junaidrashid-git/crm-admin-api/events"
	"github.com/junaidrashid-git/crm-admin-api/mailer"
	"github.com/junaidrashid-git/crm-admin-api/payment"
	"github.com/junaidrashid-git/crm-admin-api/routes"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)})))
	slog.Info("starting application")

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Init DB
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to DB", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		slog.Error("auto-migrate failed", "error", err)
		os.Exit(1)
	}
	if cfg.OwnerEmail != "" && cfg.OwnerPassword != "" {
		hash, err := auth.HashPassword(cfg.OwnerPassword)
		if err != nil {
			slog.Error("invalid OWNER_PASSWORD", "error", err)
			os.Exit(1)
		}
		if err := database.SeedOwner(db, cfg.OwnerEmail, hash); err != nil {
			slog.Error("failed to seed owner", "error", err)
			os.Exit(1)
		}
	}

	deps := routes.Deps{
		DB:     db,
		Config: cfg,
		Issuer: auth.NewTokenIssuer(cfg.JWTSecret, cfg.SessionTTL),
		Mailer: mailer.Disabled{},
		Telr:   payment.NewClient(cfg.Telr.APIURL),
		Hub:    events.NewHub(),
	}
	if cfg.SMTP.Enabled() {
		deps.Mailer = mailer.NewSMTP(mailer.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			User:     cfg.SMTP.User,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	} else {
		slog.Warn("SMTP is not configured; campaign sends will be logged as failed")
	}
	if cfg.Firebase.Enabled() {
		verifier, err := auth.NewFirebaseVerifier(context.Background(), cfg.Firebase.CredentialsJSON, cfg.Firebase.ProjectID)
		if err != nil {
			slog.Error("failed to init firebase", "error", err)
			os.Exit(1)
		}
		deps.Verifier = verifier
	}

	// Gin setup
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	// Allow product spreadsheets and images up to 32 MB in memory
	r.MaxMultipartMemory = 32 << 20

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: !allowsAnyOrigin(cfg.CORSOrigins),
		MaxAge:           12 * time.Hour,
	}))

	// Serve uploaded images
	r.Static("/uploads", cfg.UploadDir)

	routes.SetupRoutes(r, deps)

	srv := &http.Server{
		Addr:         cfg.RunAddress,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	slog.Info("server running", "addr", cfg.RunAddress)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down...")

	ctxShut, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShut()
	if err := srv.Shutdown(ctxShut); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	slog.Info("server stopped")
}

func logLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}

// gin-contrib/cors refuses a wildcard origin together with credentials.
func allowsAnyOrigin(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
