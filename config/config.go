package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	RunAddress    string
	DatabaseURL   string
	JWTSecret     string
	SessionTTL    time.Duration
	UploadDir     string
	PublicBaseURL string
	LogLevel      string
	CORSOrigins   []string

	OwnerEmail    string
	OwnerPassword string

	SMTP     SMTP
	Telr     Telr
	Firebase Firebase
}

type SMTP struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// Enabled reports whether outbound email is configured.
func (s SMTP) Enabled() bool {
	return s.Host != "" && s.From != ""
}

type Telr struct {
	APIURL        string
	Mode          string // "live", "sandbox" or "dev"
	WebhookSecret string
}

func (t Telr) Sandbox() bool {
	return t.Mode == "sandbox" || t.Mode == "dev"
}

type Firebase struct {
	CredentialsJSON string
	ProjectID       string
}

func (f Firebase) Enabled() bool {
	return f.CredentialsJSON != "" && f.ProjectID != ""
}

// Load reads .env (if present), then the environment, then command-line flags.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		RunAddress:    ":" + getEnv("PORT", "8080"),
		DatabaseURL:   databaseURL(),
		JWTSecret:     getEnv("JWT_SECRET", ""),
		SessionTTL:    getDuration("SESSION_TTL", 24*time.Hour),
		UploadDir:     getEnv("UPLOAD_DIR", "./uploads"),
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		CORSOrigins:   splitList(getEnv("CORS_ORIGINS", "*")),
		OwnerEmail:    getEnv("OWNER_EMAIL", ""),
		OwnerPassword: getEnv("OWNER_PASSWORD", ""),
		SMTP: SMTP{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getInt("SMTP_PORT", 587),
			User:     getEnv("SMTP_USER", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", ""),
		},
		Telr: Telr{
			APIURL:        getEnv("TELR_API_URL", "https://secure.telr.com/gateway/order.json"),
			Mode:          strings.ToLower(getEnv("TELR_MODE", "live")),
			WebhookSecret: getEnv("TELR_WEBHOOK_SECRET", ""),
		},
		Firebase: Firebase{
			CredentialsJSON: getEnv("FIREBASE_CREDENTIALS_JSON", ""),
			ProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
		},
	}
	cfg.RunAddress = getEnv("RUN_ADDRESS", cfg.RunAddress)

	flag.StringVar(&cfg.RunAddress, "addr", cfg.RunAddress, "server address and port")
	flag.Parse()

	return cfg
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("database is not configured: set DATABASE_URL or DB_HOST/DB_NAME")
	}
	if len(c.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 characters")
	}
	if len(c.CORSOrigins) == 0 {
		return fmt.Errorf("CORS_ORIGINS must list at least one origin or *")
	}
	return nil
}

func databaseURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	host := os.Getenv("DB_HOST")
	name := os.Getenv("DB_NAME")
	if host == "" || name == "" {
		return ""
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		host,
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		name,
		getEnv("DB_PORT", "5432"),
		getEnv("DB_SSLMODE", "disable"),
	)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
