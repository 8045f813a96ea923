package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures all tunable parameters for the API process. Values are
// loaded from environment variables with defaults that let the binary run
// locally without excessive setup.
type Config struct {
	HTTPAddr          string
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration

	// StorageBackend selects "memory" or "postgres".
	StorageBackend string
	DatabaseURL    string

	JWTSecret string
	TokenTTL  time.Duration

	// Notifier selects "log" or "smtp".
	Notifier     string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	FromName     string
	FromEmail    string

	// AuthRatePerMinute bounds login/register attempts per client IP.
	AuthRatePerMinute int
	AuthRateBurst     int

	LogLevel string
}

func defaultConfig() Config {
	return Config{
		HTTPAddr:          ":8000",
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		ShutdownTimeout:   10 * time.Second,
		StorageBackend:    "memory",
		TokenTTL:          24 * time.Hour,
		Notifier:          "log",
		SMTPPort:          587,
		FromName:          "WesRides",
		AuthRatePerMinute: 10,
		AuthRateBurst:     5,
		LogLevel:          "info",
	}
}

func Load() (Config, error) {
	cfg := defaultConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadHeaderTimeout, "HTTP_READ_HEADER_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	setStringFromEnv(&cfg.StorageBackend, "STORAGE_BACKEND")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.StorageBackend == "postgres" && cfg.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("DATABASE_URL is required when STORAGE_BACKEND=postgres"))
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		errs = append(errs, fmt.Errorf("JWT_SECRET is required"))
	}
	setDurationFromEnv(&cfg.TokenTTL, "TOKEN_TTL", &errs)

	setStringFromEnv(&cfg.Notifier, "NOTIFIER")
	setStringFromEnv(&cfg.SMTPHost, "SMTP_HOST")
	setIntFromEnv(&cfg.SMTPPort, "SMTP_PORT", &errs)
	cfg.SMTPUsername = os.Getenv("SMTP_USERNAME")
	cfg.SMTPPassword = os.Getenv("SMTP_PASSWORD")
	setStringFromEnv(&cfg.FromName, "FROM_NAME")
	setStringFromEnv(&cfg.FromEmail, "FROM_EMAIL")
	if cfg.Notifier == "smtp" && (cfg.SMTPHost == "" || cfg.FromEmail == "") {
		errs = append(errs, fmt.Errorf("SMTP_HOST and FROM_EMAIL are required when NOTIFIER=smtp"))
	}

	setIntFromEnv(&cfg.AuthRatePerMinute, "AUTH_RATE_PER_MINUTE", &errs)
	setIntFromEnv(&cfg.AuthRateBurst, "AUTH_RATE_BURST", &errs)
	if cfg.AuthRatePerMinute <= 0 {
		errs = append(errs, fmt.Errorf("AUTH_RATE_PER_MINUTE must be > 0"))
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	return cfg, errors.Join(errs...)
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setIntFromEnv(target *int, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}
