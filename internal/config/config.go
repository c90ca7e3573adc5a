// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config is the server configuration. Every field maps to one environment variable.
type Config struct {
	DatabaseURL        string        `validate:"required"`
	ServerAddr         string        `validate:"required"`
	JWTSecret          string        `validate:"required,min=8"`
	AutoMigrate        bool
	MaxOpenConns       int           `validate:"min=1"`
	MaxIdleConns       int           `validate:"min=0,ltefield=MaxOpenConns"`
	TxMaxAttempts      int           `validate:"min=1,max=10"`
	TxBaseDelay        time.Duration `validate:"min=0"`
	LoanPeriodDays     int           `validate:"min=1,max=365"`
	CORSAllowedOrigins []string
}

// Load reads an optional .env file and then the process environment.
// A missing .env file is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from an arbitrary lookup function and validates it.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	get := func(k, def string) string {
		if v, ok := lookup(k); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	cfg := &Config{
		DatabaseURL: get("DATABASE_URL", ""),
		ServerAddr:  get("SERVER_ADDR", ":8080"),
		JWTSecret:   get("JWT_SECRET", ""),
	}

	var err error
	if cfg.AutoMigrate, err = strconv.ParseBool(get("AUTO_MIGRATE", "false")); err != nil {
		return nil, fmt.Errorf("AUTO_MIGRATE: %w", err)
	}
	if cfg.MaxOpenConns, err = strconv.Atoi(get("DB_MAX_OPEN_CONNS", "20")); err != nil {
		return nil, fmt.Errorf("DB_MAX_OPEN_CONNS: %w", err)
	}
	if cfg.MaxIdleConns, err = strconv.Atoi(get("DB_MAX_IDLE_CONNS", "10")); err != nil {
		return nil, fmt.Errorf("DB_MAX_IDLE_CONNS: %w", err)
	}
	if cfg.TxMaxAttempts, err = strconv.Atoi(get("TX_MAX_ATTEMPTS", "3")); err != nil {
		return nil, fmt.Errorf("TX_MAX_ATTEMPTS: %w", err)
	}
	if cfg.TxBaseDelay, err = time.ParseDuration(get("TX_BASE_DELAY", "100ms")); err != nil {
		return nil, fmt.Errorf("TX_BASE_DELAY: %w", err)
	}
	if cfg.LoanPeriodDays, err = strconv.Atoi(get("LOAN_PERIOD_DAYS", "14")); err != nil {
		return nil, fmt.Errorf("LOAN_PERIOD_DAYS: %w", err)
	}
	for _, origin := range strings.Split(get("CORS_ALLOWED_ORIGINS", ""), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, origin)
		}
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
