package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreBackendPostgres = "postgres"
	StoreBackendMemory   = "memory"
)

type Database struct {
	Host     string
	User     string
	Password string
	Name     string
	Port     string
	SSLMode  string

	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// DSN builds the connection string the postgres driver expects.
func (d Database) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode,
	)
}

type Compensation struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

type Config struct {
	Port         string
	GinMode      string
	LogLevel     string
	LogFormat    string
	StoreBackend string
	RedisURL     string
	JWTSecret    string
	DotEnvLoaded bool
	Database     Database
	Compensation Compensation
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	dotEnv := true
	if err := godotenv.Load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load .env: %w", err)
		}
		dotEnv = false
	}

	cfg := Config{
		Port:         getEnv("PORT", "8080"),
		GinMode:      getEnv("GIN_MODE", "release"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFormat:    getEnv("LOG_FORMAT", "text"),
		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", StoreBackendPostgres)),
		RedisURL:     getEnv("REDIS_URL", "redis://redis:6379"),
		JWTSecret:    os.Getenv("JWT_SECRET"),
		DotEnvLoaded: dotEnv,
		Database: Database{
			Host:            getEnv("DB_HOST", "localhost"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        os.Getenv("DB_PASSWORD"),
			Name:            getEnv("DB_NAME", "mooveit"),
			Port:            getEnv("DB_PORT", "5432"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxIdleConns:    10,
			MaxOpenConns:    100,
			ConnMaxLifetime: time.Hour,
		},
		Compensation: Compensation{
			MaxAttempts: 5,
			BaseDelay:   100 * time.Millisecond,
		},
	}

	var err error
	if cfg.Compensation.MaxAttempts, err = getEnvInt("COMPENSATION_MAX_ATTEMPTS", cfg.Compensation.MaxAttempts); err != nil {
		return Config{}, err
	}
	if cfg.Compensation.BaseDelay, err = getEnvDuration("COMPENSATION_BASE_DELAY", cfg.Compensation.BaseDelay); err != nil {
		return Config{}, err
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.StoreBackend != StoreBackendPostgres && c.StoreBackend != StoreBackendMemory {
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", StoreBackendPostgres, StoreBackendMemory, c.StoreBackend)
	}
	if c.Compensation.MaxAttempts < 1 {
		return errors.New("COMPENSATION_MAX_ATTEMPTS must be at least 1")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
