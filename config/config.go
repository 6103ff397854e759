package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// This function will Load the ENVIORNMENT VARIABLES from .env if GO_ENV variable is not set
func LoadENV() error {
	goEnv := os.Getenv("GO_ENV")

	if goEnv == "" || goEnv == "development" {
		err := godotenv.Load()
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	return nil
}

type EnviornmentVariable struct {
	GO_ENV              string
	PORT                int
	LOG_LEVEL           string
	ALLOWED_ORIGINS     string
	NEXT_PUBLIC_API_URL string
	// Data files (shards, exams.json, admin_updates.json, user fallbacks)
	DATA_DIR       string
	WATCH_DATA_DIR bool
	CRON_ENABLED   bool
	// Redis Configuration
	REDIS_URL                  string
	CACHE_TTL_SECONDS          int
	RESPONSE_CACHE_TTL_SECONDS int
	// Admin access
	ADMIN_SECRET string
	JWT_SECRET   string
	JWT_ISSUER   string
	// Optional Postgres for reviews and the admin audit log
	DB_USER_NAME string
	DB_PASSWORD  string
	DB_NAME      string
	DB_HOST      string
	DB_PORT      string
	DB_SSL_MODE  string
	// Optional S3-compatible storage for ledger backups
	DO_SPACES_ACCESS_KEY string
	DO_SPACES_SECRET_KEY string
	DO_SPACES_BUCKET     string
	DO_SPACES_REGION     string
	DO_SPACES_ENDPOINT   string
}

func Get() (*EnviornmentVariable, error) {
	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err != nil {
		port = 4000
	}

	goEnv := os.Getenv("GO_ENV")
	if goEnv == "" {
		goEnv = os.Getenv("NODE_ENV")
	}

	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = "./models"
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}

	jwtIssuer := os.Getenv("JWT_ISSUER")
	if jwtIssuer == "" {
		jwtIssuer = "college-explorer-api"
	}

	dbPort := os.Getenv("DB_PORT")
	if dbPort == "" {
		dbPort = "5432"
	}

	envVariables := &EnviornmentVariable{
		GO_ENV:              goEnv,
		PORT:                port,
		LOG_LEVEL:           os.Getenv("LOG_LEVEL"),
		ALLOWED_ORIGINS:     os.Getenv("ALLOWED_ORIGINS"),
		NEXT_PUBLIC_API_URL: os.Getenv("NEXT_PUBLIC_API_URL"),
		DATA_DIR:            dataDir,
		WATCH_DATA_DIR:      envBool("WATCH_DATA_DIR", false),
		CRON_ENABLED:        envBool("CRON_ENABLED", true),
		// Redis
		REDIS_URL:                  redisURL,
		CACHE_TTL_SECONDS:          envInt("CACHE_TTL_SECONDS", 3600),
		RESPONSE_CACHE_TTL_SECONDS: envInt("RESPONSE_CACHE_TTL_SECONDS", 300),
		// Admin
		ADMIN_SECRET: os.Getenv("ADMIN_SECRET"),
		JWT_SECRET:   os.Getenv("JWT_SECRET"),
		JWT_ISSUER:   jwtIssuer,
		// Database
		DB_USER_NAME: os.Getenv("DB_USER_NAME"),
		DB_PASSWORD:  os.Getenv("DB_PASSWORD"),
		DB_NAME:      os.Getenv("DB_NAME"),
		DB_HOST:      os.Getenv("DB_HOST"),
		DB_PORT:      dbPort,
		DB_SSL_MODE:  os.Getenv("DB_SSL_MODE"),
		// Spaces
		DO_SPACES_ACCESS_KEY: os.Getenv("DO_SPACES_ACCESS_KEY"),
		DO_SPACES_SECRET_KEY: os.Getenv("DO_SPACES_SECRET_KEY"),
		DO_SPACES_BUCKET:     os.Getenv("DO_SPACES_BUCKET"),
		DO_SPACES_REGION:     os.Getenv("DO_SPACES_REGION"),
		DO_SPACES_ENDPOINT:   os.Getenv("DO_SPACES_ENDPOINT"),
	}

	return envVariables, nil
}

// IsProduction reports whether GO_ENV (or NODE_ENV) is "production".
func (e *EnviornmentVariable) IsProduction() bool {
	return strings.EqualFold(e.GO_ENV, "production")
}

// DatabaseConfigured reports whether enough DB_* variables are set to open Postgres.
func (e *EnviornmentVariable) DatabaseConfigured() bool {
	return e.DB_HOST != "" && e.DB_NAME != "" && e.DB_USER_NAME != ""
}

// BackupConfigured reports whether ledger backups can be uploaded.
func (e *EnviornmentVariable) BackupConfigured() bool {
	return e.DO_SPACES_BUCKET != "" && e.DO_SPACES_REGION != "" &&
		e.DO_SPACES_ACCESS_KEY != "" && e.DO_SPACES_SECRET_KEY != ""
}

func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
