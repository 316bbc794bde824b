package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Blob cleanup modes.
const (
	CleanupInline = "inline"
	CleanupQueue  = "queue"
)

// Config captures all runtime configuration derived from environment variables.
type Config struct {
	Port              string
	DBURL             string
	DBAutoMigrate     bool
	ReadTimeoutSecs   int
	WriteTimeoutSecs  int
	IdleTimeoutSecs   int
	DBMaxConns        int
	DBMinConns        int
	DBMaxIdleSecs     int
	DBMaxLifeSecs     int
	DBConnTimeoutSecs int
	DBStatementCache  int

	JWTSecret     string
	JWTTTLMinutes int
	BcryptCost    int
	AdminUserName string
	AdminEmail    string
	AdminPassword string

	CloudinaryURL       string
	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	UploadMaxMB         int

	BlobCleanupMode        string
	BlobCleanupTimeoutSecs int
	AMQPURL                string

	RedisURL     string
	CacheTTLSecs int
}

// HasCloudinary reports whether Cloudinary credentials are configured.
func (c Config) HasCloudinary() bool {
	return c.CloudinaryURL != "" || (c.CloudinaryCloudName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != "")
}

// Load reads configuration from environment variables, applying defaults and
// validation. Variables from a .env file in the working directory are loaded
// first; the process environment wins over the file.
func Load() (Config, error) {
	return LoadFiles(".env")
}

// LoadFiles is Load with explicit dotenv files. Missing files are ignored.
func LoadFiles(files ...string) (Config, error) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := Config{
		Port:              getEnv("PORT", "8080"),
		DBURL:             os.Getenv("DB_URL"),
		DBAutoMigrate:     getEnvBool("DB_AUTO_MIGRATE", true),
		ReadTimeoutSecs:   getEnvInt("SERVER_READ_TIMEOUT", 15),
		WriteTimeoutSecs:  getEnvInt("SERVER_WRITE_TIMEOUT", 30),
		IdleTimeoutSecs:   getEnvInt("SERVER_IDLE_TIMEOUT", 60),
		DBMaxConns:        getEnvInt("DB_MAX_CONNS", 20),
		DBMinConns:        getEnvInt("DB_MIN_CONNS", 2),
		DBMaxIdleSecs:     getEnvInt("DB_MAX_CONN_IDLE_SECS", 300),
		DBMaxLifeSecs:     getEnvInt("DB_MAX_CONN_LIFETIME_SECS", 3600),
		DBConnTimeoutSecs: getEnvInt("DB_CONN_TIMEOUT_SECS", 10),
		DBStatementCache:  getEnvInt("DB_STATEMENT_CACHE_CAPACITY", 256),

		JWTSecret:     os.Getenv("JWT_SECRET"),
		JWTTTLMinutes: getEnvInt("JWT_TTL_MINUTES", 60),
		BcryptCost:    getEnvInt("BCRYPT_COST", 0),
		AdminUserName: getEnv("ADMIN_USERNAME", "admin"),
		AdminEmail:    getEnv("ADMIN_EMAIL", "admin@videostore.local"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),

		CloudinaryURL:       os.Getenv("CLOUDINARY_URL"),
		CloudinaryCloudName: os.Getenv("CLOUDINARY_CLOUD_NAME"),
		CloudinaryAPIKey:    os.Getenv("CLOUDINARY_API_KEY"),
		CloudinaryAPISecret: os.Getenv("CLOUDINARY_API_SECRET"),
		UploadMaxMB:         getEnvInt("UPLOAD_MAX_MB", 5),

		BlobCleanupMode:        strings.ToLower(getEnv("BLOB_CLEANUP_MODE", CleanupInline)),
		BlobCleanupTimeoutSecs: getEnvInt("BLOB_CLEANUP_TIMEOUT_SECS", 10),
		AMQPURL:                os.Getenv("AMQP_URL"),

		RedisURL:     os.Getenv("REDIS_URL"),
		CacheTTLSecs: getEnvInt("CACHE_TTL_SECS", 60),
	}

	if cfg.DBURL == "" {
		return Config{}, fmt.Errorf("DB_URL is required")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.JWTTTLMinutes <= 0 {
		return Config{}, fmt.Errorf("JWT_TTL_MINUTES must be positive")
	}
	if cfg.BcryptCost < 0 || cfg.BcryptCost > 31 {
		return Config{}, fmt.Errorf("BCRYPT_COST must be between 0 and 31")
	}
	if cfg.UploadMaxMB <= 0 {
		return Config{}, fmt.Errorf("UPLOAD_MAX_MB must be positive")
	}
	switch cfg.BlobCleanupMode {
	case CleanupInline:
	case CleanupQueue:
		if cfg.AMQPURL == "" {
			return Config{}, fmt.Errorf("AMQP_URL is required when BLOB_CLEANUP_MODE is %q", CleanupQueue)
		}
	default:
		return Config{}, fmt.Errorf("BLOB_CLEANUP_MODE must be %q or %q", CleanupInline, CleanupQueue)
	}
	if cfg.BlobCleanupTimeoutSecs <= 0 {
		return Config{}, fmt.Errorf("BLOB_CLEANUP_TIMEOUT_SECS must be positive")
	}
	if cfg.CacheTTLSecs < 0 {
		return Config{}, fmt.Errorf("CACHE_TTL_SECS must be non-negative")
	}
	if cfg.DBMaxConns <= 0 {
		return Config{}, fmt.Errorf("DB_MAX_CONNS must be positive")
	}
	if cfg.DBMinConns < 0 {
		return Config{}, fmt.Errorf("DB_MIN_CONNS must be non-negative")
	}
	if cfg.DBMaxConns > 0 && cfg.DBMinConns > cfg.DBMaxConns {
		return Config{}, fmt.Errorf("DB_MIN_CONNS cannot exceed DB_MAX_CONNS")
	}
	if cfg.DBStatementCache < 0 {
		return Config{}, fmt.Errorf("DB_STATEMENT_CACHE_CAPACITY must be non-negative")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}
