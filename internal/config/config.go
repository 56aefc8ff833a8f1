package config

import (
	"os"
	"strconv"
	"strings"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// SQLiteConfig holds settings for the on-disk SQLite store.
type SQLiteConfig struct {
	Path string
}

// MinIOConfig holds object storage settings for MinIO.
// An empty Endpoint disables the completed-document archive.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Enabled reports whether object storage is configured.
func (c MinIOConfig) Enabled() bool {
	return c.Endpoint != ""
}

// SharingConfig holds the sharing workflow settings.
type SharingConfig struct {
	// StoreDriver selects the key-value store backend: memory, postgres or sqlite.
	StoreDriver      string
	PolicyFile       string
	PasswordLength   int
	WatchIntervalSec int
	PersistNotified  bool
	AuditMaxEntries  int
	InboxSize        int
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost  string
	BaseURL  string
	Port     string
	Timezone string
	Database DatabaseConfig
	SQLite   SQLiteConfig
	MinIO    MinIOConfig
	Sharing  SharingConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
func Load() *AppConfig {
	appHost := getEnv("APP_HOST", "localhost:8080")
	return &AppConfig{
		AppHost:  appHost,
		BaseURL:  strings.TrimRight(getEnv("APP_BASE_URL", "http://"+appHost), "/"),
		Port:     getEnv("PORT", "8080"),
		Timezone: getEnv("APP_TIMEZONE", "UTC"),
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		SQLite: SQLiteConfig{
			Path: getEnv("SQLITE_PATH", "docshare.db"),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Sharing: SharingConfig{
			StoreDriver:      strings.ToLower(getEnv("STORE_DRIVER", "memory")),
			PolicyFile:       getEnv("SHARE_POLICY_FILE", ""),
			PasswordLength:   getEnvInt("SHARE_PASSWORD_LENGTH", 8),
			WatchIntervalSec: getEnvInt("WATCH_INTERVAL_SEC", 30),
			PersistNotified:  getEnvBool("WATCH_PERSIST_NOTIFIED", false),
			AuditMaxEntries:  getEnvInt("AUDIT_MAX_ENTRIES", 1000),
			InboxSize:        getEnvInt("NOTIFICATION_INBOX_SIZE", 100),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}
