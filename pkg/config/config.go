package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Uploads  UploadsConfig
	Polling  PollingConfig
	Exports  ExportsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// UploadsConfig controls component image storage and validation.
type UploadsConfig struct {
	StorageDir       string
	SignedURLSecret  string
	SignedURLTTL     time.Duration
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// PollingConfig carries the refresh intervals consumed by client pollers
// and the TTL of the server-side pending-count cache.
type PollingConfig struct {
	WorkerInterval    time.Duration
	DashboardInterval time.Duration
	PendingCacheTTL   time.Duration
}

// ExportsConfig configures asynchronous history export generation.
type ExportsConfig struct {
	Enabled           bool
	StorageDir        string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
	CleanupInterval   time.Duration
	WorkerConcurrency int
	WorkerRetries     int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	maxUploadSize := v.GetInt64("UPLOADS_MAX_FILE_SIZE")
	if maxUploadSize <= 0 {
		maxUploadSize = 8 * 1024 * 1024
	}
	cfg.Uploads = UploadsConfig{
		StorageDir:       v.GetString("UPLOADS_STORAGE_DIR"),
		SignedURLSecret:  v.GetString("UPLOADS_SIGNED_URL_SECRET"),
		SignedURLTTL:     parseDuration(v.GetString("UPLOADS_SIGNED_URL_TTL"), 30*time.Minute),
		MaxFileSizeBytes: maxUploadSize,
		AllowedMIMEs:     splitAndTrim(v.GetString("UPLOADS_ALLOWED_MIME_TYPES")),
	}

	cfg.Polling = PollingConfig{
		WorkerInterval:    parseDuration(v.GetString("POLL_WORKER_INTERVAL"), 5*time.Second),
		DashboardInterval: parseDuration(v.GetString("POLL_DASHBOARD_INTERVAL"), 30*time.Second),
		PendingCacheTTL:   parseDuration(v.GetString("PENDING_CACHE_TTL"), 15*time.Second),
	}

	cfg.Exports = ExportsConfig{
		Enabled:           v.GetBool("ENABLE_EXPORTS"),
		StorageDir:        v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret:   v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:      parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), 24*time.Hour),
		CleanupInterval:   parseDuration(v.GetString("EXPORTS_CLEANUP_INTERVAL"), time.Hour),
		WorkerConcurrency: v.GetInt("EXPORTS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("EXPORTS_WORKER_RETRIES"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "fleet_compliance")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("UPLOADS_STORAGE_DIR", "./uploads")
	v.SetDefault("UPLOADS_SIGNED_URL_SECRET", "dev_uploads_secret")
	v.SetDefault("UPLOADS_SIGNED_URL_TTL", "30m")
	v.SetDefault("UPLOADS_MAX_FILE_SIZE", 8*1024*1024)
	v.SetDefault("UPLOADS_ALLOWED_MIME_TYPES", "image/jpeg,image/png,image/webp")

	v.SetDefault("POLL_WORKER_INTERVAL", "5s")
	v.SetDefault("POLL_DASHBOARD_INTERVAL", "30s")
	v.SetDefault("PENDING_CACHE_TTL", "15s")

	v.SetDefault("ENABLE_EXPORTS", true)
	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("EXPORTS_CLEANUP_INTERVAL", "1h")
	v.SetDefault("EXPORTS_WORKER_CONCURRENCY", 1)
	v.SetDefault("EXPORTS_WORKER_RETRIES", 3)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
