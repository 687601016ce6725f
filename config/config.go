package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Dosada05/lan-tournament/storage"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	StorageDriver string
	DatabaseURL   string
	JWTSecretKey  string
	ServerPort    int

	// CurrentEventID is the event the engine serves.
	CurrentEventID   int
	ActionTokenTTL   time.Duration
	SnapshotInterval time.Duration

	TimeTrialPasswordHash string
	IngestRatePerSecond   int
	IngestBurst           int

	CORSAllowedOrigins []string

	R2 storage.CloudflareR2UploaderConfig
	// ArchiveKeep limits archived snapshots per event, 0 keeps all.
	ArchiveKeep int

	DBMaxOpenConns    int
	DBConnMaxLifetime time.Duration
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		StorageDriver:         getEnv("STORAGE_DRIVER", DriverPostgres),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		JWTSecretKey:          os.Getenv("JWT_SECRET_KEY"),
		TimeTrialPasswordHash: os.Getenv("TIMETRIAL_PASSWORD_HASH"),
		CORSAllowedOrigins:    splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		R2: storage.CloudflareR2UploaderConfig{
			AccountID:       os.Getenv("R2_ACCOUNT_ID"),
			AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
			BucketName:      os.Getenv("R2_BUCKET_NAME"),
			PublicBaseURL:   os.Getenv("R2_PUBLIC_BASE_URL"),
		},
	}

	switch cfg.StorageDriver {
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
		}
	case DriverMemory:
	default:
		return nil, fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverMemory, cfg.StorageDriver)
	}

	if cfg.JWTSecretKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	var err error
	if cfg.ServerPort, err = getInt("SERVER_PORT", 8080); err != nil {
		return nil, err
	}
	if cfg.ServerPort <= 0 || cfg.ServerPort > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", cfg.ServerPort)
	}

	if cfg.CurrentEventID, err = getInt("CURRENT_EVENT_ID", 0); err != nil {
		return nil, err
	}
	if cfg.CurrentEventID <= 0 {
		return nil, fmt.Errorf("CURRENT_EVENT_ID must be positive, got %d", cfg.CurrentEventID)
	}

	if cfg.ActionTokenTTL, err = getDuration("ACTION_TOKEN_TTL", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.SnapshotInterval, err = getDuration("SNAPSHOT_INTERVAL", time.Hour); err != nil {
		return nil, err
	}

	if cfg.IngestRatePerSecond, err = getInt("INGEST_RATE_PER_SECOND", 2); err != nil {
		return nil, err
	}
	if cfg.IngestBurst, err = getInt("INGEST_BURST", 10); err != nil {
		return nil, err
	}
	if cfg.IngestRatePerSecond <= 0 || cfg.IngestBurst <= 0 {
		return nil, fmt.Errorf("INGEST_RATE_PER_SECOND and INGEST_BURST must be positive")
	}

	if cfg.ArchiveKeep, err = getInt("R2_KEEP_SNAPSHOTS", 0); err != nil {
		return nil, err
	}
	if cfg.ArchiveKeep < 0 {
		return nil, fmt.Errorf("R2_KEEP_SNAPSHOTS must not be negative, got %d", cfg.ArchiveKeep)
	}

	if cfg.DBMaxOpenConns, err = getInt("DB_MAX_OPEN_CONNS", 25); err != nil {
		return nil, err
	}
	if cfg.DBMaxOpenConns <= 0 {
		return nil, fmt.Errorf("DB_MAX_OPEN_CONNS must be positive, got %d", cfg.DBMaxOpenConns)
	}
	if cfg.DBConnMaxLifetime, err = getDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return v, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, v)
	}
	return v, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
