package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Storage backends understood by the server.
const (
	BackendBunny = "bunny"
	BackendS3    = "s3"
	BackendMinio = "minio"
)

// Config holds the server configuration. Values come from the environment;
// apart from the backend name nothing is validated up front.
type Config struct {
	Port           string
	StorageBackend string

	Bunny BunnyConfig
	S3    S3Config
	Minio MinioConfig

	EditorPassword     string
	SessionTTL         time.Duration
	StudioSecret       string
	StudioAccessKey    string
	StudioTrustReferer bool

	LogLevel  string
	LogFormat string
}

// BunnyConfig describes the Bunny storage zone and its pull zone.
type BunnyConfig struct {
	StorageZone string
	Region      string
	APIKey      string
	PullZone    string
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Load reads the configuration from environment variables, applying defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           GetEnv("PORT", "8080"),
		StorageBackend: strings.ToLower(GetEnv("STORAGE_BACKEND", BackendBunny)),
		Bunny: BunnyConfig{
			StorageZone: os.Getenv("BUNNY_STORAGE_ZONE"),
			Region:      GetEnv("BUNNY_STORAGE_REGION", "de"),
			APIKey:      os.Getenv("BUNNY_API_KEY"),
			PullZone:    os.Getenv("BUNNY_PULL_ZONE"),
		},
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          GetEnv("S3_REGION", "us-east-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
		Minio: MinioConfig{
			Endpoint:  GetEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			Bucket:    GetEnv("MINIO_BUCKET", "startup-images"),
			UseSSL:    GetEnv("MINIO_USE_SSL", "false") == "true",
		},
		EditorPassword:     os.Getenv("EDITOR_PASSWORD"),
		StudioSecret:       os.Getenv("STUDIO_SECRET"),
		StudioAccessKey:    os.Getenv("STUDIO_ACCESS_KEY"),
		StudioTrustReferer: GetEnv("STUDIO_TRUST_REFERER", "false") == "true",
		LogLevel:           GetEnv("LOG_LEVEL", "info"),
		LogFormat:          GetEnv("LOG_FORMAT", "json"),
	}

	ttl, err := time.ParseDuration(GetEnv("SESSION_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("parse SESSION_TTL: %w", err)
	}
	cfg.SessionTTL = ttl

	switch cfg.StorageBackend {
	case BackendBunny, BackendS3, BackendMinio:
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.StorageBackend)
	}

	return cfg, nil
}

// SlogLevel maps LogLevel onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GetEnv gets environment variable with default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
