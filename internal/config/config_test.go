package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "STORAGE_BACKEND", "BUNNY_STORAGE_ZONE", "BUNNY_STORAGE_REGION",
		"BUNNY_API_KEY", "BUNNY_PULL_ZONE", "SESSION_TTL", "STUDIO_TRUST_REFERER",
		"MINIO_ENDPOINT", "MINIO_BUCKET", "MINIO_USE_SSL", "S3_REGION",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, BackendBunny, cfg.StorageBackend)
	assert.Equal(t, "de", cfg.Bunny.Region)
	assert.Empty(t, cfg.Bunny.StorageZone)
	assert.Empty(t, cfg.Bunny.PullZone)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.False(t, cfg.StudioTrustReferer)
	assert.Equal(t, "localhost:9000", cfg.Minio.Endpoint)
	assert.Equal(t, "startup-images", cfg.Minio.Bucket)
	assert.False(t, cfg.Minio.UseSSL)
	assert.Equal(t, "us-east-1", cfg.S3.Region)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "3003")
	t.Setenv("STORAGE_BACKEND", "MINIO")
	t.Setenv("BUNNY_STORAGE_ZONE", "startups")
	t.Setenv("BUNNY_STORAGE_REGION", "ny")
	t.Setenv("BUNNY_API_KEY", "secret")
	t.Setenv("BUNNY_PULL_ZONE", "https://cdn.example.com")
	t.Setenv("SESSION_TTL", "90m")
	t.Setenv("STUDIO_TRUST_REFERER", "true")
	t.Setenv("MINIO_USE_SSL", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "3003", cfg.Port)
	assert.Equal(t, BackendMinio, cfg.StorageBackend)
	assert.Equal(t, BunnyConfig{
		StorageZone: "startups",
		Region:      "ny",
		APIKey:      "secret",
		PullZone:    "https://cdn.example.com",
	}, cfg.Bunny)
	assert.Equal(t, 90*time.Minute, cfg.SessionTTL)
	assert.True(t, cfg.StudioTrustReferer)
	assert.True(t, cfg.Minio.UseSSL)
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "ftp")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ftp")
}

func TestLoad_RejectsBadSessionTTL(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "")
	t.Setenv("SESSION_TTL", "forever")

	_, err := Load()
	require.Error(t, err)
}

func TestSlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":    slog.LevelDebug,
		"WARN":     slog.LevelWarn,
		"error":    slog.LevelError,
		"info":     slog.LevelInfo,
		"nonsense": slog.LevelInfo,
	}
	for in, want := range tests {
		cfg := &Config{LogLevel: in}
		assert.Equal(t, want, cfg.SlogLevel(), in)
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("STARTUP_CMS_TEST_KEY", "")
	assert.Equal(t, "fallback", GetEnv("STARTUP_CMS_TEST_KEY", "fallback"))

	t.Setenv("STARTUP_CMS_TEST_KEY", "value")
	assert.Equal(t, "value", GetEnv("STARTUP_CMS_TEST_KEY", "fallback"))
}
