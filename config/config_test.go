package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("SERVER_PORT", "")
	t.Setenv("JWT_TTL", "not-a-duration")

	cfg := LoadConfig()

	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "document-changes", cfg.MQ.Channel)
	assert.True(t, cfg.RabbitMQ.QueueDurable)
	assert.Equal(t, []string{"*"}, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, float64(5), cfg.HTTP.AuthRateLimit)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_USE_SSL", "true")
	t.Setenv("JWT_SECRET", "  s3cret ")
	t.Setenv("JWT_TTL", "90m")
	t.Setenv("STORAGE_BACKEND", "MINIO")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com, ,http://localhost:19006")
	t.Setenv("AUTH_RATE_LIMIT", "0.5")

	cfg := LoadConfig()

	assert.Equal(t, 9090, cfg.ServerPort)
	assert.True(t, cfg.Database.UseSSL)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, 90*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, "minio", cfg.Storage.Backend)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, []string{"https://app.example.com", "http://localhost:19006"}, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, 0.5, cfg.HTTP.AuthRateLimit)
}
