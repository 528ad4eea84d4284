package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "ADDR", "SERVER_ADDR", "ENV", "APP_ENV", "CONFIG_PATH",
		"JWT_SECRET", "JWT_REFRESH_SECRET", "AUTH_JWT_SECRET", "AUTH_REFRESH_SECRET",
		"AUTH_ADMIN_PASSWORD", "DATABASE_URL", "DB_DSN", "KAFKA_BROKERS", "REDIS_ADDR",
		"SERVER_CORS_ORIGINS",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.App.Env)
	assert.Equal(t, ":5001", cfg.Server.Addr)
	assert.Equal(t, time.Hour, cfg.Auth.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.RefreshTTL)
	assert.Equal(t, "admin", cfg.Auth.AdminUsername)
	assert.Equal(t, 30, cfg.Coupon.DurationDays)
	assert.Equal(t, defaultCORSOrigins, cfg.Server.CORSOrigins)
	assert.Empty(t, cfg.Kafka.Brokers)

	assert.True(t, cfg.GeneratedSecrets)
	assert.Len(t, cfg.Auth.JWTSecret, 128)
	assert.NotEqual(t, cfg.Auth.JWTSecret, cfg.Auth.RefreshSecret)
}

func TestLoadEnvironmentAliases(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8080")
	t.Setenv("JWT_SECRET", "access")
	t.Setenv("JWT_REFRESH_SECRET", "refresh")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/books")
	t.Setenv("SERVER_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "access", cfg.Auth.JWTSecret)
	assert.Equal(t, "refresh", cfg.Auth.RefreshSecret)
	assert.False(t, cfg.GeneratedSecrets)
	assert.Equal(t, "postgres://u:p@localhost:5432/books", cfg.DB.DSN)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoadYAMLFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9000"
auth:
  access_ttl: 15m
coupon:
  duration_days: 7
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, 7, cfg.Coupon.DurationDays)
}

func TestLoadProdRequiresSecrets(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENV", "production")

	_, err := Load("")
	assert.Error(t, err)

	t.Setenv("JWT_SECRET", "a-real-secret")
	t.Setenv("JWT_REFRESH_SECRET", "another-real-secret")
	_, err = Load("")
	assert.ErrorContains(t, err, "AUTH_ADMIN_PASSWORD")

	t.Setenv("AUTH_ADMIN_PASSWORD", "s3cret")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "production", cfg.App.Env)
}

func TestValidateRejectsSharedSecret(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "same")
	t.Setenv("JWT_REFRESH_SECRET", "same")

	_, err := Load("")
	assert.ErrorContains(t, err, "must differ")
}

func TestIsProdLike(t *testing.T) {
	assert.True(t, IsProdLike(" Production "))
	assert.True(t, IsProdLike("release"))
	assert.False(t, IsProdLike("dev"))
	assert.False(t, IsProdLike(""))
}
