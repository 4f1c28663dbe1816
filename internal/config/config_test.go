package config

import (
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"ENVIRONMENT", "PORT", "DATABASE_URL", "SWEEP_INTERVAL", "SWEEP_RATE_PER_SECOND", "SWEEP_BATCH_SIZE", "LIST_CANDIDATE_LIMIT", "CORS_ALLOWED_ORIGINS", "SEED_DATA"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, "development", cfg.Environment)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "8097", cfg.Port)
	assert.Equal(t, time.Hour, cfg.SweepInterval)
	assert.Equal(t, float64(20), cfg.SweepRate)
	assert.Equal(t, 500, cfg.SweepBatchSize)
	assert.Equal(t, 1000, cfg.ListCandidateLimit)
	assert.Empty(t, cfg.AllowedOrigins)
	assert.False(t, cfg.SeedData)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("SWEEP_INTERVAL", "15m")
	t.Setenv("SWEEP_RATE_PER_SECOND", "2.5")
	t.Setenv("SWEEP_BATCH_SIZE", "not-a-number")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("ADMIN_ROLES", "root")
	t.Setenv("SEED_DATA", "true")

	cfg := Load()
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, 15*time.Minute, cfg.SweepInterval)
	assert.Equal(t, 2.5, cfg.SweepRate)
	assert.Equal(t, 500, cfg.SweepBatchSize, "invalid values fall back to the default")
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, []string{"root"}, cfg.AdminRoles)
	assert.True(t, cfg.SeedData)
}

func TestDSN(t *testing.T) {
	cfg := &Config{DatabaseURL: "postgres://u:p@db/orders"}
	assert.Equal(t, "postgres://u:p@db/orders", cfg.DSN())

	t.Setenv("DB_HOST", "pg")
	t.Setenv("DB_NAME", "orders")
	cfg = &Config{}
	assert.Contains(t, cfg.DSN(), "host=pg")
	assert.Contains(t, cfg.DSN(), "dbname=orders")
}

func TestInitRedis_Degrades(t *testing.T) {
	logger, hook := logtest.NewNullLogger()

	assert.Nil(t, InitRedis(&Config{}, logger))
	assert.Nil(t, InitRedis(&Config{RedisURL: "://not a url"}, logger))
	assert.NotEmpty(t, hook.AllEntries())
}
