package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, StorageSnapshot, cfg.Storage.Backend)
	assert.Equal(t, StorageSnapshot, cfg.CooldownStorage())
	assert.Equal(t, 24*time.Hour, cfg.Workflow.Cooldown)
	assert.Equal(t, time.Hour, cfg.Workflow.ReaperInterval)
	assert.Equal(t, 5*time.Second, cfg.Gateway.Timeout)
	assert.Equal(t, "warden.audit", cfg.Kafka.Topic)
	assert.Equal(t, devAdminToken, cfg.Server.AdminToken)
	assert.True(t, cfg.IsDev())
}

func TestLoadFrom_Overrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"WARDEN_ENV":              "prod",
		"WARDEN_ADMIN_TOKEN":      "s3cret",
		"WARDEN_STORAGE":          "postgres",
		"WARDEN_DATABASE_URL":     "postgres://localhost/warden",
		"WARDEN_COOLDOWN_BACKEND": "redis",
		"WARDEN_REDIS_URL":        "redis://localhost:6379/0",
		"WARDEN_KAFKA_BROKERS":    " a:9092,b:9092,a:9092 ",
		"WARDEN_COOLDOWN":         "2h",
	})
	require.NoError(t, err)

	assert.Equal(t, CooldownBackendRedis, cfg.CooldownStorage())
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 2*time.Hour, cfg.Workflow.Cooldown)
	assert.Equal(t, "s3cret", cfg.Server.AdminToken)
}

func TestLoadFrom_Rejects(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
	}{
		{"unknown storage", map[string]string{"WARDEN_STORAGE": "sqlite"}},
		{"postgres without dsn", map[string]string{"WARDEN_STORAGE": "postgres"}},
		{"redis ledger without url", map[string]string{"WARDEN_COOLDOWN_BACKEND": "redis"}},
		{"prod without admin token", map[string]string{"WARDEN_ENV": "prod"}},
		{"non-positive cooldown", map[string]string{"WARDEN_COOLDOWN": "0s"}},
		{"bad duration", map[string]string{"WARDEN_REAPER_INTERVAL": "hourly"}},
		{"bad log level", map[string]string{"WARDEN_LOG_LEVEL": "trace"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(tt.vars)
			require.Error(t, err)
		})
	}
}
