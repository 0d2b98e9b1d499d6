package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 3, cfg.Engine.EvidenceThreshold)
	assert.Equal(t, 3, cfg.Engine.CrossModalEvery)
	assert.Equal(t, 60*time.Second, cfg.Engine.ReplyDelay)
	assert.Equal(t, []string{"11:59", "23:59"}, cfg.Scheduler.RefreshTimes)
	assert.Equal(t, 5, cfg.Scheduler.MaxActiveStories)
	assert.False(t, cfg.Redis.Enabled())
	assert.False(t, cfg.AI.Enabled())
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("LEGEND_SERVER_ADDR", ":9090")
	t.Setenv("LEGEND_ENGINE_EVIDENCE_THRESHOLD", "5")
	t.Setenv("LEGEND_ENGINE_REPLY_DELAY", "2s")
	t.Setenv("LEGEND_REDIS_ADDR", "localhost:6379")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 5, cfg.Engine.EvidenceThreshold)
	assert.Equal(t, 2*time.Second, cfg.Engine.ReplyDelay)
	assert.True(t, cfg.Redis.Enabled())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"bad mode", "LEGEND_SERVER_MODE", "bogus"},
		{"zero threshold", "LEGEND_ENGINE_EVIDENCE_THRESHOLD", "0"},
		{"unknown driver", "LEGEND_DATABASE_DRIVER", "mysql"},
		{"unknown lock backend", "LEGEND_ENGINE_LOCK_BACKEND", "etcd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "validate config")
		})
	}
}
