package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 24*time.Hour, cfg.Agent.CacheTTL)
	assert.Equal(t, 10, cfg.Agent.HistoryWindow)
	assert.Equal(t, 3, cfg.Agent.Classification.MaxAttempts)
	assert.False(t, cfg.IsProduction())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CACHE_TTL", "90m")
	t.Setenv("HISTORY_WINDOW", "4")
	t.Setenv("GENERATION_MAX_ATTEMPTS", "5")
	t.Setenv("GENERATION_BASE_DELAY", "250ms")
	t.Setenv("STORE_TIMEOUT", "not-a-duration")
	t.Setenv("GO_ENV", "Production")

	cfg := Load()

	assert.Equal(t, 90*time.Minute, cfg.Agent.CacheTTL)
	assert.Equal(t, 4, cfg.Agent.HistoryWindow)
	assert.Equal(t, 5*time.Second, cfg.Agent.Store.Timeout)
	assert.True(t, cfg.IsProduction())

	p := cfg.Agent.Generation.Policy("generation")
	assert.Equal(t, "generation", p.Stage)
	assert.Equal(t, 5, p.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, p.BaseDelay)
	assert.Equal(t, 250*time.Millisecond/4, p.Jitter)
}
