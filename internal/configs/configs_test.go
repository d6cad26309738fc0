package configs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	"ENVIRONMENT", "PORT", "ALLOWED_ORIGINS", "SESSION_IDLE_TIMEOUT", "CLEANUP_INTERVAL",
	"RATE_MESSAGE_LIMIT", "RATE_ROOM_OP_LIMIT", "RATE_WINDOW", "RATE_PENALTY_MULTIPLIER",
	"RATE_WINDOW_CEILING", "RATE_MAX_PENALTIES", "RATE_PENALTY_DECAY", "RATE_ENTRY_IDLE",
	"MAX_CONTENT_LENGTH", "IP_CONNECT_RATE", "IP_CONNECT_BURST",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, 8080, cfg.Port)
	assert.Empty(t, cfg.AllowedOrigins)
	assert.Equal(t, 30*time.Minute, cfg.SessionIdleTimeout)
	assert.Equal(t, 5*time.Minute, cfg.CleanupInterval)
	assert.Equal(t, 30, cfg.RateMessageLimit)
	assert.Equal(t, 5, cfg.RateRoomOpLimit)
	assert.Equal(t, time.Minute, cfg.RateWindow)
	assert.Equal(t, 2.0, cfg.RatePenaltyMultiplier)
	assert.Equal(t, 15*time.Minute, cfg.RateWindowCeiling)
	assert.Equal(t, 5, cfg.RateMaxPenalties)
	assert.Equal(t, 5*time.Minute, cfg.RatePenaltyDecay)
	assert.Equal(t, 30*time.Minute, cfg.RateEntryIdle)
	assert.Equal(t, 1000, cfg.MaxContentLength)
	assert.Equal(t, 0.2, cfg.IPConnectRate)
	assert.Equal(t, 5, cfg.IPConnectBurst)
}

func TestLoadConfigOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("PORT", "9000")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("SESSION_IDLE_TIMEOUT", "10m")
	t.Setenv("RATE_MESSAGE_LIMIT", "10")
	t.Setenv("RATE_PENALTY_MULTIPLIER", "1.5")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 10*time.Minute, cfg.SessionIdleTimeout)
	assert.Equal(t, 10, cfg.RateMessageLimit)
	assert.Equal(t, 1.5, cfg.RatePenaltyMultiplier)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"non-numeric port", map[string]string{"PORT": "http"}},
		{"privileged port", map[string]string{"PORT": "80"}},
		{"production without origins", map[string]string{"ENVIRONMENT": "production"}},
		{"bad duration", map[string]string{"CLEANUP_INTERVAL": "often"}},
		{"negative duration", map[string]string{"RATE_WINDOW": "-1m"}},
		{"zero limit", map[string]string{"RATE_ROOM_OP_LIMIT": "0"}},
		{"multiplier below one", map[string]string{"RATE_PENALTY_MULTIPLIER": "0.5"}},
		{"multiplier of one", map[string]string{"RATE_PENALTY_MULTIPLIER": "1"}},
		{"ceiling below window", map[string]string{"RATE_WINDOW": "20m"}},
		{"ceiling equal to window", map[string]string{"RATE_WINDOW": "15m"}},
		{"zero content length", map[string]string{"MAX_CONTENT_LENGTH": "0"}},
		{"bad ip rate", map[string]string{"IP_CONNECT_RATE": "fast"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}
