package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	addr, err := cfg.Server.Addr()
	require.NoError(t, err)
	assert.Equal(t, ":8080", addr)
	assert.Equal(t, "gpt-4o-mini", cfg.AI.Model)
	assert.Equal(t, 150, cfg.AI.MaxTokens)
	assert.Equal(t, 180, cfg.AI.StreamMaxTokens)
	assert.InDelta(t, 0.7, cfg.AI.Temperature, 0.0001)
	assert.Equal(t, 50, cfg.AI.RichHistory)
	assert.Equal(t, 6, cfg.AI.FallbackHistory)
	assert.Equal(t, 8, cfg.AI.StreamHistory)
	assert.Equal(t, []string{"suicide", "envie d'en finir", "je veux mourir", "plus envie de vivre"}, cfg.Crisis.Keywords)
	assert.Equal(t, 720*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, "http://localhost:8080/register", cfg.Mail.SignupURL)
	assert.False(t, cfg.AI.Enabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:9000")
	t.Setenv("CRISIS_KEYWORDS", "danger,adieu")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("FRONTEND_ORIGINS", "https://app.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	addr, err := cfg.Server.Addr()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", addr)
	assert.Equal(t, []string{"danger", "adieu"}, cfg.Crisis.Keywords)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.Server.Origins)
	assert.True(t, cfg.AI.Enabled())
}

func TestLoadRejectsInvalidPort(t *testing.T) {
	t.Setenv("PORT", "80 80")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsBadOriginPattern(t *testing.T) {
	t.Setenv("FRONTEND_ORIGIN_PATTERN", "([")

	_, err := Load()
	require.Error(t, err)
}
