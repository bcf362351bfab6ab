package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load consults so the host environment
// does not leak into tests.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"PORT", "GLM_API_KEY", "DASHSCOPE_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"} {
		t.Setenv(key, "")
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "file", cfg.Store.Driver)
	assert.Equal(t, "dreams.json", cfg.Store.Path)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, GLMBaseURL, cfg.LLM.BaseURL)
	assert.Equal(t, "glm-4-flash", cfg.LLM.Model)
	assert.Equal(t, 6000, cfg.LLM.MaxPromptTokens)
	assert.Equal(t, DashScopeBaseURL, cfg.Chat.BaseURL)
	assert.Equal(t, "qwen-plus", cfg.Chat.Model)
	assert.Equal(t, "cogview", cfg.Image.Provider)
	assert.Equal(t, 2*time.Second, cfg.Image.PollInterval)
	assert.Equal(t, 30, cfg.Image.PollAttempts)
	assert.Equal(t, 5*time.Second, cfg.Video.PollInterval)
	assert.Equal(t, 120, cfg.Video.PollAttempts)
	assert.EqualValues(t, 256<<20, cfg.Relay.MaxBytes)
	assert.Equal(t, 10*time.Minute, cfg.Relay.CacheTTL)

	assert.Empty(t, cfg.LLM.APIKey, "missing keys are not a startup error")
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DREAMER_PORT", "9000")
	t.Setenv("DREAMER_LOG_LEVEL", "debug")
	t.Setenv("DREAMER_STORE_DRIVER", "sqlite")
	t.Setenv("DREAMER_LLM_API_KEY", "llm-key")
	t.Setenv("DREAMER_LLM_MAX_PROMPT_TOKENS", "2000")
	t.Setenv("DREAMER_IMAGE_PROVIDER", "wanx")
	t.Setenv("DREAMER_IMAGE_POLL_INTERVAL", "1500ms")
	t.Setenv("DREAMER_VIDEO_POLL_ATTEMPTS", "10")
	t.Setenv("DREAMER_RELAY_CACHE_TTL", "1h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "dreams.db", cfg.Store.Path)
	assert.Equal(t, "llm-key", cfg.LLM.APIKey)
	assert.Equal(t, 2000, cfg.LLM.MaxPromptTokens)
	assert.Equal(t, "wanx", cfg.Image.Provider)
	assert.Equal(t, 1500*time.Millisecond, cfg.Image.PollInterval)
	assert.Equal(t, 10, cfg.Video.PollAttempts)
	assert.Equal(t, time.Hour, cfg.Relay.CacheTTL)
}

func TestProviderKeyFallbacks(t *testing.T) {
	clearEnv(t)
	t.Setenv("GLM_API_KEY", "glm")
	t.Setenv("DASHSCOPE_API_KEY", "dash")
	t.Setenv("PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "glm", cfg.LLM.APIKey)
	assert.Equal(t, "dash", cfg.Chat.APIKey)
	assert.Equal(t, "glm", cfg.Image.APIKey)
	assert.Equal(t, "glm", cfg.Video.APIKey)

	t.Run("wanx uses dashscope", func(t *testing.T) {
		t.Setenv("DREAMER_IMAGE_PROVIDER", "wanx")
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "dash", cfg.Image.APIKey)
	})

	t.Run("explicit key wins", func(t *testing.T) {
		t.Setenv("DREAMER_VIDEO_API_KEY", "video")
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "video", cfg.Video.APIKey)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad driver", map[string]string{"DREAMER_STORE_DRIVER": "postgres"}},
		{"bad llm provider", map[string]string{"DREAMER_LLM_PROVIDER": "claude"}},
		{"bad image provider", map[string]string{"DREAMER_IMAGE_PROVIDER": "dalle"}},
		{"negative attempts", map[string]string{"DREAMER_VIDEO_POLL_ATTEMPTS": "-1"}},
		{"negative interval", map[string]string{"DREAMER_IMAGE_POLL_INTERVAL": "-2s"}},
		{"port out of range", map[string]string{"DREAMER_PORT": "70000"}},
		{"bad log level", map[string]string{"DREAMER_LOG_LEVEL": "loud"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "image.poll_interval", envKey("DREAMER_IMAGE_POLL_INTERVAL"))
	assert.Equal(t, "log_level", envKey("DREAMER_LOG_LEVEL"))
	assert.Equal(t, "port", envKey("DREAMER_PORT"))
	assert.Equal(t, "llm.max_prompt_tokens", envKey("DREAMER_LLM_MAX_PROMPT_TOKENS"))
}
