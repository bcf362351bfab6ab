// Package config loads dreamer's settings from the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "DREAMER_"

const (
	GLMBaseURL       = "https://open.bigmodel.cn/api/paas/v4"
	DashScopeBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"
)

type Config struct {
	Port     int    `koanf:"port"`
	LogLevel string `koanf:"log_level"`

	Store Store    `koanf:"store"`
	LLM   LLM      `koanf:"llm"`
	Chat  Endpoint `koanf:"chat"`
	Image Media    `koanf:"image"`
	Video Media    `koanf:"video"`
	Relay Relay    `koanf:"relay"`
}

type Store struct {
	Driver string `koanf:"driver"` // "file" or "sqlite"
	Path   string `koanf:"path"`
}

type Endpoint struct {
	APIKey  string `koanf:"api_key"`
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
}

type LLM struct {
	Endpoint        `koanf:",squash"`
	Provider        string `koanf:"provider"` // "openai" (any compatible endpoint) or "gemini"
	MaxPromptTokens int    `koanf:"max_prompt_tokens"`
}

type Media struct {
	Endpoint     `koanf:",squash"`
	Provider     string        `koanf:"provider"`
	PollInterval time.Duration `koanf:"poll_interval"`
	PollAttempts int           `koanf:"poll_attempts"`
}

type Relay struct {
	MaxBytes int64         `koanf:"max_bytes"`
	CacheTTL time.Duration `koanf:"cache_ttl"`
}

var sections = map[string]bool{"store": true, "llm": true, "chat": true, "image": true, "video": true, "relay": true}

// envKey maps DREAMER_IMAGE_POLL_INTERVAL to image.poll_interval and
// DREAMER_LOG_LEVEL to log_level.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	section, field, ok := strings.Cut(lower, "_")
	if ok && sections[section] {
		return section + "." + field
	}
	return lower
}

// Load reads DREAMER_* variables, applies defaults and validates the
// result. Missing API keys are not an error here.
func Load() (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return ""
}

func orEnv(v *string, keys ...string) {
	if *v == "" {
		*v = firstEnv(keys...)
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Port == 0 {
		if p := firstEnv("PORT"); p != "" {
			fmt.Sscanf(p, "%d", &cfg.Port)
		}
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "file"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "dreams.json"
		if cfg.Store.Driver == "sqlite" {
			cfg.Store.Path = "dreams.db"
		}
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "openai"
	}
	if cfg.LLM.Provider == "gemini" {
		orEnv(&cfg.LLM.APIKey, "GEMINI_API_KEY", "GOOGLE_API_KEY")
	} else {
		if cfg.LLM.BaseURL == "" {
			cfg.LLM.BaseURL = GLMBaseURL
			if cfg.LLM.Model == "" {
				cfg.LLM.Model = "glm-4-flash"
			}
		}
		if cfg.LLM.BaseURL == GLMBaseURL {
			orEnv(&cfg.LLM.APIKey, "GLM_API_KEY")
		}
		orEnv(&cfg.LLM.APIKey, "OPENAI_API_KEY")
	}
	if cfg.LLM.MaxPromptTokens == 0 {
		cfg.LLM.MaxPromptTokens = 6000
	}

	orEnv(&cfg.Chat.APIKey, "DASHSCOPE_API_KEY")
	if cfg.Chat.BaseURL == "" {
		cfg.Chat.BaseURL = DashScopeBaseURL
		if cfg.Chat.Model == "" {
			cfg.Chat.Model = "qwen-plus"
		}
	}

	if cfg.Image.Provider == "" {
		cfg.Image.Provider = "cogview"
	}
	if cfg.Image.Provider == "wanx" {
		orEnv(&cfg.Image.APIKey, "DASHSCOPE_API_KEY")
	} else {
		orEnv(&cfg.Image.APIKey, "GLM_API_KEY")
	}
	if cfg.Image.PollInterval == 0 {
		cfg.Image.PollInterval = 2 * time.Second
	}
	if cfg.Image.PollAttempts == 0 {
		cfg.Image.PollAttempts = 30
	}

	if cfg.Video.Provider == "" {
		cfg.Video.Provider = "cogvideox"
	}
	orEnv(&cfg.Video.APIKey, "GLM_API_KEY")
	if cfg.Video.PollInterval == 0 {
		cfg.Video.PollInterval = 5 * time.Second
	}
	if cfg.Video.PollAttempts == 0 {
		cfg.Video.PollAttempts = 120
	}

	if cfg.Relay.MaxBytes == 0 {
		cfg.Relay.MaxBytes = 256 << 20
	}
	if cfg.Relay.CacheTTL == 0 {
		cfg.Relay.CacheTTL = 10 * time.Minute
	}
}

func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if c.Store.Driver != "file" && c.Store.Driver != "sqlite" {
		return fmt.Errorf("store.driver must be file or sqlite, got %q", c.Store.Driver)
	}
	if c.LLM.Provider != "openai" && c.LLM.Provider != "gemini" {
		return fmt.Errorf("llm.provider must be openai or gemini, got %q", c.LLM.Provider)
	}
	if c.LLM.MaxPromptTokens < 0 {
		return fmt.Errorf("llm.max_prompt_tokens must be positive")
	}
	if c.Image.Provider != "cogview" && c.Image.Provider != "wanx" {
		return fmt.Errorf("image.provider must be cogview or wanx, got %q", c.Image.Provider)
	}
	if c.Video.Provider != "cogvideox" {
		return fmt.Errorf("video.provider must be cogvideox, got %q", c.Video.Provider)
	}
	for name, m := range map[string]Media{"image": c.Image, "video": c.Video} {
		if m.PollInterval < 0 {
			return fmt.Errorf("%s.poll_interval must be positive", name)
		}
		if m.PollAttempts < 0 {
			return fmt.Errorf("%s.poll_attempts must be positive", name)
		}
	}
	if c.Relay.MaxBytes < 0 {
		return fmt.Errorf("relay.max_bytes must be positive")
	}
	return nil
}
