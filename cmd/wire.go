package main

import (
	"cmp"
	"fmt"

	"dreamer/pkg/config"
	"dreamer/pkg/inference"
	"dreamer/pkg/poll"
	"dreamer/pkg/provider"
	"dreamer/pkg/store"
)

// openStore returns the record store for cfg and a func releasing it.
func openStore(cfg config.Store) (*store.Records, func() error, error) {
	switch cfg.Driver {
	case "sqlite":
		db, err := store.OpenSQLite(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return store.New(db), db.Close, nil
	default:
		return store.New(store.File{Path: cfg.Path}), func() error { return nil }, nil
	}
}

// newLLM returns the analysis model and whether it takes json_schema
// response formats.
func newLLM(cfg config.LLM) (inference.Inferencer, bool, error) {
	if cfg.Provider == "gemini" {
		g, err := inference.NewGeminiInferencer(cfg.APIKey, cfg.Model, nil)
		return g, false, err
	}

	preset, known := inference.PresetFor(cfg.BaseURL)
	name := "openai-compatible"
	if known {
		name = preset.Name
	}
	o := inference.NewOpenAIInferencer(name, cfg.APIKey, cfg.BaseURL, cmp.Or(cfg.Model, preset.Model), "llm.api_key")
	return o, o.SupportsJSONSchema(), nil
}

// newChat returns the interviewer model, or nil to reuse the analysis
// model when no chat key is configured.
func newChat(cfg config.Endpoint) inference.Inferencer {
	if cfg.APIKey == "" {
		return nil
	}
	preset, known := inference.PresetFor(cfg.BaseURL)
	name := "openai-compatible"
	if known {
		name = preset.Name
	}
	return inference.NewOpenAIInferencer(name, cfg.APIKey, cfg.BaseURL, cmp.Or(cfg.Model, preset.Model), "chat.api_key")
}

func providerOptions(cfg config.Media) provider.Options {
	return provider.Options{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
	}
}

func newImageAdapter(cfg config.Media) (provider.Adapter, error) {
	switch cfg.Provider {
	case "wanx":
		return provider.NewWanx(providerOptions(cfg)), nil
	case "cogview":
		return provider.NewCogView(providerOptions(cfg)), nil
	default:
		return nil, fmt.Errorf("unknown image provider %q", cfg.Provider)
	}
}

func newVideoAdapter(cfg config.Media) (provider.Adapter, error) {
	switch cfg.Provider {
	case "cogvideox":
		return provider.NewCogVideo(providerOptions(cfg)), nil
	default:
		return nil, fmt.Errorf("unknown video provider %q", cfg.Provider)
	}
}

func pollConfig(cfg config.Media) poll.Config {
	return poll.Config{Interval: cfg.PollInterval, MaxAttempts: cfg.PollAttempts}
}
