package inference

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"

	"dreamer/pkg/errs"
	"dreamer/pkg/schema"
)

// Inferencer runs a chat model. Infer sends a single user turn, Chat sends
// a conversation. params may be nil; unset fields fall back to defaults.
type Inferencer interface {
	Infer(ctx context.Context, params *openai.ChatCompletionNewParams, system, user string) (string, error)
	Chat(ctx context.Context, params *openai.ChatCompletionNewParams, system string, history []schema.Message) (string, error)
	Name() string
}

// Preset is a known OpenAI-compatible endpoint.
type Preset struct {
	Name    string
	BaseURL string
	Model   string
	// JSONSchema is set when the endpoint honours json_schema response
	// formats; others only get json_object.
	JSONSchema bool
}

var Presets = map[string]Preset{
	"glm":       {Name: "glm", BaseURL: "https://open.bigmodel.cn/api/paas/v4", Model: "glm-4-flash"},
	"dashscope": {Name: "dashscope", BaseURL: "https://dashscope.aliyuncs.com/compatible-mode/v1", Model: "qwen-plus"},
	"openai":    {Name: "openai", BaseURL: "https://api.openai.com/v1", Model: "gpt-4o-mini", JSONSchema: true},
	"moonshot":  {Name: "moonshot", BaseURL: "https://api.moonshot.ai/v1", Model: "kimi-k2-5"},
	"grok":      {Name: "grok", BaseURL: "https://api.x.ai/v1", Model: "grok-4-fast-reasoning", JSONSchema: true},
}

// PresetFor returns the preset whose base URL matches baseURL.
func PresetFor(baseURL string) (Preset, bool) {
	baseURL = strings.TrimRight(baseURL, "/")
	for _, p := range Presets {
		if p.BaseURL == baseURL {
			return p, true
		}
	}
	return Preset{}, false
}

var (
	errNoChoices    = errors.New("no choices returned")
	errEmptyContent = errors.New("empty completion content")
)

func wrapErr(name string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &errs.ProviderError{Provider: name, StatusCode: apiErr.StatusCode, Upstream: apiErr.Message, Err: err}
	}
	return &errs.ProviderError{Provider: name, Err: fmt.Errorf("%s inference error: %w", name, err)}
}
