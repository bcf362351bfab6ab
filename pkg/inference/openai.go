package inference

import (
	"cmp"
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"dreamer/pkg/errs"
	"dreamer/pkg/schema"
)

// OpenAIInferencer talks to any OpenAI-compatible chat completion endpoint.
type OpenAIInferencer struct {
	client  *openai.Client
	name    string
	apiKey  string
	baseURL string
	model   string
	// setting names the config key reported when apiKey is empty.
	setting string
}

// NewOpenAIInferencer creates an inferencer for baseURL. SDK retries are
// disabled; callers decide whether to try again.
func NewOpenAIInferencer(name, apiKey, baseURL, model, setting string, opts ...option.RequestOption) *OpenAIInferencer {
	o := &OpenAIInferencer{
		name:    name,
		apiKey:  apiKey,
		baseURL: cmp.Or(baseURL, Presets["openai"].BaseURL),
		model:   model,
		setting: cmp.Or(setting, "llm.api_key"),
	}
	o.client = o.newClient(opts...)
	return o
}

func (o *OpenAIInferencer) newClient(opts ...option.RequestOption) *openai.Client {
	client := openai.NewClient(append([]option.RequestOption{
		option.WithAPIKey(o.apiKey),
		option.WithBaseURL(o.baseURL),
		option.WithMaxRetries(0),
	}, opts...)...)
	return &client
}

func (o *OpenAIInferencer) Name() string { return o.name }

// SupportsJSONSchema reports whether the endpoint takes json_schema
// response formats.
func (o *OpenAIInferencer) SupportsJSONSchema() bool {
	p, ok := PresetFor(o.baseURL)
	return ok && p.JSONSchema
}

// Infer sends a system prompt and a single user turn.
func (o *OpenAIInferencer) Infer(ctx context.Context, params *openai.ChatCompletionNewParams, system, user string) (string, error) {
	return o.complete(ctx, params, []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(system),
		openai.UserMessage(user),
	})
}

// Chat sends a system prompt followed by the conversation so far.
func (o *OpenAIInferencer) Chat(ctx context.Context, params *openai.ChatCompletionNewParams, system string, history []schema.Message) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+1)
	messages = append(messages, openai.SystemMessage(system))
	for _, m := range history {
		switch m.Role {
		case schema.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		case schema.RoleUser:
			messages = append(messages, openai.UserMessage(m.Content))
		default:
			return "", errs.Validation("unknown message role %q", m.Role)
		}
	}
	return o.complete(ctx, params, messages)
}

func (o *OpenAIInferencer) complete(ctx context.Context, params *openai.ChatCompletionNewParams, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	if o.apiKey == "" {
		return "", errs.Configuration(o.setting)
	}

	var p openai.ChatCompletionNewParams
	if params != nil {
		p = *params
	}
	p.Model = cmp.Or(p.Model, o.model)
	p.Messages = messages
	p.MaxCompletionTokens = openai.Int(cmp.Or(p.MaxCompletionTokens.Value, 4096))
	p.Temperature = openai.Float(cmp.Or(p.Temperature.Value, 0.7))

	resp, err := o.client.Chat.Completions.New(ctx, p)
	if err != nil {
		return "", wrapErr(o.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", &errs.ProviderError{Provider: o.name, Err: errNoChoices}
	}
	if resp.Choices[0].Message.Content == "" {
		return "", &errs.ProviderError{Provider: o.name, Err: fmt.Errorf("%w (finish reason %q)", errEmptyContent, resp.Choices[0].FinishReason)}
	}

	return resp.Choices[0].Message.Content, nil
}
