package inference

import (
	"cmp"
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v3"
	"google.golang.org/genai"

	"dreamer/pkg/errs"
	"dreamer/pkg/schema"
)

type GeminiInferencer struct {
	client *genai.Client
	apiKey string
	model  string
}

// NewGeminiInferencer creates an inferencer backed by the Gemini API.
// config may be nil.
func NewGeminiInferencer(apiKey string, model string, config *genai.ClientConfig) (*GeminiInferencer, error) {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	if config == nil {
		config = &genai.ClientConfig{}
	}
	config.APIKey = apiKey
	config.Backend = genai.BackendGeminiAPI

	g := &GeminiInferencer{apiKey: apiKey, model: model}
	if apiKey == "" {
		// Missing keys surface per request.
		return g, nil
	}
	client, err := genai.NewClient(context.Background(), config)
	if err != nil {
		return nil, err
	}
	g.client = client
	return g, nil
}

func (o *GeminiInferencer) Name() string { return "gemini" }

func (o *GeminiInferencer) Infer(ctx context.Context, params *openai.ChatCompletionNewParams, system, user string) (string, error) {
	return o.generate(ctx, params, system, genai.Text(user))
}

func (o *GeminiInferencer) Chat(ctx context.Context, params *openai.ChatCompletionNewParams, system string, history []schema.Message) (string, error) {
	contents := make([]*genai.Content, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case schema.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		case schema.RoleUser:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		default:
			return "", errs.Validation("unknown message role %q", m.Role)
		}
	}
	return o.generate(ctx, params, system, contents)
}

func (o *GeminiInferencer) generate(ctx context.Context, params *openai.ChatCompletionNewParams, system string, contents []*genai.Content) (string, error) {
	if o.client == nil {
		return "", errs.Configuration("llm.api_key")
	}
	if params == nil {
		params = new(openai.ChatCompletionNewParams)
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleModel),
		MaxOutputTokens:   int32(cmp.Or(params.MaxCompletionTokens.Value, 4096)),
		Temperature:       genai.Ptr(float32(cmp.Or(params.Temperature.Value, 0.7))),
	}
	if params.ResponseFormat.OfJSONObject != nil || params.ResponseFormat.OfJSONSchema != nil {
		config.ResponseMIMEType = "application/json"
	}

	result, err := o.client.Models.GenerateContent(ctx, cmp.Or(params.Model, o.model), contents, config)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", &errs.ProviderError{Provider: o.Name(), StatusCode: apiErr.Code, Upstream: apiErr.Message, Err: err}
		}
		return "", &errs.ProviderError{Provider: o.Name(), Err: fmt.Errorf("failed to generate content: %w", err)}
	}

	text := result.Text()
	if text == "" {
		return "", &errs.ProviderError{Provider: o.Name(), Err: errEmptyContent}
	}
	return text, nil
}
