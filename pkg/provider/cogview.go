package provider

import (
	"cmp"
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"dreamer/pkg/errs"
)

const (
	GLMBaseURL   = "https://open.bigmodel.cn/api/paas/v4"
	cogViewModel = "cogview-3-plus"
)

// dreamStyle is appended to every image prompt so results share the
// surreal look of the app.
const dreamStyle = ", surrealist dreamscape, mysterious ethereal light, soft dreamy atmosphere, rich purple and gold tones, high quality, richly detailed"

// CogView generates images synchronously through the OpenAI-compatible
// images endpoint of the GLM platform.
type CogView struct {
	opts   Options
	client *openai.Client
}

func NewCogView(opts Options) *CogView {
	opts = opts.withDefaults(GLMBaseURL, cogViewModel)
	client := openai.NewClient(
		option.WithAPIKey(opts.APIKey),
		option.WithBaseURL(opts.BaseURL),
		option.WithHTTPClient(opts.HTTPClient),
		option.WithMaxRetries(0),
	)
	return &CogView{opts: opts, client: &client}
}

func (c *CogView) Name() string { return "cogview" }
func (c *CogView) Kind() Kind   { return Image }

func (c *CogView) Submit(ctx context.Context, req Request) (Submission, error) {
	if err := Validate(Image, req); err != nil {
		return Submission{}, err
	}
	if err := requireKey(c.opts, "image.api_key"); err != nil {
		return Submission{}, err
	}

	resp, err := c.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt: req.Prompt + dreamStyle,
		Model:  openai.ImageModel(c.opts.Model),
		Size:   openai.ImageGenerateParamsSize1024x1024,
	})
	if err != nil {
		return Submission{}, c.wrapErr(err)
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return Submission{}, malformed(c.Name(), []byte(resp.RawJSON()), "data[0].url missing")
	}
	return Submission{Mode: Immediate, URL: resp.Data[0].URL}, nil
}

func (c *CogView) wrapErr(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &errs.ProviderError{
			Provider:   c.Name(),
			StatusCode: apiErr.StatusCode,
			Upstream:   cmp.Or(apiErr.Message, upstreamMessage([]byte(apiErr.RawJSON()))),
			Err:        err,
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &errs.ProviderError{Provider: c.Name(), Err: fmt.Errorf("images request: %w", err)}
}
