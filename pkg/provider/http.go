package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"dreamer/pkg/errs"
	"dreamer/pkg/utils"
)

const maxResponseBytes = 4 << 20

// doJSON sends body as JSON with bearer auth and returns the response body.
// Non-2xx answers become *errs.ProviderError carrying the upstream message.
func doJSON(ctx context.Context, o Options, provider, method, url string, body any, header http.Header) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", provider, err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", provider, err)
	}
	req.Header.Set("Authorization", "Bearer "+o.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := o.HTTPClient.Do(req)
	if err != nil {
		return nil, &errs.ProviderError{Provider: provider, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &errs.ProviderError{Provider: provider, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &errs.ProviderError{
			Provider:   provider,
			StatusCode: resp.StatusCode,
			Upstream:   upstreamMessage(data),
		}
	}
	return data, nil
}

// upstreamMessage pulls a human readable message out of the error shapes
// the supported providers use: {"error":{"message":..}}, {"message":..}
// and {"error":".."}.
func upstreamMessage(body []byte) string {
	var shape struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if json.Unmarshal(body, &shape) != nil {
		return ""
	}
	if len(shape.Error) > 0 {
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(shape.Error, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
		var s string
		if json.Unmarshal(shape.Error, &s) == nil && s != "" {
			return s
		}
	}
	return shape.Message
}

func malformed(provider string, body []byte, what string) error {
	return &errs.ProviderError{
		Provider: provider,
		Err:      fmt.Errorf("%w: %s (body %q)", errs.ErrNoResultField, what, utils.LimitStr(string(body), 200)),
	}
}
