package provider

import (
	"bytes"
	"cmp"
	"context"
	"encoding/base64"
	"fmt"
	"image/png"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gen2brain/webp"

	"dreamer/pkg/errs"
	"dreamer/pkg/utils"
)

const maxImageBytes = 20 << 20

// InlineImage turns an image reference into a data URI. Provider-hosted
// stills are often short-lived or not reachable from the video provider, so
// the bytes are sent inline. Data URIs pass through unchanged. WebP stills
// are transcoded to PNG since video providers only accept PNG and JPEG. A
// nil client only reaches public addresses.
func InlineImage(ctx context.Context, client *http.Client, ref string) (string, error) {
	if strings.HasPrefix(ref, "data:") {
		return ref, nil
	}
	if client == nil {
		client = utils.PublicClient(time.Minute)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return "", errs.Validation("invalid image url")
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", &errs.ProviderError{Provider: "image-fetch", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &errs.ProviderError{Provider: "image-fetch", StatusCode: resp.StatusCode, Err: fmt.Errorf("download image: status %d", resp.StatusCode)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return "", &errs.ProviderError{Provider: "image-fetch", Err: err}
	}
	if len(data) > maxImageBytes {
		return "", &errs.ProviderError{Provider: "image-fetch", Err: fmt.Errorf("image larger than %d bytes", maxImageBytes)}
	}

	contentType := cmp.Or(resp.Header.Get("Content-Type"), http.DetectContentType(data))
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "image/png"
	}
	if mediaType == "image/webp" {
		data, err = webpToPNG(data)
		if err != nil {
			return "", &errs.ProviderError{Provider: "image-fetch", Err: err}
		}
		mediaType = "image/png"
	}

	log.Debug("inlined image", "type", mediaType, "bytes", len(data))
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func webpToPNG(data []byte) ([]byte, error) {
	img, err := webp.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode webp: %w", err)
	}
	buf := new(bytes.Buffer)
	if err := png.Encode(buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}
