package provider

import (
	"cmp"
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"dreamer/pkg/poll"
)

const cogVideoModel = "cogvideox"

// DefaultVideoPrompt is used when the caller gives no motion prompt.
const DefaultVideoPrompt = "gentle flowing motion, dreamy atmosphere, slowly moving light and shadow, cinematic"

// CogVideo animates a still through the GLM asynchronous video API.
//
// Status classification (task_status):
//
//	SUCCESS     -> succeeded, URL from video_result[0].url, falling back to
//	               video_result[0].cover_image_url
//	FAIL        -> failed
//	anything else, including PROCESSING, -> pending
type CogVideo struct {
	opts Options
}

func NewCogVideo(opts Options) *CogVideo {
	return &CogVideo{opts: opts.withDefaults(GLMBaseURL, cogVideoModel)}
}

func (c *CogVideo) Name() string { return "cogvideox" }
func (c *CogVideo) Kind() Kind   { return Video }

type cogVideoSubmit struct {
	Model    string `json:"model"`
	ImageURL string `json:"image_url"`
	Prompt   string `json:"prompt"`
}

type cogVideoResult struct {
	ID          string `json:"id"`
	TaskStatus  string `json:"task_status"`
	VideoResult []struct {
		URL           string `json:"url"`
		CoverImageURL string `json:"cover_image_url"`
	} `json:"video_result"`
}

// Submit expects req.ImageRef to be a data URI or a URL the provider can
// fetch; see InlineImage.
func (c *CogVideo) Submit(ctx context.Context, req Request) (Submission, error) {
	if err := Validate(Video, req); err != nil {
		return Submission{}, err
	}
	if err := requireKey(c.opts, "video.api_key"); err != nil {
		return Submission{}, err
	}

	data, err := doJSON(ctx, c.opts, c.Name(), http.MethodPost, c.opts.BaseURL+"/videos/generations", cogVideoSubmit{
		Model:    c.opts.Model,
		ImageURL: req.ImageRef,
		Prompt:   req.Prompt,
	}, nil)
	if err != nil {
		return Submission{}, err
	}

	var res cogVideoResult
	if err := json.Unmarshal(data, &res); err != nil || res.ID == "" {
		return Submission{}, malformed(c.Name(), data, "id missing")
	}
	return Submission{Mode: Pending, TaskID: res.ID}, nil
}

func (c *CogVideo) Status(ctx context.Context, taskID string) ([]byte, error) {
	if err := requireKey(c.opts, "video.api_key"); err != nil {
		return nil, err
	}
	return doJSON(ctx, c.opts, c.Name(), http.MethodGet, c.opts.BaseURL+"/async-result/"+url.PathEscape(taskID), nil, nil)
}

func (c *CogVideo) Classify(payload []byte) poll.Status {
	var res cogVideoResult
	if err := json.Unmarshal(payload, &res); err != nil {
		return poll.Status{State: poll.Pending, Raw: "unreadable"}
	}
	st := poll.Status{Raw: res.TaskStatus}
	switch res.TaskStatus {
	case "SUCCESS":
		st.State = poll.Succeeded
		if len(res.VideoResult) > 0 {
			st.URL = cmp.Or(res.VideoResult[0].URL, res.VideoResult[0].CoverImageURL)
		}
	case "FAIL":
		st.State = poll.Failed
	default:
		st.State = poll.Pending
	}
	return st
}
