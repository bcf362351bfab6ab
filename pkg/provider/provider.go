// Package provider adapts image and video generation services to one
// submit contract. Adapters never retry; polling of pending jobs is left to
// the caller through the Tracker interface.
package provider

import (
	"cmp"
	"context"
	"net/http"
	"strings"
	"time"

	"dreamer/pkg/errs"
	"dreamer/pkg/poll"
)

type Kind string

const (
	Image Kind = "image"
	Video Kind = "video"
)

type Request struct {
	Prompt string
	// ImageRef is the still a video is animated from: an http(s) URL or a
	// data URI. Required for video.
	ImageRef string
}

type Mode int

const (
	// Immediate means the media URL came back with the submit call.
	Immediate Mode = iota + 1
	// Pending means only a task id came back and the job must be polled.
	Pending
)

func (m Mode) String() string {
	if m == Pending {
		return "pending"
	}
	return "immediate"
}

type Submission struct {
	Mode   Mode
	URL    string
	TaskID string
}

// Adapter submits one generation request to a provider.
type Adapter interface {
	Name() string
	Kind() Kind
	Submit(ctx context.Context, req Request) (Submission, error)
}

// Tracker is implemented by adapters whose jobs may finish asynchronously.
type Tracker interface {
	Status(ctx context.Context, taskID string) ([]byte, error)
	Classify(payload []byte) poll.Status
}

type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

func (o Options) withDefaults(baseURL, model string) Options {
	o.BaseURL = strings.TrimRight(cmp.Or(o.BaseURL, baseURL), "/")
	o.Model = cmp.Or(o.Model, model)
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: 2 * time.Minute}
	}
	return o
}

// Validate checks a request against the input constraints of kind.
func Validate(kind Kind, req Request) error {
	if strings.TrimSpace(req.Prompt) == "" {
		return errs.Validation("prompt is required")
	}
	if kind == Video && strings.TrimSpace(req.ImageRef) == "" {
		return errs.Validation("an image is required to generate a video")
	}
	return nil
}

func requireKey(o Options, setting string) error {
	if strings.TrimSpace(o.APIKey) == "" {
		return errs.Configuration(setting)
	}
	return nil
}
