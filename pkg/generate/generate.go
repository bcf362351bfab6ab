// Package generate runs image and video jobs: submit, poll when the
// provider answers asynchronously, and hand back a usable URL.
package generate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"dreamer/pkg/errs"
	"dreamer/pkg/flight"
	"dreamer/pkg/poll"
	"dreamer/pkg/provider"
	"dreamer/pkg/relay"
	"dreamer/pkg/utils"
)

type Config struct {
	Image     provider.Adapter
	Video     provider.Adapter
	ImagePoll poll.Config
	VideoPoll poll.Config
	// HTTPClient downloads stills that are inlined into video requests.
	// Nil means utils.PublicClient.
	HTTPClient *http.Client
}

type Coordinator struct {
	image     provider.Adapter
	video     provider.Adapter
	imagePoll *poll.Poller
	videoPoll *poll.Poller
	client    *http.Client

	// inflight joins identical requests onto one provider job.
	inflight flight.Cache[string, string]

	// OnJob observes each finished job; used for metrics.
	OnJob func(kind provider.Kind, outcome string, attempts int)
	// Base bounds every job. Jobs are detached from the request that
	// started them, so this is what stops them on shutdown. Nil means
	// no bound.
	Base context.Context
}

func New(cfg Config) *Coordinator {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = utils.PublicClient(time.Minute)
	}
	return &Coordinator{
		image:     cfg.Image,
		video:     cfg.Video,
		imagePoll: poll.New(cfg.ImagePoll),
		videoPoll: poll.New(cfg.VideoPoll),
		client:    cfg.HTTPClient,
		inflight:  flight.NewCache[string, string](nil),
	}
}

// Image generates a still for prompt and returns the provider's URL. key
// identifies the request for deduplication, usually a record id; the
// prompt is used when key is empty. Concurrent calls with the same key
// share one job, which keeps running while any of them is still waiting.
func (c *Coordinator) Image(ctx context.Context, prompt, key string) (string, error) {
	req := provider.Request{Prompt: strings.TrimSpace(prompt)}
	if err := provider.Validate(provider.Image, req); err != nil {
		return "", err
	}

	url, err, shared := c.inflight.Do(ctx, inflightKey(provider.Image, key, req.Prompt), func(ctx context.Context) (string, error) {
		ctx, cancel := c.bound(ctx)
		defer cancel()
		return c.run(ctx, c.image, c.imagePoll, req)
	})
	if shared {
		log.Info("joined in-flight image job", "key", key)
	}
	return url, err
}

// Video animates imageRef and returns a same-origin relay URL for the
// result. An empty prompt gets provider.DefaultVideoPrompt.
func (c *Coordinator) Video(ctx context.Context, imageRef, prompt, key string) (string, error) {
	req := provider.Request{
		Prompt:   strings.TrimSpace(prompt),
		ImageRef: strings.TrimSpace(imageRef),
	}
	if req.Prompt == "" {
		req.Prompt = provider.DefaultVideoPrompt
	}
	if err := provider.Validate(provider.Video, req); err != nil {
		return "", err
	}

	url, err, shared := c.inflight.Do(ctx, inflightKey(provider.Video, key, req.ImageRef), func(ctx context.Context) (string, error) {
		ctx, cancel := c.bound(ctx)
		defer cancel()
		inline, err := provider.InlineImage(ctx, c.client, req.ImageRef)
		if err != nil {
			return "", err
		}
		req.ImageRef = inline
		return c.run(ctx, c.video, c.videoPoll, req)
	})
	if shared {
		log.Info("joined in-flight video job", "key", key)
	}
	if err != nil {
		return "", err
	}
	return relay.Wrap(url), nil
}

// bound ties a job context to Base.
func (c *Coordinator) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	if c.Base == nil {
		return ctx, cancel
	}
	stop := context.AfterFunc(c.Base, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func inflightKey(kind provider.Kind, key, fallback string) string {
	if key == "" {
		key = fallback
	}
	return string(kind) + ":" + key
}

func (c *Coordinator) run(ctx context.Context, adapter provider.Adapter, poller *poll.Poller, req provider.Request) (string, error) {
	if adapter == nil {
		return "", errs.Configuration("no provider configured")
	}
	kind := adapter.Kind()
	start := time.Now()

	sub, err := adapter.Submit(ctx, req)
	if err != nil {
		c.observe(kind, outcome(err), 0)
		log.Error("generation submit failed", "kind", kind, "provider", adapter.Name(), "err", err)
		return "", err
	}

	if sub.Mode == provider.Immediate {
		c.observe(kind, "ok", 0)
		log.Info("generation finished", "kind", kind, "provider", adapter.Name(), "duration", time.Since(start))
		return sub.URL, nil
	}

	tracker, ok := adapter.(provider.Tracker)
	if !ok {
		return "", &errs.ProviderError{Provider: adapter.Name(), Err: fmt.Errorf("pending task %s but provider cannot be polled", sub.TaskID)}
	}

	log.Info("generation submitted", "kind", kind, "provider", adapter.Name(), "task", sub.TaskID)
	res, err := poller.Poll(ctx, sub.TaskID, func(ctx context.Context) ([]byte, error) {
		return tracker.Status(ctx, sub.TaskID)
	}, tracker.Classify)
	if err == nil {
		err = res.Err(sub.TaskID)
	}
	if err != nil {
		c.observe(kind, outcome(err), res.Attempts)
		log.Error("generation failed", "kind", kind, "provider", adapter.Name(), "task", sub.TaskID, "attempts", res.Attempts, "err", err)
		return "", err
	}

	c.observe(kind, "ok", res.Attempts)
	log.Info("generation finished", "kind", kind, "provider", adapter.Name(), "task", sub.TaskID, "attempts", res.Attempts, "duration", time.Since(start))
	return res.URL, nil
}

func outcome(err error) string {
	var (
		t *errs.TimeoutError
		f *errs.JobFailedError
	)
	switch {
	case errors.As(err, &t):
		return "timeout"
	case errors.As(err, &f):
		return "failed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}

func (c *Coordinator) observe(kind provider.Kind, outcome string, attempts int) {
	if c.OnJob != nil {
		c.OnJob(kind, outcome, attempts)
	}
}
