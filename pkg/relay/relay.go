// Package relay republishes provider-hosted media from this server's origin.
package relay

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"

	"dreamer/pkg/errs"
	"dreamer/pkg/flight"
	"dreamer/pkg/utils"
)

// Path is where the HTTP surface mounts the relay.
const Path = "/api/video-relay"

const defaultContentType = "video/mp4"

// Media is a fully buffered upstream asset.
type Media struct {
	Data        []byte
	ContentType string
}

func (m *Media) ContentLength() int { return len(m.Data) }

type Config struct {
	MaxBytes int64
	// CacheTTL is how long fetched assets are kept. Generated media never
	// changes, so concurrent and repeated requests share one fetch.
	CacheTTL time.Duration
	Timeout  time.Duration
}

type Relay struct {
	client *http.Client
	cfg    Config
	cache  flight.Cache[string, *Media]
	// OnFetch observes each upstream fetch; used for metrics.
	OnFetch func(bytes int, err error)
}

// New returns a relay fetching with client. A nil client only reaches
// public addresses; see utils.PublicClient.
func New(client *http.Client, cfg Config) *Relay {
	if client == nil {
		client = utils.PublicClient(0)
	}
	cfg.MaxBytes = cmp.Or(cfg.MaxBytes, 256<<20)
	cfg.Timeout = cmp.Or(cfg.Timeout, 5*time.Minute)

	r := &Relay{client: client, cfg: cfg}
	r.cache = flight.NewCache(r.fetch)
	r.cache.Expiry(cfg.CacheTTL)
	return r
}

// Wrap returns the same-origin relay reference for sourceURL.
func Wrap(sourceURL string) string {
	return Path + "?url=" + url.QueryEscape(sourceURL)
}

// Fetch returns the buffered asset at sourceURL. An empty sourceURL is a
// validation error; upstream failures are *errs.RelayError.
func (r *Relay) Fetch(ctx context.Context, sourceURL string) (*Media, error) {
	return r.fetchWith(ctx, sourceURL, r.cache.Get)
}

// Refetch is Fetch without the cache lookup. The fresh result replaces
// the cached one.
func (r *Relay) Refetch(ctx context.Context, sourceURL string) (*Media, error) {
	return r.fetchWith(ctx, sourceURL, r.cache.Force)
}

func (r *Relay) fetchWith(ctx context.Context, sourceURL string, get func(string) (*Media, error)) (*Media, error) {
	if sourceURL == "" {
		return nil, errs.Validation("missing url parameter")
	}
	u, err := url.Parse(sourceURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errs.Validation("url must be an absolute http(s) url")
	}

	// The fetch is shared between callers, so it runs on its own deadline
	// rather than the first caller's context.
	type result struct {
		m   *Media
		err error
	}
	ch := make(chan result, 1)
	go func() {
		m, err := get(sourceURL)
		ch <- result{m, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.m, res.err
	}
}

func (r *Relay) fetch(sourceURL string) (*Media, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.Timeout)
	defer cancel()

	start := time.Now()
	m, err := r.get(ctx, sourceURL)
	if r.OnFetch != nil {
		n := 0
		if m != nil {
			n = m.ContentLength()
		}
		r.OnFetch(n, err)
	}
	if err != nil {
		log.Warn("relay fetch failed", "url", sourceURL, "err", err)
		return nil, err
	}
	log.Info("relayed media", "bytes", m.ContentLength(), "type", m.ContentType, "duration", time.Since(start))
	return m, nil
}

func (r *Relay) get(ctx context.Context, sourceURL string) (*Media, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, &errs.RelayError{Err: err}
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &errs.RelayError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &errs.RelayError{StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, r.cfg.MaxBytes+1))
	if err != nil {
		return nil, &errs.RelayError{Err: err}
	}
	if int64(len(data)) > r.cfg.MaxBytes {
		return nil, &errs.RelayError{Err: fmt.Errorf("asset larger than %d bytes", r.cfg.MaxBytes)}
	}

	return &Media{
		Data:        data,
		ContentType: cmp.Or(resp.Header.Get("Content-Type"), defaultContentType),
	}, nil
}
