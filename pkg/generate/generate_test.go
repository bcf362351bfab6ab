package generate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dreamer/pkg/errs"
	"dreamer/pkg/poll"
	"dreamer/pkg/provider"
)

type immediateAdapter struct {
	url     string
	err     error
	calls   atomic.Int32
	release chan struct{}
	got     provider.Request
}

func (a *immediateAdapter) Name() string        { return "fake-image" }
func (a *immediateAdapter) Kind() provider.Kind { return provider.Image }

func (a *immediateAdapter) Submit(ctx context.Context, req provider.Request) (provider.Submission, error) {
	a.calls.Add(1)
	a.got = req
	if a.release != nil {
		<-a.release
	}
	if a.err != nil {
		return provider.Submission{}, a.err
	}
	return provider.Submission{Mode: provider.Immediate, URL: a.url}, nil
}

// asyncAdapter answers statuses from a script, one per query. The last
// entry repeats. With hold set it answers PROCESSING until hold is cleared.
type asyncAdapter struct {
	kind    provider.Kind
	script  []string
	hold    *atomic.Bool
	queries atomic.Int32
	got     provider.Request
}

func (a *asyncAdapter) Name() string        { return "fake-async" }
func (a *asyncAdapter) Kind() provider.Kind { return a.kind }

func (a *asyncAdapter) Submit(ctx context.Context, req provider.Request) (provider.Submission, error) {
	a.got = req
	return provider.Submission{Mode: provider.Pending, TaskID: "task-1"}, nil
}

func (a *asyncAdapter) Status(ctx context.Context, taskID string) ([]byte, error) {
	n := int(a.queries.Add(1)) - 1
	if a.hold != nil && a.hold.Load() {
		return []byte("PROCESSING"), nil
	}
	if n >= len(a.script) {
		n = len(a.script) - 1
	}
	return []byte(a.script[n]), nil
}

func (a *asyncAdapter) Classify(payload []byte) poll.Status {
	switch s := string(payload); s {
	case "FAIL":
		return poll.Status{State: poll.Failed, Raw: s}
	case "PROCESSING":
		return poll.Status{State: poll.Pending, Raw: s}
	default:
		return poll.Status{State: poll.Succeeded, URL: s, Raw: "SUCCESS"}
	}
}

var fast = poll.Config{Interval: time.Millisecond, MaxAttempts: 5}

func TestImageImmediate(t *testing.T) {
	img := &immediateAdapter{url: "https://cdn/x.png"}
	c := New(Config{Image: img, ImagePoll: fast})

	var jobs []string
	c.OnJob = func(kind provider.Kind, outcome string, attempts int) {
		jobs = append(jobs, string(kind)+":"+outcome)
	}

	url, err := c.Image(context.Background(), "  a lantern  ", "rec-1")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/x.png", url)
	assert.Equal(t, "a lantern", img.got.Prompt)
	assert.Equal(t, []string{"image:ok"}, jobs)
}

func TestImageValidation(t *testing.T) {
	img := &immediateAdapter{url: "u"}
	c := New(Config{Image: img})
	_, err := c.Image(context.Background(), " ", "")
	var v *errs.ValidationError
	require.ErrorAs(t, err, &v)
	assert.Zero(t, img.calls.Load())
}

func TestImageAsync(t *testing.T) {
	img := &asyncAdapter{kind: provider.Image, script: []string{"PROCESSING", "PROCESSING", "https://cdn/w.png"}}
	c := New(Config{Image: img, ImagePoll: fast})

	var attempts int
	c.OnJob = func(_ provider.Kind, _ string, n int) { attempts = n }

	url, err := c.Image(context.Background(), "a lighthouse", "")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/w.png", url)
	assert.Equal(t, 3, attempts)
}

func TestVideo(t *testing.T) {
	t.Run("success is relay wrapped", func(t *testing.T) {
		vid := &asyncAdapter{kind: provider.Video, script: []string{"PROCESSING", "https://cdn/v.mp4"}}
		c := New(Config{Video: vid, VideoPoll: fast})

		url, err := c.Video(context.Background(), "data:image/png;base64,AAAA", "", "rec-1")
		require.NoError(t, err)
		assert.Equal(t, "/api/video-relay?url=https%3A%2F%2Fcdn%2Fv.mp4", url)
		assert.Equal(t, provider.DefaultVideoPrompt, vid.got.Prompt)
		assert.Equal(t, "data:image/png;base64,AAAA", vid.got.ImageRef)
	})

	t.Run("provider failure", func(t *testing.T) {
		vid := &asyncAdapter{kind: provider.Video, script: []string{"PROCESSING", "FAIL"}}
		c := New(Config{Video: vid, VideoPoll: fast})

		var outcome string
		c.OnJob = func(_ provider.Kind, o string, _ int) { outcome = o }

		_, err := c.Video(context.Background(), "data:x", "swirl", "")
		var f *errs.JobFailedError
		require.ErrorAs(t, err, &f)
		assert.Equal(t, "failed", outcome)
		assert.EqualValues(t, 2, vid.queries.Load())
	})

	t.Run("timeout", func(t *testing.T) {
		vid := &asyncAdapter{kind: provider.Video, script: []string{"PROCESSING"}}
		c := New(Config{Video: vid, VideoPoll: poll.Config{Interval: time.Millisecond, MaxAttempts: 3}})

		_, err := c.Video(context.Background(), "data:x", "swirl", "")
		var to *errs.TimeoutError
		require.ErrorAs(t, err, &to)
		assert.Equal(t, 3, to.Attempts)
		assert.EqualValues(t, 3, vid.queries.Load())
	})

	t.Run("image required", func(t *testing.T) {
		vid := &asyncAdapter{kind: provider.Video, script: []string{"x"}}
		c := New(Config{Video: vid})
		_, err := c.Video(context.Background(), "", "swirl", "")
		var v *errs.ValidationError
		assert.ErrorAs(t, err, &v)
	})

	t.Run("cancellation stops polling", func(t *testing.T) {
		vid := &asyncAdapter{kind: provider.Video, script: []string{"PROCESSING"}}
		c := New(Config{Video: vid, VideoPoll: poll.Config{Interval: time.Hour, MaxAttempts: 120}})

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := c.Video(ctx, "data:x", "", "")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Never(t, func() bool { return vid.queries.Load() > 1 }, 50*time.Millisecond, 5*time.Millisecond)
	})
}

func TestSubmitErrorPassesThrough(t *testing.T) {
	boom := &errs.ProviderError{Provider: "fake-image", StatusCode: 500, Upstream: "quota exceeded"}
	c := New(Config{Image: &immediateAdapter{err: boom}})

	_, err := c.Image(context.Background(), "p", "")
	assert.True(t, errors.Is(err, boom))
}

func TestMissingAdapter(t *testing.T) {
	c := New(Config{})
	_, err := c.Image(context.Background(), "p", "")
	var ce *errs.ConfigurationError
	assert.ErrorAs(t, err, &ce)
}

func TestConcurrentRequestsShareOneJob(t *testing.T) {
	img := &immediateAdapter{url: "https://cdn/one.png", release: make(chan struct{})}
	c := New(Config{Image: img})

	var wg sync.WaitGroup
	results := make([]string, 4)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			url, err := c.Image(context.Background(), "same prompt", "rec-7")
			assert.NoError(t, err)
			results[i] = url
		}()
	}

	require.Eventually(t, func() bool { return c.inflight.Waiters("image:rec-7") == 3 }, time.Second, time.Millisecond)
	close(img.release)
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, "https://cdn/one.png", r)
	}
	assert.EqualValues(t, 1, img.calls.Load())
}

func held() *atomic.Bool {
	var b atomic.Bool
	b.Store(true)
	return &b
}

func TestSharedJobOutlivesFirstCaller(t *testing.T) {
	hold := held()
	img := &asyncAdapter{kind: provider.Image, script: []string{"https://cdn/shared.png"}, hold: hold}
	c := New(Config{Image: img, ImagePoll: poll.Config{Interval: time.Millisecond, MaxAttempts: 10000}})

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Image(first, "a tower", "rec-1")
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return c.inflight.InFlight("image:rec-1") }, time.Second, time.Millisecond)

	second := make(chan string, 1)
	go func() {
		url, err := c.Image(context.Background(), "a tower", "rec-1")
		assert.NoError(t, err)
		second <- url
	}()
	require.Eventually(t, func() bool { return c.inflight.Waiters("image:rec-1") == 1 }, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	hold.Store(false)
	select {
	case url := <-second:
		assert.Equal(t, "https://cdn/shared.png", url)
	case <-time.After(2 * time.Second):
		t.Fatal("second caller never got the shared result")
	}
}

func TestJoinedCallerLeavesOnCancel(t *testing.T) {
	hold := held()
	img := &asyncAdapter{kind: provider.Image, script: []string{"https://cdn/x.png"}, hold: hold}
	c := New(Config{Image: img, ImagePoll: poll.Config{Interval: time.Millisecond, MaxAttempts: 10000}})

	firstURL := make(chan string, 1)
	go func() {
		url, err := c.Image(context.Background(), "p", "rec-2")
		assert.NoError(t, err)
		firstURL <- url
	}()
	require.Eventually(t, func() bool { return c.inflight.InFlight("image:rec-2") }, time.Second, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	joinErr := make(chan error, 1)
	go func() {
		_, err := c.Image(ctx, "p", "rec-2")
		joinErr <- err
	}()
	require.Eventually(t, func() bool { return c.inflight.Waiters("image:rec-2") == 1 }, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-joinErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("joined caller still waiting after its context was cancelled")
	}

	hold.Store(false)
	assert.Equal(t, "https://cdn/x.png", <-firstURL)
}

func TestLastCallerLeavingCancelsJob(t *testing.T) {
	img := &asyncAdapter{kind: provider.Image, script: []string{"PROCESSING"}}
	c := New(Config{Image: img, ImagePoll: poll.Config{Interval: time.Millisecond, MaxAttempts: 10000}})

	var outcome atomic.Value
	c.OnJob = func(_ provider.Kind, o string, _ int) { outcome.Store(o) }

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		assert.Eventually(t, func() bool { return img.queries.Load() > 0 }, time.Second, time.Millisecond)
		cancel()
	}()
	_, err := c.Image(ctx, "p", "")
	assert.ErrorIs(t, err, context.Canceled)

	require.Eventually(t, func() bool { return outcome.Load() == "canceled" }, time.Second, time.Millisecond)
	n := img.queries.Load()
	assert.Never(t, func() bool { return img.queries.Load() > n }, 30*time.Millisecond, 5*time.Millisecond)
}

func TestBaseContextStopsJobs(t *testing.T) {
	img := &asyncAdapter{kind: provider.Image, script: []string{"PROCESSING"}}
	c := New(Config{Image: img, ImagePoll: poll.Config{Interval: time.Millisecond, MaxAttempts: 10000}})

	base, shutdown := context.WithCancel(context.Background())
	c.Base = base
	go func() {
		assert.Eventually(t, func() bool { return img.queries.Load() > 0 }, time.Second, time.Millisecond)
		shutdown()
	}()

	_, err := c.Image(context.Background(), "p", "")
	assert.ErrorIs(t, err, context.Canceled)
}
