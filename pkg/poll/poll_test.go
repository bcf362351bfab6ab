package poll

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dreamer/pkg/errs"
)

// scripted returns a Query that replays statuses and counts calls.
func scripted(statuses ...string) (Query, *int) {
	calls := 0
	return func(ctx context.Context) ([]byte, error) {
		s := statuses[min(calls, len(statuses)-1)]
		calls++
		return []byte(s), nil
	}, &calls
}

// classify understands "pending", "failed" and "ok:<url>".
func classify(payload []byte) Status {
	s := string(payload)
	switch {
	case s == "failed":
		return Status{State: Failed, Raw: s}
	case len(s) > 3 && s[:3] == "ok:":
		return Status{State: Succeeded, URL: s[3:], Raw: "ok"}
	default:
		return Status{State: Pending, Raw: s}
	}
}

func newTestPoller(attempts int) (*Poller, *int) {
	p := New(Config{Interval: time.Hour, MaxAttempts: attempts})
	sleeps := 0
	p.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps++
		return ctx.Err()
	}
	return p, &sleeps
}

func TestPollSucceeds(t *testing.T) {
	p, sleeps := newTestPoller(5)
	q, calls := scripted("pending", "pending", "ok:X")

	res, err := p.Poll(context.Background(), "task", q, classify)
	require.NoError(t, err)

	assert.Equal(t, "X", res.URL)
	assert.True(t, res.OK())
	assert.Equal(t, 3, *calls)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 2, *sleeps)
	assert.NoError(t, res.Err("task"))
}

func TestPollFailsEarly(t *testing.T) {
	p, _ := newTestPoller(5)
	q, calls := scripted("pending", "pending", "failed", "ok:never")

	res, err := p.Poll(context.Background(), "task", q, classify)
	require.NoError(t, err)

	assert.Empty(t, res.URL)
	assert.True(t, res.Failed)
	assert.Equal(t, 3, *calls)

	var failed *errs.JobFailedError
	assert.ErrorAs(t, res.Err("task"), &failed)
}

func TestPollExhausts(t *testing.T) {
	p, sleeps := newTestPoller(3)
	q, calls := scripted("pending")

	res, err := p.Poll(context.Background(), "task", q, classify)
	require.NoError(t, err)

	assert.Empty(t, res.URL)
	assert.False(t, res.Failed)
	assert.Equal(t, 3, *calls)
	assert.Equal(t, 2, *sleeps, "no sleep after the final attempt")

	var timeout *errs.TimeoutError
	require.ErrorAs(t, res.Err("task"), &timeout)
	assert.Equal(t, 3, timeout.Attempts)
}

func TestPollUnknownStatusIsPending(t *testing.T) {
	p, _ := newTestPoller(4)
	q, calls := scripted("QUEUED", "RUNNING", "ok:Y")

	res, err := p.Poll(context.Background(), "task", q, classify)
	require.NoError(t, err)
	assert.Equal(t, "Y", res.URL)
	assert.Equal(t, 3, *calls)
}

func TestPollSucceededWithoutURL(t *testing.T) {
	p, _ := newTestPoller(4)
	q := func(ctx context.Context) ([]byte, error) { return nil, nil }
	empty := func([]byte) Status { return Status{State: Succeeded} }

	_, err := p.Poll(context.Background(), "task", q, empty)
	assert.ErrorIs(t, err, errs.ErrNoResultField)
}

func TestPollQueryError(t *testing.T) {
	p, _ := newTestPoller(4)
	boom := errors.New("connection reset")
	q := func(ctx context.Context) ([]byte, error) { return nil, boom }

	res, err := p.Poll(context.Background(), "task", q, classify)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, res.Attempts)
}

func TestPollCancelled(t *testing.T) {
	p := New(Config{Interval: time.Hour, MaxAttempts: 100})
	q, calls := scripted("pending")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := p.Poll(ctx, "task", q, classify)
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("poll did not stop after cancellation")
	}
	assert.LessOrEqual(t, *calls, 1)
}

func TestPollRealInterval(t *testing.T) {
	p := New(Config{Interval: time.Millisecond, MaxAttempts: 3})
	q, calls := scripted("pending", "ok:Z")

	res, err := p.Poll(context.Background(), "task", q, classify)
	require.NoError(t, err)
	assert.Equal(t, "Z", res.URL)
	assert.Equal(t, 2, *calls)
}
