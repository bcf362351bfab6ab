// Package poll drives asynchronous provider jobs to a terminal state.
//
// A job is checked by repeatedly calling a Query and handing its raw payload
// to a provider-specific Classifier. Succeeded and Failed are terminal; any
// other status, including ones the classifier does not recognise, is pending
// and is checked again after Interval. Polling gives up after MaxAttempts
// queries. There is no backoff: the interval is fixed.
package poll

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"dreamer/pkg/errs"
)

type State int

const (
	Pending State = iota
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "pending"
	}
}

// Status is a classified status payload. URL is only meaningful when
// State is Succeeded.
type Status struct {
	State State
	URL   string
	// Raw is the provider's own status word, kept for logging.
	Raw string
}

// Classifier maps one raw status payload onto a Status.
type Classifier func(payload []byte) Status

// Query performs one status request and returns its raw payload.
type Query func(ctx context.Context) ([]byte, error)

type Config struct {
	Interval    time.Duration
	MaxAttempts int
}

// Result is the outcome of Poll. URL is empty when no result could be
// obtained, whether the provider failed the job or the attempts ran out.
type Result struct {
	URL      string
	Attempts int
	// Failed is true when the provider reported failure, as opposed to
	// the attempt budget running out.
	Failed bool
}

func (r Result) OK() bool { return r.URL != "" }

// Err converts an empty Result into the matching error for taskID.
func (r Result) Err(taskID string) error {
	switch {
	case r.OK():
		return nil
	case r.Failed:
		return &errs.JobFailedError{TaskID: taskID}
	default:
		return &errs.TimeoutError{TaskID: taskID, Attempts: r.Attempts}
	}
}

type Poller struct {
	cfg   Config
	sleep func(ctx context.Context, d time.Duration) error
}

func New(cfg Config) *Poller {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return &Poller{cfg: cfg, sleep: sleepCtx}
}

func (p *Poller) Config() Config { return p.cfg }

// Poll queries until the job reaches a terminal state or the attempt budget
// is spent. It returns an error only when ctx is done or a query fails; a
// failed or timed out job is reported through Result.
func (p *Poller) Poll(ctx context.Context, taskID string, query Query, classify Classifier) (Result, error) {
	var res Result
	for res.Attempts < p.cfg.MaxAttempts {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		res.Attempts++
		payload, err := query(ctx)
		if err != nil {
			return res, fmt.Errorf("status query %d for task %s: %w", res.Attempts, taskID, err)
		}

		st := classify(payload)
		log.Debug("polled task", "task", taskID, "attempt", res.Attempts, "max", p.cfg.MaxAttempts, "status", st.Raw)

		switch st.State {
		case Succeeded:
			if st.URL == "" {
				return res, &errs.ProviderError{Provider: "poll", Err: fmt.Errorf("task %s succeeded: %w", taskID, errs.ErrNoResultField)}
			}
			res.URL = st.URL
			return res, nil
		case Failed:
			log.Warn("task failed", "task", taskID, "attempt", res.Attempts, "status", st.Raw)
			res.Failed = true
			return res, nil
		}

		if res.Attempts == p.cfg.MaxAttempts {
			break
		}
		if err := p.sleep(ctx, p.cfg.Interval); err != nil {
			return res, err
		}
	}
	log.Warn("task did not finish", "task", taskID, "attempts", res.Attempts)
	return res, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
