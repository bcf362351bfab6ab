// Package errs holds the error kinds that cross package boundaries and
// their mapping onto HTTP responses.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// ValidationError is bad or missing input that the caller can correct.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Validation returns a ValidationError with a formatted message.
func Validation(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// ConfigurationError means a credential or endpoint is missing. It is never
// retryable and its detail must not reach the client.
type ConfigurationError struct {
	Setting string
}

func (e *ConfigurationError) Error() string {
	return "missing configuration: " + e.Setting
}

// Configuration returns a ConfigurationError for the named setting.
func Configuration(setting string) error {
	return &ConfigurationError{Setting: setting}
}

// ErrNoResultField marks a provider response that parsed but lacked the
// field carrying the result URL or task id.
var ErrNoResultField = errors.New("no result field in provider response")

// ErrMalformedAnalysis marks an LLM analysis payload that failed validation.
var ErrMalformedAnalysis = errors.New("malformed analysis payload")

// ProviderError is an upstream failure: a non-2xx answer or a body that
// does not honour the provider contract.
type ProviderError struct {
	Provider   string
	StatusCode int
	// Upstream is the provider's own message, empty when it sent none.
	Upstream string
	Err      error
}

func (e *ProviderError) Error() string {
	msg := e.Provider + ": "
	if e.StatusCode != 0 {
		msg += fmt.Sprintf("status %d: ", e.StatusCode)
	}
	switch {
	case e.Upstream != "":
		msg += e.Upstream
	case e.Err != nil:
		msg += e.Err.Error()
	default:
		msg += "request failed"
	}
	return msg
}

func (e *ProviderError) Unwrap() error { return e.Err }

// TimeoutError means a job poller ran out of attempts before the job
// reached a terminal state.
type TimeoutError struct {
	TaskID   string
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("task %s: no terminal state after %d attempts", e.TaskID, e.Attempts)
}

// JobFailedError means the provider reported the job as failed.
type JobFailedError struct {
	TaskID string
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("task %s: provider reported failure", e.TaskID)
}

// RelayError is a failed upstream media fetch. StatusCode is the upstream
// status, or 0 for network faults.
type RelayError struct {
	StatusCode int
	Err        error
}

func (e *RelayError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("relay upstream status %d", e.StatusCode)
	}
	return fmt.Sprintf("relay fetch: %v", e.Err)
}

func (e *RelayError) Unwrap() error { return e.Err }

// Status maps err onto the HTTP status the API answers with.
func Status(err error) int {
	var (
		v  *ValidationError
		re *RelayError
	)
	switch {
	case errors.As(err, &v):
		return http.StatusBadRequest
	case errors.As(err, &re):
		if re.StatusCode >= 400 {
			return re.StatusCode
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Public returns the message that is safe to show the user for err.
// fallback is used when nothing more specific applies.
func Public(err error, fallback string) string {
	var (
		v  *ValidationError
		c  *ConfigurationError
		p  *ProviderError
		t  *TimeoutError
		f  *JobFailedError
		re *RelayError
	)
	switch {
	case errors.As(err, &v):
		return v.Msg
	case errors.As(err, &c):
		return "service configuration error"
	case errors.As(err, &t):
		return "generation timed out"
	case errors.As(err, &f):
		return "generation failed"
	case errors.As(err, &re):
		return "failed to fetch media"
	case errors.Is(err, ErrMalformedAnalysis):
		return "malformed analysis payload"
	case errors.As(err, &p):
		if p.Upstream != "" && len(p.Upstream) <= 200 {
			return p.Upstream
		}
		return fallback
	default:
		return fallback
	}
}
