package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"time"

	"agentloop/internal/domain"
)

// =============================================================================
// RetryConfig
// =============================================================================

// Config controls retry behaviour for tool executions.
type Config struct {
	MaxRetries     int           `json:"maxRetries"`     // Maximum number of retry attempts (0 = no retries)
	InitialBackoff time.Duration `json:"initialBackoff"` // Delay before first retry
	MaxBackoff     time.Duration `json:"maxBackoff"`     // Upper bound on backoff duration
	Multiplier     float64       `json:"multiplier"`     // Backoff multiplier (e.g. 2.0 for exponential)
}

// DefaultConfig returns sensible retry defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     2,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Multiplier:     2.0,
	}
}

// NoRetry runs each function exactly once.
func NoRetry() Config {
	cfg := DefaultConfig()
	cfg.MaxRetries = 0
	return cfg
}

// FromDomain converts the millisecond-based config file section. A zero
// section yields NoRetry; missing backoff fields fall back to defaults.
func FromDomain(rc domain.RetryConfig) Config {
	if rc.MaxRetries <= 0 {
		return NoRetry()
	}
	cfg := DefaultConfig()
	cfg.MaxRetries = rc.MaxRetries
	if rc.InitialBackoff > 0 {
		cfg.InitialBackoff = time.Duration(rc.InitialBackoff) * time.Millisecond
	}
	if rc.MaxBackoff > 0 {
		cfg.MaxBackoff = time.Duration(rc.MaxBackoff) * time.Millisecond
	}
	if rc.Multiplier > 0 {
		cfg.Multiplier = float64(rc.Multiplier)
	}
	return cfg
}

// Validate checks that all Config fields are within acceptable ranges.
func (c Config) Validate() error {
	if c.MaxRetries < 0 {
		return errors.New("retry: MaxRetries must be >= 0")
	}
	if c.InitialBackoff <= 0 {
		return errors.New("retry: InitialBackoff must be > 0")
	}
	if c.MaxBackoff <= 0 {
		return errors.New("retry: MaxBackoff must be > 0")
	}
	if c.Multiplier < 1.0 {
		return errors.New("retry: Multiplier must be >= 1.0")
	}
	return nil
}

// =============================================================================
// Error Classification
// =============================================================================

// transientError marks an error as safe to retry.
type transientError struct{ err error }

func (e transientError) Error() string { return e.err.Error() }
func (e transientError) Unwrap() error { return e.err }

// Transient wraps err so IsRetryable reports true. Tools use it for failures
// they know to be temporary.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return transientError{err: err}
}

// statusCoder is implemented by errors that carry an HTTP status, such as
// the fetch_page tool's status error.
type statusCoder interface {
	StatusCode() int
}

// IsRetryable reports whether err is a transient failure that may succeed on
// retry: marked with Transient, a network timeout, a refused connection, a
// truncated response, or an HTTP status of 429 or 5xx carried by a typed
// error. Error text is never inspected, since tool errors echo the model's
// arguments. Context errors are never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var marked transientError
	if errors.As(err, &marked) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var sc statusCoder
	if errors.As(err, &sc) {
		code := sc.StatusCode()
		return code == 429 || code >= 500
	}
	return false
}

// =============================================================================
// Policy
// =============================================================================

// Policy retries a function on transient errors with exponential backoff.
type Policy struct {
	config    Config
	sleepFunc func(ctx context.Context, d time.Duration) error // injectable for testing
}

// NewPolicy returns a Policy for cfg.
func NewPolicy(cfg Config) *Policy {
	return &Policy{config: cfg, sleepFunc: sleepCtx}
}

// Config returns the policy's configuration.
func (p *Policy) Config() Config { return p.config }

// Do calls fn until it succeeds, returns a non-retryable error, or retries are
// exhausted. Returns the first nil result or the last error.
func (p *Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	backoff := p.config.InitialBackoff

	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		lastErr = err

		if !IsRetryable(err) {
			return err
		}

		// Don't sleep after the last attempt
		if attempt == p.config.MaxRetries {
			break
		}

		if sleepErr := p.sleepFunc(ctx, backoff); sleepErr != nil {
			return sleepErr
		}

		next := time.Duration(float64(backoff) * p.config.Multiplier)
		if next > p.config.MaxBackoff {
			next = p.config.MaxBackoff
		}
		backoff = next
	}

	if p.config.MaxRetries == 0 {
		return lastErr
	}
	return fmt.Errorf("retries exhausted after %d attempts: %w", p.config.MaxRetries+1, lastErr)
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
