package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"spotscan/internal/errs"
)

// Config is the retry configuration.
//
// Exponential backoff with jitter:
// delay = min(InitialDelay * Multiplier^attempt, MaxDelay) ± jitter
//
// Jitter adds randomness to avoid a thundering herd when many clients
// retry at the same time.
type Config struct {
	// MaxRetries is the maximum number of attempts (including the
	// first). Zero or negative means retry forever (not recommended).
	MaxRetries int

	// InitialDelay is the delay before the first retry.
	// Default: 100ms.
	InitialDelay time.Duration

	// MaxDelay caps the delay between attempts.
	// Default: 30s.
	MaxDelay time.Duration

	// Multiplier is the exponential growth factor.
	// Default: 2.0 (doubles after each attempt).
	Multiplier float64

	// JitterFactor is the randomness factor (0.0-1.0).
	// 0.0 = no jitter, 1.0 = up to 100% variation.
	// Default: 0.1 (10% variation).
	JitterFactor float64

	// RetryIf decides whether an error should be retried.
	// Default: retry every error.
	RetryIf func(error) bool

	// OnRetry is called before each retry, useful for logging.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultConfig returns the default configuration.
//
// Suited to most API requests:
// - 4 attempts
// - delays: 100ms, 200ms, 400ms (+ jitter)
// - 30s max wait
func DefaultConfig() Config {
	return Config{
		MaxRetries:   4,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// AggressiveConfig is for critical operations (e.g. closing positions).
//
// More attempts, faster retries:
// - 6 attempts
// - delays: 50ms, 100ms, 200ms, 400ms, 800ms
func AggressiveConfig() Config {
	return Config{
		MaxRetries:   6,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// ConservativeConfig is for non-critical operations (e.g. fetching a
// balance).
//
// Fewer attempts, slower retries:
// - 3 attempts
// - delays: 500ms, 1s
func ConservativeConfig() Config {
	return Config{
		MaxRetries:   3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.2,
	}
}

// NetworkConfig is for network errors, with longer delays.
//
// - 4 attempts
// - delays: 1s, 2s, 4s
func NetworkConfig() Config {
	return Config{
		MaxRetries:   4,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.2,
	}
}

// validate fills in defaults for unset fields.
func (c *Config) validate() {
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2.0
	}
	if c.JitterFactor < 0 {
		c.JitterFactor = 0
	}
	if c.JitterFactor > 1 {
		c.JitterFactor = 1
	}
}

// calculateDelay computes the delay before the given attempt.
func (c *Config) calculateDelay(attempt int) time.Duration {
	// Exponential growth: InitialDelay * Multiplier^attempt.
	delay := float64(c.InitialDelay) * math.Pow(c.Multiplier, float64(attempt))

	// Cap at MaxDelay.
	if delay > float64(c.MaxDelay) {
		delay = float64(c.MaxDelay)
	}

	// Add jitter.
	if c.JitterFactor > 0 {
		jitter := delay * c.JitterFactor * (rand.Float64()*2 - 1) // -JitterFactor to +JitterFactor
		delay += jitter
	}

	// Never return a negative delay.
	if delay < 0 {
		delay = 0
	}

	return time.Duration(delay)
}

// Do runs operation with retries.
//
// Parameters:
//   - ctx: cancellation context (timeout, cancel)
//   - operation: the function to run
//   - cfg: retry configuration
//
// Returns:
//   - nil: operation succeeded
//   - error: every attempt failed; returns the last error
//
// Example:
//
//	err := retry.Do(ctx, func() error {
//	    return exchange.PlaceOrder(...)
//	}, retry.DefaultConfig())
func Do(ctx context.Context, operation func() error, cfg Config) error {
	cfg.validate()

	var lastErr error

	for attempt := 0; cfg.MaxRetries <= 0 || attempt < cfg.MaxRetries; attempt++ {
		// Check the context before every attempt.
		select {
		case <-ctx.Done():
			if lastErr != nil {
				return lastErr
			}
			return ctx.Err()
		default:
		}

		err := operation()
		if err == nil {
			return nil
		}

		lastErr = err

		// Does this error even qualify for a retry?
		if cfg.RetryIf != nil && !cfg.RetryIf(err) {
			return err
		}

		// Last attempt: don't wait.
		if cfg.MaxRetries > 0 && attempt >= cfg.MaxRetries-1 {
			break
		}

		delay := cfg.calculateDelay(attempt)

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, err, delay)
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return lastErr
		}
	}

	return lastErr
}

// DoWithResult runs operation with retries, returning its result.
//
// Useful when the operation produces a value:
//
//	result, err := retry.DoWithResult(ctx, func() (*Order, error) {
//	    return exchange.PlaceOrder(...)
//	}, retry.DefaultConfig())
func DoWithResult[T any](ctx context.Context, operation func() (T, error), cfg Config) (T, error) {
	cfg.validate()

	var lastErr error
	var zero T

	for attempt := 0; cfg.MaxRetries <= 0 || attempt < cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			if lastErr != nil {
				return zero, lastErr
			}
			return zero, ctx.Err()
		default:
		}

		result, err := operation()
		if err == nil {
			return result, nil
		}

		lastErr = err

		if cfg.RetryIf != nil && !cfg.RetryIf(err) {
			return zero, err
		}

		if cfg.MaxRetries > 0 && attempt >= cfg.MaxRetries-1 {
			break
		}

		delay := cfg.calculateDelay(attempt)

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, err, delay)
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, lastErr
		}
	}

	return zero, lastErr
}

// ============================================================
// Predefined RetryIf functions
// ============================================================

// RetryableError is implemented by errors that can declare whether
// they're worth retrying.
type RetryableError interface {
	error
	Retryable() bool
}

// IsRetryable reports whether err should be retried.
//
// Returns true if:
// - err implements RetryableError and Retryable() == true
// - err is temporary (Temporary() == true)
// - err wraps a RetryableError
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var retryable RetryableError
	if errors.As(err, &retryable) {
		return retryable.Retryable()
	}

	type temporary interface {
		Temporary() bool
	}
	var temp temporary
	if errors.As(err, &temp) {
		return temp.Temporary()
	}

	// Default to retrying.
	return true
}

// RetryIfTemporary retries only errors marked temporary.
func RetryIfTemporary(err error) bool {
	type temporary interface {
		Temporary() bool
	}
	var temp temporary
	if errors.As(err, &temp) {
		return temp.Temporary()
	}
	return false
}

// RetryIfNotContext refuses to retry context errors (cancel, timeout).
func RetryIfNotContext(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// RetryIfTaxonomy retries exactly the errs.KindTransient/KindRateLimited
// buckets, leaving Validation/InsufficientData/Permanent/Fatal to
// propagate on the first attempt. This is the RetryIf exchange client
// calls wire into their Config.
func RetryIfTaxonomy(err error) bool {
	return errs.Retryable(err)
}

// ============================================================
// Wrapper errors
// ============================================================

// PermanentError wraps an error that should never be retried.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

func (e *PermanentError) Retryable() bool {
	return false
}

// Permanent wraps err in a PermanentError.
//
// Example:
//
//	if validationError {
//	    return retry.Permanent(errors.New("invalid input"))
//	}
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// TemporaryError wraps an error that should be retried.
type TemporaryError struct {
	Err error
}

func (e *TemporaryError) Error() string {
	return e.Err.Error()
}

func (e *TemporaryError) Unwrap() error {
	return e.Err
}

func (e *TemporaryError) Retryable() bool {
	return true
}

func (e *TemporaryError) Temporary() bool {
	return true
}

// Temporary wraps err in a TemporaryError.
//
// Example:
//
//	if networkError {
//	    return retry.Temporary(err)
//	}
func Temporary(err error) error {
	if err == nil {
		return nil
	}
	return &TemporaryError{Err: err}
}

// ============================================================
// Retryer - reusable retry object
// ============================================================

// Retryer carries a fixed Config across many calls:
//
//	r := retry.NewRetryer(retry.DefaultConfig())
//	err := r.Do(ctx, operation1)
//	err = r.Do(ctx, operation2)
type Retryer struct {
	cfg Config
}

// NewRetryer builds a Retryer from cfg.
func NewRetryer(cfg Config) *Retryer {
	cfg.validate()
	return &Retryer{cfg: cfg}
}

// Do runs operation with the Retryer's configuration.
func (r *Retryer) Do(ctx context.Context, operation func() error) error {
	return Do(ctx, operation, r.cfg)
}

// DoWithResult runs operation with the Retryer's configuration.
func (r *Retryer) DoWithResult(ctx context.Context, operation func() (interface{}, error)) (interface{}, error) {
	return DoWithResult(ctx, operation, r.cfg)
}

// WithOnRetry returns a copy of the Retryer with the given callback.
func (r *Retryer) WithOnRetry(onRetry func(attempt int, err error, delay time.Duration)) *Retryer {
	newCfg := r.cfg
	newCfg.OnRetry = onRetry
	return &Retryer{cfg: newCfg}
}

// WithRetryIf returns a copy of the Retryer with the given filter.
func (r *Retryer) WithRetryIf(retryIf func(error) bool) *Retryer {
	newCfg := r.cfg
	newCfg.RetryIf = retryIf
	return &Retryer{cfg: newCfg}
}

// ============================================================
// Simple helpers
// ============================================================

// Once runs operation exactly once, no retries. Useful for keeping a
// uniform call signature alongside Do.
func Once(ctx context.Context, operation func() error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	return operation()
}

// Retry runs operation with DefaultConfig.
//
//	retry.Retry(ctx, operation) == retry.Do(ctx, operation, retry.DefaultConfig())
func Retry(ctx context.Context, operation func() error) error {
	return Do(ctx, operation, DefaultConfig())
}

// RetryN runs operation with the default delays but a caller-supplied
// attempt count:
//
//	retry.RetryN(ctx, operation, 3)
func RetryN(ctx context.Context, operation func() error, maxRetries int) error {
	cfg := DefaultConfig()
	cfg.MaxRetries = maxRetries
	return Do(ctx, operation, cfg)
}
