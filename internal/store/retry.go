package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/lexis-api/internal/domain"
	"github.com/phrazzld/lexis-api/internal/platform/logger"
	"github.com/sethvargo/go-retry"
)

// ErrTimeout is returned when a unit of work did not finish within its
// operation timeout, including all retries.
var ErrTimeout = fmt.Errorf("%w: operation timed out", domain.ErrTransient)

// RetryPolicy bounds how long a unit of work may take and how it is retried
// on transient failures such as lock timeouts.
type RetryPolicy struct {
	MaxAttempts uint64
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	OpTimeout   time.Duration
}

// DefaultRetryPolicy returns three attempts with 50ms exponential backoff
// capped at 1s and a 10s overall deadline.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   50 * time.Millisecond,
		MaxDelay:    time.Second,
		OpTimeout:   10 * time.Second,
	}
}

// RetryingTransactor wraps a Transactor so that each unit of work is retried
// with exponential backoff when it fails with a transient error. fn may run
// more than once and must not leak state between attempts.
type RetryingTransactor struct {
	next   Transactor
	policy RetryPolicy
	logger *slog.Logger
}

// NewRetryingTransactor creates a RetryingTransactor.
func NewRetryingTransactor(next Transactor, policy RetryPolicy, log *slog.Logger) *RetryingTransactor {
	if next == nil {
		panic("transactor cannot be nil")
	}
	if policy.MaxAttempts == 0 {
		policy.MaxAttempts = 1
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = DefaultRetryPolicy().BaseDelay
	}
	if log == nil {
		log = slog.Default()
	}
	return &RetryingTransactor{
		next:   next,
		policy: policy,
		logger: log.With(slog.String("component", "retrying_transactor")),
	}
}

var _ Transactor = (*RetryingTransactor)(nil)

// WithinTx implements Transactor.
func (r *RetryingTransactor) WithinTx(ctx context.Context, fn UnitFn) error {
	log := logger.FromContextOrDefault(ctx, r.logger)

	if r.policy.OpTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.policy.OpTimeout)
		defer cancel()
	}

	backoff := retry.NewExponential(r.policy.BaseDelay)
	if r.policy.MaxDelay > 0 {
		backoff = retry.WithCappedDuration(r.policy.MaxDelay, backoff)
	}
	backoff = retry.WithJitterPercent(20, backoff)
	backoff = retry.WithMaxRetries(r.policy.MaxAttempts-1, backoff)

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := r.next.WithinTx(ctx, fn)
		if err != nil && IsTransientError(err) {
			log.Warn("transient store failure, retrying",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()))
			return retry.RetryableError(err)
		}
		return err
	})

	if errors.Is(err, context.DeadlineExceeded) && !IsTransientError(err) {
		return fmt.Errorf("%w after %d attempt(s): %w", ErrTimeout, attempt, err)
	}
	return err
}
