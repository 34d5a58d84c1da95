// Package resilient wraps store calls with a bounded retry. Its purpose is
// absorbing the short window where a dependent read (a settlement-portal
// lookup keyed by order id) lands before the order-creation write has become
// visible, and transient store hiccups on either path.
package resilient

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/finlane/ledger-service/internal/domain"
	"github.com/sethvargo/go-retry"
)

const (
	DefaultAttempts = 3
	DefaultBackoff  = 250 * time.Millisecond
)

type Access struct {
	maxRetries uint64
	backoff    time.Duration
}

func NewAccess() *Access {
	return &Access{maxRetries: DefaultAttempts - 1, backoff: DefaultBackoff}
}

func NewAccessWith(attempts int, backoff time.Duration) *Access {
	if attempts < 1 {
		attempts = 1
	}
	return &Access{maxRetries: uint64(attempts - 1), backoff: backoff}
}

// Read runs fn, retrying on not-found and transient store errors. The tag
// identifies the operation in logs only; it carries no correctness weight.
func (a *Access) Read(ctx context.Context, tag string, fn func(ctx context.Context) error) error {
	return a.run(ctx, tag, fn, true)
}

// Write runs fn, retrying only transient store errors. A not-found on a
// write path is a hard failure and is surfaced immediately.
func (a *Access) Write(ctx context.Context, tag string, fn func(ctx context.Context) error) error {
	return a.run(ctx, tag, fn, false)
}

func (a *Access) run(ctx context.Context, tag string, fn func(ctx context.Context) error, retryNotFound bool) error {
	attempt := 0
	err := retry.Do(ctx, retry.WithMaxRetries(a.maxRetries, retry.NewConstant(a.backoff)), func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, domain.ErrStore) || (retryNotFound && errors.Is(err, domain.ErrNotFound)) {
			slog.Warn("store call failed, retrying", "tag", tag, "attempt", attempt, "error", err.Error())
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		slog.Error("store call failed", "tag", tag, "attempts", attempt, "error", err.Error())
	}
	return err
}
