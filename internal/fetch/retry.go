package fetch

import (
	"context"
	"log/slog"
	"time"

	hosterr "git.home.luguber.info/inful/docshost/internal/errors"
	"git.home.luguber.info/inful/docshost/internal/logfields"
	"git.home.luguber.info/inful/docshost/internal/registry"
	"git.home.luguber.info/inful/docshost/internal/retry"
)

// RetryingFetcher wraps a Fetcher with backoff on retryable upstream
// errors. Permanent failures and context cancellation pass through
// immediately.
type RetryingFetcher struct {
	inner  Fetcher
	policy retry.Policy
}

// NewRetryingFetcher wraps inner with the given policy.
func NewRetryingFetcher(inner Fetcher, policy retry.Policy) *RetryingFetcher {
	return &RetryingFetcher{inner: inner, policy: policy}
}

func (f *RetryingFetcher) Fetch(ctx context.Context, project *registry.Project, workDir string) (*Source, error) {
	var lastErr error
	for attempt := 0; attempt <= f.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := f.policy.Delay(attempt)
			slog.Debug("Retrying source fetch",
				logfields.Owner(project.Owner), logfields.Project(project.Name),
				slog.Int("attempt", attempt), slog.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		src, err := f.inner.Fetch(ctx, project, workDir)
		if err == nil {
			return src, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !hosterr.IsRetryable(err) {
			return nil, err
		}
	}
	return nil, lastErr
}
