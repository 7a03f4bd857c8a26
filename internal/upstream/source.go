package upstream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ledgerclerk/clerk/internal/apperrors"
)

const (
	defaultPageSize   = 500
	defaultMaxRetries = 3
	defaultBackoff    = 500 * time.Millisecond
)

// Source consumes one link's change feed. It hides the provider's pagination
// behind a single logical "until caught up" pull.
type Source struct {
	provider   Provider
	token      string
	pageSize   int
	maxRetries int
	backoff    time.Duration
}

// SourceOption adjusts Source behavior.
type SourceOption func(*Source)

// WithPageSize overrides the per-request page size.
func WithPageSize(n int) SourceOption {
	return func(s *Source) { s.pageSize = n }
}

// WithRetryPolicy overrides the transient-failure retry budget and the initial
// backoff interval, which doubles on every attempt.
func WithRetryPolicy(maxRetries int, backoff time.Duration) SourceOption {
	return func(s *Source) {
		s.maxRetries = maxRetries
		s.backoff = backoff
	}
}

// NewSource builds a Source for the link holding accessToken.
func NewSource(provider Provider, accessToken string, opts ...SourceOption) *Source {
	s := &Source{
		provider:   provider,
		token:      accessToken,
		pageSize:   defaultPageSize,
		maxRetries: defaultMaxRetries,
		backoff:    defaultBackoff,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Pull exhausts every page of the change feed after cursor and returns the
// events in arrival order plus the cursor to resume from. The returned cursor
// is only taken from the terminal page; a sequence that cannot reach it fails
// loudly since it implies truncated results.
func (s *Source) Pull(ctx context.Context, cursor string) ([]ChangeEvent, string, error) {
	var events []ChangeEvent
	next := cursor

	for {
		page, err := s.syncPage(ctx, next)
		if err != nil {
			return nil, "", err
		}

		for _, txn := range page.Added {
			events = append(events, Added{Txn: txn})
		}
		for _, txn := range page.Modified {
			events = append(events, Modified{Txn: txn})
		}
		for _, id := range page.Removed {
			events = append(events, Removed{UpstreamID: id})
		}

		if page.NextCursor == "" {
			return nil, "", fmt.Errorf("%w: sync page carried no cursor, results truncated", apperrors.ErrConsistency)
		}
		next = page.NextCursor

		if !page.HasMore {
			return events, next, nil
		}
	}
}

// syncPage requests a single page, retrying transient transport failures with
// bounded exponential backoff. Authorization failures are never retried.
func (s *Source) syncPage(ctx context.Context, cursor string) (SyncPage, error) {
	var lastErr error
	backoff := s.backoff

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return SyncPage{}, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		page, err := s.provider.SyncTransactions(ctx, s.token, cursor, s.pageSize)
		if err == nil {
			return page, nil
		}

		var upErr *Error
		if errors.As(err, &upErr) {
			if upErr.AuthFailure() {
				return SyncPage{}, fmt.Errorf("%w: %v", apperrors.ErrReauthRequired, err)
			}
			if !upErr.Transient() {
				return SyncPage{}, err
			}
		}
		// Plain transport errors (timeouts, connection resets) are retried too.
		lastErr = err
	}

	return SyncPage{}, fmt.Errorf("sync page request failed after %d attempts: %w", s.maxRetries+1, lastErr)
}
