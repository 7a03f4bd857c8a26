package upstream_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ledgerclerk/clerk/internal/apperrors"
	"github.com/ledgerclerk/clerk/internal/core/domain"
	"github.com/ledgerclerk/clerk/internal/upstream"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider replays a scripted sequence of pages or errors, one per call.
type fakeProvider struct {
	pages   []upstream.SyncPage
	errs    []error
	calls   int
	cursors []string
}

func (f *fakeProvider) SyncTransactions(_ context.Context, _ string, cursor string, _ int) (upstream.SyncPage, error) {
	i := f.calls
	f.calls++
	f.cursors = append(f.cursors, cursor)
	if i < len(f.errs) && f.errs[i] != nil {
		return upstream.SyncPage{}, f.errs[i]
	}
	return f.pages[i], nil
}

func (f *fakeProvider) ListAccounts(context.Context, string) ([]upstream.RawAccount, error) {
	return nil, nil
}

func (f *fakeProvider) GetItem(context.Context, string) (upstream.Item, error) {
	return upstream.Item{}, nil
}

func (f *fakeProvider) ListInstitutions(context.Context, []string) ([]domain.Institution, error) {
	return nil, nil
}

func (f *fakeProvider) RevokeAccessGrant(context.Context, string) error {
	return nil
}

func rawTxn(id string) upstream.RawTransaction {
	return upstream.RawTransaction{
		TransactionID:   id,
		AccountID:       "acc-1",
		Amount:          decimal.NewFromFloat(12.34),
		ISOCurrencyCode: "USD",
		Date:            "2022-05-01",
		Name:            "COFFEE SHOP",
	}
}

func TestPullExhaustsAllPages(t *testing.T) {
	provider := &fakeProvider{
		pages: []upstream.SyncPage{
			{Added: []upstream.RawTransaction{rawTxn("t1"), rawTxn("t2")}, NextCursor: "c1", HasMore: true},
			{Modified: []upstream.RawTransaction{rawTxn("t1")}, Removed: []string{"t2"}, NextCursor: "c2", HasMore: false},
		},
	}
	source := upstream.NewSource(provider, "token")

	events, next, err := source.Pull(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "c2", next)
	assert.Equal(t, []string{"", "c1"}, provider.cursors)

	require.Len(t, events, 4)
	assert.IsType(t, upstream.Added{}, events[0])
	assert.IsType(t, upstream.Added{}, events[1])
	assert.IsType(t, upstream.Modified{}, events[2])
	removed, ok := events[3].(upstream.Removed)
	require.True(t, ok)
	assert.Equal(t, "t2", removed.UpstreamID)
}

func TestPullMissingTerminalCursorIsFatal(t *testing.T) {
	provider := &fakeProvider{
		pages: []upstream.SyncPage{
			{Added: []upstream.RawTransaction{rawTxn("t1")}, NextCursor: "", HasMore: false},
		},
	}
	source := upstream.NewSource(provider, "token")

	_, _, err := source.Pull(context.Background(), "c0")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConsistency)
}

func TestPullRetriesTransientFailures(t *testing.T) {
	transient := &upstream.Error{StatusCode: 500, Type: "API_ERROR", Code: "INTERNAL_SERVER_ERROR"}
	provider := &fakeProvider{
		errs: []error{transient, transient, nil},
		pages: []upstream.SyncPage{
			{}, {},
			{NextCursor: "c1", HasMore: false},
		},
	}
	source := upstream.NewSource(provider, "token", upstream.WithRetryPolicy(3, time.Millisecond))

	events, next, err := source.Pull(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, "c1", next)
	assert.Equal(t, 3, provider.calls)
}

func TestPullExhaustedRetriesSurfaceLastError(t *testing.T) {
	transient := &upstream.Error{StatusCode: 503, Type: "API_ERROR", Code: "PLANNED_MAINTENANCE"}
	provider := &fakeProvider{
		errs:  []error{transient, transient, transient},
		pages: []upstream.SyncPage{{}, {}, {}},
	}
	source := upstream.NewSource(provider, "token", upstream.WithRetryPolicy(2, time.Millisecond))

	_, _, err := source.Pull(context.Background(), "")
	require.Error(t, err)

	var upErr *upstream.Error
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, "PLANNED_MAINTENANCE", upErr.Code)
	assert.Equal(t, 3, provider.calls)
}

func TestPullAuthFailureIsNotRetried(t *testing.T) {
	provider := &fakeProvider{
		errs:  []error{&upstream.Error{StatusCode: 400, Type: "ITEM_ERROR", Code: upstream.CodeLoginRequired}},
		pages: []upstream.SyncPage{{}},
	}
	source := upstream.NewSource(provider, "token", upstream.WithRetryPolicy(5, time.Millisecond))

	_, _, err := source.Pull(context.Background(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrReauthRequired)
	assert.Equal(t, 1, provider.calls)
}
