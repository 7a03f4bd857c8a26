// Package repositories defines the persistence contracts the core services
// depend on. Implementations live under internal/repositories/database.
package repositories

import (
	"context"
	"time"

	"github.com/ledgerclerk/clerk/internal/core/domain"
)

// LinkRepository persists upstream connections and their sync cursors.
type LinkRepository interface {
	SaveLink(ctx context.Context, link domain.Link) error
	UpdateLink(ctx context.Context, link domain.Link) error
	// UpdateSyncCursor advances only the cursor column for the given item.
	UpdateSyncCursor(ctx context.Context, itemID, cursor string) error
	FindLinkByItemID(ctx context.Context, itemID string) (*domain.Link, error)
	ListLinks(ctx context.Context) ([]domain.Link, error)
	// DeleteLink removes the link and returns the deleted record.
	DeleteLink(ctx context.Context, itemID string) (*domain.Link, error)
}

// AccountRepository caches upstream accounts owned by links.
type AccountRepository interface {
	// SaveAccount inserts or refreshes an account observed during sync.
	SaveAccount(ctx context.Context, account domain.Account) error
	FindAccountByID(ctx context.Context, accountID string) (*domain.Account, error)
	ListAccountsByItem(ctx context.Context, itemID string) ([]domain.Account, error)
}

// InstitutionRepository caches institution metadata.
type InstitutionRepository interface {
	SaveInstitution(ctx context.Context, institution domain.Institution) error
	ListInstitutions(ctx context.Context) ([]domain.Institution, error)
}

// TransactionRepository persists ledger transactions, their postings, and the
// durable association between upstream identifiers and ledger identifiers.
type TransactionRepository interface {
	// SaveTransaction writes the transaction row, its postings, and the
	// (itemID, upstreamID) mapping atomically. A mapping that already exists
	// fails with apperrors.ErrDuplicate so replays are a benign skip.
	SaveTransaction(ctx context.Context, itemID, upstreamID string, txn domain.Transaction, sourcePayload []byte) error
	// TransactionByUpstreamID resolves an upstream id to the stable ledger id,
	// or apperrors.ErrNotFound when no mapping exists.
	TransactionByUpstreamID(ctx context.Context, itemID, upstreamID string) (string, error)
	// UpdateSourcePayload overwrites only the stored raw payload; the
	// upstream-id mapping is left untouched.
	UpdateSourcePayload(ctx context.Context, txnID string, sourcePayload []byte) error
	// PromoteTransaction replaces a pending transaction's content with its
	// posted successor in place, reusing the ledger id, and remaps the
	// upstream id to the posted identifier — all in one atomic write.
	PromoteTransaction(ctx context.Context, txnID, itemID, upstreamID string, txn domain.Transaction, sourcePayload []byte) error
	DeleteTransaction(ctx context.Context, txnID string) error
	// ListTransactions returns transactions with postings loaded, ordered by
	// date then ledger id, optionally bounded by inclusive begin/until dates.
	ListTransactions(ctx context.Context, begin, until *time.Time) ([]domain.Transaction, error)
}
