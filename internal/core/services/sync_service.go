// Package services implements the application's use cases on top of the
// repository ports and the upstream provider.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/ledgerclerk/clerk/internal/apperrors"
	"github.com/ledgerclerk/clerk/internal/core/domain"
	"github.com/ledgerclerk/clerk/internal/core/ports/repositories"
	"github.com/ledgerclerk/clerk/internal/upstream"
	"github.com/ledgerclerk/clerk/internal/utils/money"
)

// TransactionSource pulls one link's change feed to exhaustion. Satisfied by
// *upstream.Source; the seam exists so service tests can script event streams.
type TransactionSource interface {
	Pull(ctx context.Context, cursor string) ([]upstream.ChangeEvent, string, error)
}

// SourceFactory builds a TransactionSource for a link's access token.
type SourceFactory func(accessToken string) TransactionSource

// SyncResult is the per-link tally of one sync pass.
type SyncResult struct {
	ItemID   string
	Alias    string
	Added    int
	Modified int
	Removed  int
}

// SyncService drives incremental synchronization for every active link.
type SyncService struct {
	provider    upstream.Provider
	sources     SourceFactory
	linkRepo    repositories.LinkRepository
	accountRepo repositories.AccountRepository
	txnRepo     repositories.TransactionRepository
	norm        *money.Normalizer
	logger      *log.Logger
}

// NewSyncService wires the sync use case. A nil sources factory defaults to
// the real upstream source.
func NewSyncService(
	provider upstream.Provider,
	sources SourceFactory,
	linkRepo repositories.LinkRepository,
	accountRepo repositories.AccountRepository,
	txnRepo repositories.TransactionRepository,
	norm *money.Normalizer,
	logger *log.Logger,
) *SyncService {
	if sources == nil {
		sources = func(accessToken string) TransactionSource {
			return upstream.NewSource(provider, accessToken)
		}
	}
	return &SyncService{
		provider:    provider,
		sources:     sources,
		linkRepo:    linkRepo,
		accountRepo: accountRepo,
		txnRepo:     txnRepo,
		norm:        norm,
		logger:      logger,
	}
}

// SyncAll runs a sync pass over every active link. Degraded links are skipped.
// A failure on one link does not stop the others; the joined error carries
// every per-link failure.
func (s *SyncService) SyncAll(ctx context.Context) ([]SyncResult, error) {
	links, err := s.linkRepo.ListLinks(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing links: %w", err)
	}

	var results []SyncResult
	var failures []error
	for _, link := range links {
		if link.State != domain.LinkActive {
			s.logger.Warn("skipping degraded link", "alias", link.Alias, "item_id", link.ItemID, "reason", link.DegradedReason)
			continue
		}
		result, err := s.SyncLink(ctx, link)
		if err != nil {
			s.logger.Error("sync failed", "alias", link.Alias, "item_id", link.ItemID, "err", err)
			failures = append(failures, fmt.Errorf("link %s: %w", link.Alias, err))
			continue
		}
		results = append(results, result)
	}
	return results, errors.Join(failures...)
}

// SyncLink refreshes the link's account cache, replays its change feed, and
// advances the cursor. The cursor is written only after every event in the
// pull has been applied, so a failed pass replays from the previous cursor.
func (s *SyncService) SyncLink(ctx context.Context, link domain.Link) (SyncResult, error) {
	result := SyncResult{ItemID: link.ItemID, Alias: link.Alias}

	accounts, err := s.refreshAccounts(ctx, link)
	if err != nil {
		return result, s.degradeOnAuthFailure(ctx, link, err)
	}

	events, cursor, err := s.sources(link.AccessToken).Pull(ctx, link.SyncCursor)
	if err != nil {
		return result, s.degradeOnAuthFailure(ctx, link, err)
	}

	for _, event := range events {
		switch ev := event.(type) {
		case upstream.Added:
			applied, err := s.applyAdded(ctx, link, accounts, ev)
			if err != nil {
				return result, err
			}
			if applied {
				result.Added++
			}
		case upstream.Modified:
			if err := s.applyModified(ctx, link, ev); err != nil {
				return result, err
			}
			result.Modified++
		case upstream.Removed:
			applied, err := s.applyRemoved(ctx, link, ev)
			if err != nil {
				return result, err
			}
			if applied {
				result.Removed++
			}
		}
	}

	if cursor != link.SyncCursor {
		if err := s.linkRepo.UpdateSyncCursor(ctx, link.ItemID, cursor); err != nil {
			return result, fmt.Errorf("persisting cursor for %s: %w", link.ItemID, err)
		}
	}

	s.logger.Info("sync pass complete",
		"alias", link.Alias,
		"added", result.Added,
		"modified", result.Modified,
		"removed", result.Removed)
	return result, nil
}

// refreshAccounts re-fetches the link's accounts so classifications are
// current before any event references them.
func (s *SyncService) refreshAccounts(ctx context.Context, link domain.Link) (map[string]domain.Account, error) {
	raws, err := s.provider.ListAccounts(ctx, link.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("listing upstream accounts: %w", err)
	}

	accounts := make(map[string]domain.Account, len(raws))
	for _, raw := range raws {
		accountType, err := raw.Classify()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
		}
		account := domain.Account{
			AccountID: raw.AccountID,
			ItemID:    link.ItemID,
			Name:      raw.Name,
			Type:      accountType,
		}
		if err := s.accountRepo.SaveAccount(ctx, account); err != nil {
			return nil, fmt.Errorf("caching account %s: %w", raw.AccountID, err)
		}
		accounts[account.AccountID] = account
	}
	return accounts, nil
}

// applyAdded ingests a newly reported transaction. When the upstream links it
// to a pending predecessor we already hold, the predecessor is promoted in
// place so the ledger id survives the transition. Replayed events are a
// benign skip. Returns whether a row was written.
func (s *SyncService) applyAdded(ctx context.Context, link domain.Link, accounts map[string]domain.Account, ev upstream.Added) (bool, error) {
	account, ok := accounts[ev.Txn.AccountID]
	if !ok {
		return false, fmt.Errorf("%w: transaction %s references unknown account %s", apperrors.ErrConsistency, ev.Txn.TransactionID, ev.Txn.AccountID)
	}

	txn, err := upstream.ToCanonical(ev.Txn, account, s.norm)
	if err != nil {
		return false, err
	}

	payload, err := json.Marshal(ev.Txn)
	if err != nil {
		return false, fmt.Errorf("encoding source payload: %w", err)
	}

	if ev.Txn.PendingTransactionID != "" {
		txnID, err := s.txnRepo.TransactionByUpstreamID(ctx, link.ItemID, ev.Txn.PendingTransactionID)
		switch {
		case err == nil:
			txn.ID = txnID
			if err := s.txnRepo.PromoteTransaction(ctx, txnID, link.ItemID, ev.Txn.TransactionID, txn, payload); err != nil {
				return false, fmt.Errorf("promoting pending transaction %s: %w", ev.Txn.PendingTransactionID, err)
			}
			s.logger.Debug("promoted pending transaction", "txn_id", txnID, "upstream_id", ev.Txn.TransactionID)
			return true, nil
		case !errors.Is(err, apperrors.ErrNotFound):
			return false, fmt.Errorf("resolving pending predecessor: %w", err)
		}
		// The pending predecessor was never seen; ingest as a fresh record.
	}

	id, err := uuid.NewV7()
	if err != nil {
		return false, fmt.Errorf("generating transaction id: %w", err)
	}
	txn.ID = id.String()

	err = s.txnRepo.SaveTransaction(ctx, link.ItemID, ev.Txn.TransactionID, txn, payload)
	if errors.Is(err, apperrors.ErrDuplicate) {
		s.logger.Debug("skipping replayed transaction", "upstream_id", ev.Txn.TransactionID)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("saving transaction %s: %w", ev.Txn.TransactionID, err)
	}
	return true, nil
}

// applyModified overwrites the stored source payload of a known transaction.
// A modification for a transaction we never ingested means the feed and the
// store have diverged, which is fatal.
func (s *SyncService) applyModified(ctx context.Context, link domain.Link, ev upstream.Modified) error {
	txnID, err := s.txnRepo.TransactionByUpstreamID(ctx, link.ItemID, ev.Txn.TransactionID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return fmt.Errorf("%w: modification for unknown transaction %s", apperrors.ErrConsistency, ev.Txn.TransactionID)
	}
	if err != nil {
		return fmt.Errorf("resolving modified transaction: %w", err)
	}

	payload, err := json.Marshal(ev.Txn)
	if err != nil {
		return fmt.Errorf("encoding source payload: %w", err)
	}
	if err := s.txnRepo.UpdateSourcePayload(ctx, txnID, payload); err != nil {
		return fmt.Errorf("updating source payload for %s: %w", txnID, err)
	}
	return nil
}

// applyRemoved deletes the ledger record for an upstream removal. Removals of
// transactions we never held are logged and dropped; the upstream prunes its
// feed on its own schedule. Returns whether a row was deleted.
func (s *SyncService) applyRemoved(ctx context.Context, link domain.Link, ev upstream.Removed) (bool, error) {
	txnID, err := s.txnRepo.TransactionByUpstreamID(ctx, link.ItemID, ev.UpstreamID)
	if errors.Is(err, apperrors.ErrNotFound) {
		s.logger.Warn("removal for unknown transaction", "upstream_id", ev.UpstreamID)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("resolving removed transaction: %w", err)
	}

	if err := s.txnRepo.DeleteTransaction(ctx, txnID); err != nil {
		return false, fmt.Errorf("deleting transaction %s: %w", txnID, err)
	}
	return true, nil
}

// degradeOnAuthFailure persists the degraded state when the error is a
// credential failure, then returns the original error either way.
func (s *SyncService) degradeOnAuthFailure(ctx context.Context, link domain.Link, err error) error {
	var upErr *upstream.Error
	authFailed := errors.Is(err, apperrors.ErrReauthRequired) ||
		(errors.As(err, &upErr) && upErr.AuthFailure())
	if !authFailed {
		return err
	}

	reason := upstream.CodeLoginRequired
	if errors.As(err, &upErr) {
		reason = upErr.Code
	}
	link.Degrade(reason)
	if updateErr := s.linkRepo.UpdateLink(ctx, link); updateErr != nil {
		return errors.Join(err, fmt.Errorf("recording degraded state: %w", updateErr))
	}
	s.logger.Warn("link requires re-authorization", "alias", link.Alias, "item_id", link.ItemID, "reason", reason)
	return err
}
