package pgsql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ledgerclerk/clerk/internal/apperrors"
	"github.com/ledgerclerk/clerk/internal/core/domain"
	portsrepo "github.com/ledgerclerk/clerk/internal/core/ports/repositories"
	"github.com/shopspring/decimal"
)

type PgxTransactionRepository struct {
	BaseRepository
}

// newPgxTransactionRepository creates a new repository for ledger transactions.
func newPgxTransactionRepository(pool *pgxpool.Pool) portsrepo.TransactionRepository {
	return &PgxTransactionRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.TransactionRepository = (*PgxTransactionRepository)(nil)

// SaveTransaction writes the transaction row, its postings, and the upstream
// mapping row inside one database transaction. A mapping that already exists
// surfaces as apperrors.ErrDuplicate so crash-recovery replays stay benign.
func (r *PgxTransactionRepository) SaveTransaction(ctx context.Context, itemID, upstreamID string, txn domain.Transaction, sourcePayload []byte) error {
	if err := txn.Validate(); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}

	tx, err := r.Begin(ctx)
	if err != nil {
		return err
	}
	defer r.Rollback(ctx, tx)

	txnQuery := `
		INSERT INTO transactions (id, item_id, date, payee, narration, status, source_payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7);
	`
	_, err = tx.Exec(ctx, txnQuery,
		txn.ID,
		itemID,
		txn.Date,
		txn.Payee,
		txn.Narration,
		string(txn.Status),
		sourcePayload,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction %s: %w", txn.ID, err)
	}

	// The mapping's uniqueness constraint on (item_id, upstream_id) is the
	// dedup gate; a violation rolls back every row written above.
	mapQuery := `
		INSERT INTO upstream_transaction_map (item_id, upstream_id, txn_id)
		VALUES ($1, $2, $3);
	`
	if _, err := tx.Exec(ctx, mapQuery, itemID, upstreamID, txn.ID); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: transaction %s already ingested for item %s", apperrors.ErrDuplicate, upstreamID, itemID)
		}
		return fmt.Errorf("failed to insert upstream mapping for %s: %w", upstreamID, err)
	}

	if err := insertPostings(ctx, tx, txn); err != nil {
		return err
	}

	return r.Commit(ctx, tx)
}

// insertPostings batches the posting rows for txn into the open transaction.
func insertPostings(ctx context.Context, tx pgx.Tx, txn domain.Transaction) error {
	batch := &pgx.Batch{}
	postingQuery := `
		INSERT INTO postings (txn_id, account, amount, currency, status)
		VALUES ($1, $2, $3, $4, $5);
	`
	for _, p := range txn.Postings {
		batch.Queue(postingQuery, txn.ID, p.Account, p.Amount, p.Currency, string(p.Status))
	}

	br := tx.SendBatch(ctx, batch)
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to execute posting batch for transaction %s: %w", txn.ID, err)
	}
	return nil
}

// TransactionByUpstreamID resolves an upstream id to the stable ledger id.
func (r *PgxTransactionRepository) TransactionByUpstreamID(ctx context.Context, itemID, upstreamID string) (string, error) {
	var txnID string
	query := `SELECT txn_id FROM upstream_transaction_map WHERE item_id = $1 AND upstream_id = $2;`
	err := r.Pool.QueryRow(ctx, query, itemID, upstreamID).Scan(&txnID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("%w: no ledger transaction for upstream id %s", apperrors.ErrNotFound, upstreamID)
		}
		return "", fmt.Errorf("failed to look up upstream id %s: %w", upstreamID, err)
	}
	return txnID, nil
}

// UpdateSourcePayload overwrites only the stored raw payload for a transaction.
func (r *PgxTransactionRepository) UpdateSourcePayload(ctx context.Context, txnID string, sourcePayload []byte) error {
	cmdTag, err := r.Pool.Exec(ctx, `UPDATE transactions SET source_payload = $2 WHERE id = $1;`, txnID, sourcePayload)
	if err != nil {
		return fmt.Errorf("failed to update source payload for transaction %s: %w", txnID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: transaction %s", apperrors.ErrNotFound, txnID)
	}
	return nil
}

// PromoteTransaction replaces a pending transaction's content with its posted
// successor while keeping the ledger id, and remaps the upstream id to the
// posted identifier. All writes happen in one database transaction.
func (r *PgxTransactionRepository) PromoteTransaction(ctx context.Context, txnID, itemID, upstreamID string, txn domain.Transaction, sourcePayload []byte) error {
	if err := txn.Validate(); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}

	tx, err := r.Begin(ctx)
	if err != nil {
		return err
	}
	defer r.Rollback(ctx, tx)

	txnQuery := `
		UPDATE transactions
		SET date = $2, payee = $3, narration = $4, status = $5, source_payload = $6
		WHERE id = $1;
	`
	cmdTag, err := tx.Exec(ctx, txnQuery,
		txnID,
		txn.Date,
		txn.Payee,
		txn.Narration,
		string(txn.Status),
		sourcePayload,
	)
	if err != nil {
		return fmt.Errorf("failed to promote transaction %s: %w", txnID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: transaction %s", apperrors.ErrNotFound, txnID)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM postings WHERE txn_id = $1;`, txnID); err != nil {
		return fmt.Errorf("failed to clear postings for transaction %s: %w", txnID, err)
	}

	promoted := txn
	promoted.ID = txnID
	if err := insertPostings(ctx, tx, promoted); err != nil {
		return err
	}

	mapQuery := `UPDATE upstream_transaction_map SET upstream_id = $3 WHERE item_id = $1 AND txn_id = $2;`
	if _, err := tx.Exec(ctx, mapQuery, itemID, txnID, upstreamID); err != nil {
		return fmt.Errorf("failed to remap upstream id for transaction %s: %w", txnID, err)
	}

	return r.Commit(ctx, tx)
}

// DeleteTransaction removes a ledger transaction. Postings and the upstream
// mapping cascade with the row.
func (r *PgxTransactionRepository) DeleteTransaction(ctx context.Context, txnID string) error {
	cmdTag, err := r.Pool.Exec(ctx, `DELETE FROM transactions WHERE id = $1;`, txnID)
	if err != nil {
		return fmt.Errorf("failed to delete transaction %s: %w", txnID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: transaction %s", apperrors.ErrNotFound, txnID)
	}
	return nil
}

// ListTransactions returns transactions with postings loaded, ordered by date
// then ledger id, optionally bounded by inclusive begin/until dates.
func (r *PgxTransactionRepository) ListTransactions(ctx context.Context, begin, until *time.Time) ([]domain.Transaction, error) {
	query := `SELECT id, date, payee, narration, status FROM transactions`
	var args []any
	clause := " WHERE"
	if begin != nil {
		args = append(args, *begin)
		query += fmt.Sprintf("%s date >= $%d", clause, len(args))
		clause = " AND"
	}
	if until != nil {
		args = append(args, *until)
		query += fmt.Sprintf("%s date <= $%d", clause, len(args))
	}
	query += ` ORDER BY date, id;`

	rows, err := r.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	var ids []string
	index := make(map[string]int)
	for rows.Next() {
		var txn domain.Transaction
		var status string
		if err := rows.Scan(&txn.ID, &txn.Date, &txn.Payee, &txn.Narration, &status); err != nil {
			return nil, fmt.Errorf("failed to scan transaction row: %w", err)
		}
		parsed, err := domain.ParseTransactionStatus(status)
		if err != nil {
			return nil, fmt.Errorf("transaction %s: %w", txn.ID, err)
		}
		txn.Status = parsed
		index[txn.ID] = len(txns)
		ids = append(ids, txn.ID)
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction rows: %w", err)
	}

	if len(txns) == 0 {
		return txns, nil
	}

	postingQuery := `
		SELECT txn_id, account, amount, currency, status
		FROM postings
		WHERE txn_id = ANY($1)
		ORDER BY txn_id, id;
	`
	postingRows, err := r.Pool.Query(ctx, postingQuery, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query postings: %w", err)
	}
	defer postingRows.Close()

	for postingRows.Next() {
		var txnID, status string
		var posting domain.Posting
		var amount decimal.Decimal
		if err := postingRows.Scan(&txnID, &posting.Account, &amount, &posting.Currency, &status); err != nil {
			return nil, fmt.Errorf("failed to scan posting row: %w", err)
		}
		posting.Amount = amount
		parsed, err := domain.ParseTransactionStatus(status)
		if err != nil {
			return nil, fmt.Errorf("posting for transaction %s: %w", txnID, err)
		}
		posting.Status = parsed

		i, ok := index[txnID]
		if !ok {
			continue
		}
		txns[i].Postings = append(txns[i].Postings, posting)
	}
	if err := postingRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating posting rows: %w", err)
	}

	return txns, nil
}
