package pgsql

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ledgerclerk/clerk/internal/apperrors"
	"github.com/ledgerclerk/clerk/internal/core/domain"
	portsrepo "github.com/ledgerclerk/clerk/internal/core/ports/repositories"
)

type PgxAccountRepository struct {
	pool *pgxpool.Pool
}

// newPgxAccountRepository creates a new repository for account data.
func newPgxAccountRepository(pool *pgxpool.Pool) portsrepo.AccountRepository {
	return &PgxAccountRepository{pool: pool}
}

var _ portsrepo.AccountRepository = (*PgxAccountRepository)(nil)

// SaveAccount inserts or refreshes an account observed during sync. Accounts
// are refreshed in place; they are never deleted here since transactions may
// reference them.
func (r *PgxAccountRepository) SaveAccount(ctx context.Context, account domain.Account) error {
	query := `
		INSERT INTO accounts (id, item_id, name, type)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, type = EXCLUDED.type;
	`
	_, err := r.pool.Exec(ctx, query,
		account.AccountID,
		account.ItemID,
		account.Name,
		string(account.Type),
	)
	if err != nil {
		return fmt.Errorf("failed to save account %s: %w", account.AccountID, err)
	}
	return nil
}

// FindAccountByID retrieves an account by its upstream id.
func (r *PgxAccountRepository) FindAccountByID(ctx context.Context, accountID string) (*domain.Account, error) {
	var account domain.Account
	var accType string
	err := r.pool.QueryRow(ctx, `SELECT id, item_id, name, type FROM accounts WHERE id = $1;`, accountID).Scan(
		&account.AccountID,
		&account.ItemID,
		&account.Name,
		&accType,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: account %s", apperrors.ErrNotFound, accountID)
		}
		return nil, fmt.Errorf("failed to find account %s: %w", accountID, err)
	}
	account.Type = domain.AccountType(accType)
	return &account, nil
}

// ListAccountsByItem returns all accounts owned by the given link.
func (r *PgxAccountRepository) ListAccountsByItem(ctx context.Context, itemID string) ([]domain.Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, item_id, name, type FROM accounts WHERE item_id = $1 ORDER BY name;`, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts for item %s: %w", itemID, err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		var account domain.Account
		var accType string
		if err := rows.Scan(&account.AccountID, &account.ItemID, &account.Name, &accType); err != nil {
			return nil, fmt.Errorf("failed to scan account row for item %s: %w", itemID, err)
		}
		account.Type = domain.AccountType(accType)
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating account rows for item %s: %w", itemID, err)
	}
	return accounts, nil
}
