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

type PgxLinkRepository struct {
	BaseRepository
}

// newPgxLinkRepository creates a new repository for link data.
func newPgxLinkRepository(pool *pgxpool.Pool) portsrepo.LinkRepository {
	return &PgxLinkRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.LinkRepository = (*PgxLinkRepository)(nil)

const linkColumns = "item_id, alias, access_token, link_state, degraded_reason, sync_cursor, institution_id"

func scanLink(row pgx.Row) (*domain.Link, error) {
	var link domain.Link
	var state string
	err := row.Scan(
		&link.ItemID,
		&link.Alias,
		&link.AccessToken,
		&state,
		&link.DegradedReason,
		&link.SyncCursor,
		&link.InstitutionID,
	)
	if err != nil {
		return nil, err
	}
	link.State = domain.LinkState(state)
	return &link, nil
}

// SaveLink inserts a new link.
func (r *PgxLinkRepository) SaveLink(ctx context.Context, link domain.Link) error {
	query := `
		INSERT INTO links (item_id, alias, access_token, link_state, degraded_reason, sync_cursor, institution_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7);
	`
	_, err := r.Pool.Exec(ctx, query,
		link.ItemID,
		link.Alias,
		link.AccessToken,
		string(link.State),
		link.DegradedReason,
		link.SyncCursor,
		link.InstitutionID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: link %s", apperrors.ErrDuplicate, link.ItemID)
		}
		return fmt.Errorf("failed to save link %s: %w", link.ItemID, err)
	}
	return nil
}

// UpdateLink overwrites all mutable link columns. Status transitions go
// through here and are visible immediately, independent of any sync pass.
func (r *PgxLinkRepository) UpdateLink(ctx context.Context, link domain.Link) error {
	query := `
		UPDATE links
		SET alias = $2,
		    access_token = $3,
		    link_state = $4,
		    degraded_reason = $5,
		    sync_cursor = $6,
		    institution_id = $7
		WHERE item_id = $1;
	`
	cmdTag, err := r.Pool.Exec(ctx, query,
		link.ItemID,
		link.Alias,
		link.AccessToken,
		string(link.State),
		link.DegradedReason,
		link.SyncCursor,
		link.InstitutionID,
	)
	if err != nil {
		return fmt.Errorf("failed to update link %s: %w", link.ItemID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: link %s", apperrors.ErrNotFound, link.ItemID)
	}
	return nil
}

// UpdateSyncCursor advances only the cursor column for the given item.
func (r *PgxLinkRepository) UpdateSyncCursor(ctx context.Context, itemID, cursor string) error {
	cmdTag, err := r.Pool.Exec(ctx, `UPDATE links SET sync_cursor = $2 WHERE item_id = $1;`, itemID, cursor)
	if err != nil {
		return fmt.Errorf("failed to update sync cursor for link %s: %w", itemID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: link %s", apperrors.ErrNotFound, itemID)
	}
	return nil
}

// FindLinkByItemID retrieves a link by its item id.
func (r *PgxLinkRepository) FindLinkByItemID(ctx context.Context, itemID string) (*domain.Link, error) {
	row := r.Pool.QueryRow(ctx, `SELECT `+linkColumns+` FROM links WHERE item_id = $1;`, itemID)
	link, err := scanLink(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: link %s", apperrors.ErrNotFound, itemID)
		}
		return nil, fmt.Errorf("failed to find link %s: %w", itemID, err)
	}
	return link, nil
}

// ListLinks returns every known link.
func (r *PgxLinkRepository) ListLinks(ctx context.Context) ([]domain.Link, error) {
	rows, err := r.Pool.Query(ctx, `SELECT `+linkColumns+` FROM links ORDER BY alias;`)
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	defer rows.Close()

	var links []domain.Link
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan link row: %w", err)
		}
		links = append(links, *link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating link rows: %w", err)
	}
	return links, nil
}

// DeleteLink removes the link and returns the deleted record. Accounts and
// transactions under the item are removed by the schema's cascade rules.
func (r *PgxLinkRepository) DeleteLink(ctx context.Context, itemID string) (*domain.Link, error) {
	row := r.Pool.QueryRow(ctx, `DELETE FROM links WHERE item_id = $1 RETURNING `+linkColumns+`;`, itemID)
	link, err := scanLink(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: link %s", apperrors.ErrNotFound, itemID)
		}
		return nil, fmt.Errorf("failed to delete link %s: %w", itemID, err)
	}
	return link, nil
}
