package pgsql

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ledgerclerk/clerk/internal/core/domain"
	portsrepo "github.com/ledgerclerk/clerk/internal/core/ports/repositories"
)

type PgxInstitutionRepository struct {
	pool *pgxpool.Pool
}

// newPgxInstitutionRepository creates a new repository for institution metadata.
func newPgxInstitutionRepository(pool *pgxpool.Pool) portsrepo.InstitutionRepository {
	return &PgxInstitutionRepository{pool: pool}
}

var _ portsrepo.InstitutionRepository = (*PgxInstitutionRepository)(nil)

// SaveInstitution inserts or refreshes cached institution metadata.
func (r *PgxInstitutionRepository) SaveInstitution(ctx context.Context, institution domain.Institution) error {
	query := `
		INSERT INTO institutions (id, name)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name;
	`
	if _, err := r.pool.Exec(ctx, query, institution.ID, institution.Name); err != nil {
		return fmt.Errorf("failed to save institution %s: %w", institution.ID, err)
	}
	return nil
}

// ListInstitutions returns all cached institutions.
func (r *PgxInstitutionRepository) ListInstitutions(ctx context.Context) ([]domain.Institution, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM institutions;`)
	if err != nil {
		return nil, fmt.Errorf("failed to query institutions: %w", err)
	}
	defer rows.Close()

	var institutions []domain.Institution
	for rows.Next() {
		var ins domain.Institution
		if err := rows.Scan(&ins.ID, &ins.Name); err != nil {
			return nil, fmt.Errorf("failed to scan institution row: %w", err)
		}
		institutions = append(institutions, ins)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating institution rows: %w", err)
	}
	return institutions, nil
}
