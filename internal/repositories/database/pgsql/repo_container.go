package pgsql

import (
	"github.com/jackc/pgx/v5/pgxpool"
	portsrepo "github.com/ledgerclerk/clerk/internal/core/ports/repositories"
)

// Repositories bundles all pgsql-backed repository implementations sharing one
// connection pool.
type Repositories struct {
	Links        portsrepo.LinkRepository
	Accounts     portsrepo.AccountRepository
	Institutions portsrepo.InstitutionRepository
	Transactions portsrepo.TransactionRepository
}

// NewRepositories wires every repository onto the given pool.
func NewRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		Links:        newPgxLinkRepository(pool),
		Accounts:     newPgxAccountRepository(pool),
		Institutions: newPgxInstitutionRepository(pool),
		Transactions: newPgxTransactionRepository(pool),
	}
}
