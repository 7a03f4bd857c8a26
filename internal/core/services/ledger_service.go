package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ledgerclerk/clerk/internal/core/ports/repositories"
	"github.com/ledgerclerk/clerk/internal/render"
	"github.com/ledgerclerk/clerk/internal/rules"
)

// LedgerService turns stored transactions into rendered ledger records.
type LedgerService struct {
	txnRepo repositories.TransactionRepository
	engine  *rules.Engine
}

func NewLedgerService(txnRepo repositories.TransactionRepository, engine *rules.Engine) *LedgerService {
	return &LedgerService{txnRepo: txnRepo, engine: engine}
}

// Print writes every stored transaction in the optional [begin, until] date
// window as a ledger record, with the rule engine applied to each. Any rule
// failure aborts the whole print; partially classified output is worse than
// none.
func (s *LedgerService) Print(ctx context.Context, w io.Writer, begin, until *time.Time) error {
	txns, err := s.txnRepo.ListTransactions(ctx, begin, until)
	if err != nil {
		return fmt.Errorf("listing transactions: %w", err)
	}

	ledger := render.NewLedger(w)
	for _, txn := range txns {
		projection, err := s.engine.Apply(rules.NewProjection(txn))
		if err != nil {
			return fmt.Errorf("applying rules to %s: %w", txn.ID, err)
		}
		if err := ledger.Record(projection); err != nil {
			return fmt.Errorf("writing record %s: %w", txn.ID, err)
		}
	}
	return nil
}
