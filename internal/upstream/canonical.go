package upstream

import (
	"fmt"
	"time"

	"github.com/ledgerclerk/clerk/internal/core/domain"
	"github.com/ledgerclerk/clerk/internal/utils/money"
)

const dateLayout = "2006-01-02"

// ToCanonical maps a raw upstream transaction into the double-entry shape. The
// funding account's leg comes first; the offsetting leg is synthesized by
// negation so the pair always balances. The ledger id is assigned by the
// caller at ingestion time, which keeps this construction deterministic for a
// given raw record and account classification.
func ToCanonical(raw RawTransaction, account domain.Account, norm *money.Normalizer) (domain.Transaction, error) {
	date, err := time.Parse(dateLayout, raw.Date)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction %s has invalid date %q: %w", raw.TransactionID, raw.Date, err)
	}

	status := domain.Resolved
	if raw.Pending {
		status = domain.Pending
	}

	amount, currency := norm.Normalize(raw.Amount, raw.CurrencyCode())

	txn := domain.Transaction{
		Status:    status,
		Date:      date,
		Payee:     raw.MerchantName,
		Narration: raw.Name,
		Postings: []domain.Posting{
			{
				// Upstream reports outflows as positive amounts.
				Account:  account.LedgerName(),
				Amount:   amount.Neg(),
				Currency: currency,
				Status:   status,
			},
			{
				Account:  domain.UnclassifiedAccount,
				Amount:   amount,
				Currency: currency,
				Status:   status,
			},
		},
	}

	if err := txn.Validate(); err != nil {
		return domain.Transaction{}, err
	}

	return txn, nil
}
