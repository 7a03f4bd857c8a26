package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus indicates whether the upstream considers a transaction settled.
type TransactionStatus string

const (
	Pending  TransactionStatus = "PENDING"
	Resolved TransactionStatus = "RESOLVED"
)

// UnclassifiedAccount is the synthesized offsetting account used when no rule
// assigns a destination to a posting.
const UnclassifiedAccount = "Expenses:Unclassified"

// ParseTransactionStatus converts a stored status string back to its enum value.
func ParseTransactionStatus(s string) (TransactionStatus, error) {
	switch TransactionStatus(s) {
	case Pending, Resolved:
		return TransactionStatus(s), nil
	default:
		return "", fmt.Errorf("unknown transaction status %q", s)
	}
}

// Posting is one leg of a double-entry transaction, tied to a single account.
type Posting struct {
	Account  string            `json:"account"`
	Amount   decimal.Decimal   `json:"amount"`
	Currency string            `json:"currency"`
	Status   TransactionStatus `json:"status"`
}

// Transaction is a balanced double-entry record. The ID is generated locally at
// ingestion time (UUIDv7, time-sortable) and is stable for the life of the
// record, even when the upstream replaces its own identifier on the
// pending-to-posted transition.
type Transaction struct {
	ID        string            `json:"id"`
	Status    TransactionStatus `json:"status"`
	Date      time.Time         `json:"date"`
	Payee     string            `json:"payee"`
	Narration string            `json:"narration"`
	Postings  []Posting         `json:"postings"`
	Tags      []string          `json:"tags,omitempty"`
	Links     []string          `json:"links,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Validate enforces the double-entry invariant: at least two postings whose
// amounts sum to zero within each currency.
func (t Transaction) Validate() error {
	if len(t.Postings) < 2 {
		return fmt.Errorf("transaction %s must have at least two postings", t.ID)
	}

	sums := make(map[string]decimal.Decimal)
	for _, p := range t.Postings {
		if p.Account == "" {
			return fmt.Errorf("transaction %s has a posting with no account", t.ID)
		}
		sums[p.Currency] = sums[p.Currency].Add(p.Amount)
	}

	for currency, sum := range sums {
		if !sum.IsZero() {
			return fmt.Errorf("transaction %s does not balance: %s %s", t.ID, sum.String(), currency)
		}
	}

	return nil
}
