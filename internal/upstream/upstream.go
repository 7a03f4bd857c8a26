// Package upstream wraps the external provider's paginated cursor APIs into a
// uniform change-event stream and owns amount/currency normalization for
// canonical transaction construction.
package upstream

import (
	"context"
	"fmt"

	"github.com/ledgerclerk/clerk/internal/core/domain"
	"github.com/shopspring/decimal"
)

// RawAccount is an account record as reported by the provider.
type RawAccount struct {
	AccountID    string `json:"account_id"`
	Name         string `json:"name"`
	OfficialName string `json:"official_name,omitempty"`
	Type         string `json:"type"`
	Subtype      string `json:"subtype,omitempty"`
}

// Classify reduces the provider's account taxonomy to the two-valued
// classification the posting-sign logic consumes.
func (a RawAccount) Classify() (domain.AccountType, error) {
	switch a.Type {
	case "credit", "loan":
		return domain.CreditNormal, nil
	case "depository", "investment", "brokerage":
		return domain.DebitNormal, nil
	default:
		return "", fmt.Errorf("unsupported account type %q for account %s", a.Type, a.AccountID)
	}
}

// RawTransaction is a transaction record as reported by the provider. The full
// payload is persisted verbatim alongside the canonical form.
type RawTransaction struct {
	TransactionID          string          `json:"transaction_id"`
	AccountID              string          `json:"account_id"`
	Amount                 decimal.Decimal `json:"amount"`
	ISOCurrencyCode        string          `json:"iso_currency_code,omitempty"`
	UnofficialCurrencyCode string          `json:"unofficial_currency_code,omitempty"`
	Date                   string          `json:"date"`
	Name                   string          `json:"name"`
	MerchantName           string          `json:"merchant_name,omitempty"`
	Pending                bool            `json:"pending"`
	PendingTransactionID   string          `json:"pending_transaction_id,omitempty"`
}

// CurrencyCode returns the ISO code when present, otherwise the unofficial one.
func (t RawTransaction) CurrencyCode() string {
	if t.ISOCurrencyCode != "" {
		return t.ISOCurrencyCode
	}
	return t.UnofficialCurrencyCode
}

// ChangeEvent is one entry in the provider's change feed. The concrete type is
// one of Added, Modified, or Removed; consumers dispatch with a type switch.
type ChangeEvent interface {
	changeEvent()
}

// Added reports a transaction seen for the first time.
type Added struct {
	Txn RawTransaction
}

// Modified reports a revision to a previously reported transaction.
type Modified struct {
	Txn RawTransaction
}

// Removed reports that a previously reported transaction no longer exists
// upstream, identified by the provider's own transaction id.
type Removed struct {
	UpstreamID string
}

func (Added) changeEvent()    {}
func (Modified) changeEvent() {}
func (Removed) changeEvent()  {}

// SyncPage is one page of the provider's change feed. The terminal page of a
// pull carries HasMore=false and the cursor to resume from next time.
type SyncPage struct {
	Added      []RawTransaction
	Modified   []RawTransaction
	Removed    []string
	NextCursor string
	HasMore    bool
}

// Item is the provider's view of a link, including any credential error it is
// currently reporting.
type Item struct {
	ItemID        string
	InstitutionID string
	Error         *Error
}

// Provider is the external upstream API surface the engine consumes.
type Provider interface {
	ListAccounts(ctx context.Context, accessToken string) ([]RawAccount, error)
	GetItem(ctx context.Context, accessToken string) (Item, error)
	SyncTransactions(ctx context.Context, accessToken, cursor string, pageSize int) (SyncPage, error)
	ListInstitutions(ctx context.Context, countryCodes []string) ([]domain.Institution, error)
	RevokeAccessGrant(ctx context.Context, accessToken string) error
}
