package domain

// AccountType is the reduced two-valued classification of an upstream account.
// It determines the natural balance side used when postings are built, and
// which ledger root the account is filed under.
type AccountType string

const (
	// CreditNormal covers credit and loan instruments.
	CreditNormal AccountType = "CREDIT_NORMAL"
	// DebitNormal covers depository, investment, and brokerage instruments.
	DebitNormal AccountType = "DEBIT_NORMAL"
)

// Account is a financial account tracked through a Link. Exactly one Link owns
// each account via ItemID. Accounts are created and refreshed by the sync pass
// and are never silently deleted once transactions reference them.
type Account struct {
	AccountID string      `json:"accountID"` // Upstream-assigned identifier
	ItemID    string      `json:"itemID"`    // FK -> Link.ItemID
	Name      string      `json:"name"`
	Type      AccountType `json:"type"`
}

// LedgerName returns the double-entry account name for the funding leg of a
// posting, e.g. "Assets:Chase Checking" or "Liabilities:Chase Freedom".
func (a Account) LedgerName() string {
	switch a.Type {
	case CreditNormal:
		return "Liabilities:" + a.Name
	default:
		return "Assets:" + a.Name
	}
}
