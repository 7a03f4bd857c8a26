// Package money normalizes upstream amount/currency pairs into fixed-point
// ledger values. Currency metadata comes from the go-money ISO registry; the
// table is constructed explicitly and passed to the components that need it.
package money

import (
	"fmt"

	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Normalizer resolves currency codes and rounds amounts to the currency's
// minor unit. Unknown codes fall back to the configured default so a single
// bad record cannot abort a whole batch.
type Normalizer struct {
	fallback *gomoney.Currency
}

// NewNormalizer builds a Normalizer with the given default currency code.
func NewNormalizer(defaultCode string) (*Normalizer, error) {
	cur := gomoney.GetCurrency(defaultCode)
	if cur == nil {
		return nil, fmt.Errorf("unknown default currency code %q", defaultCode)
	}
	return &Normalizer{fallback: cur}, nil
}

// DefaultCode returns the fallback currency code.
func (n *Normalizer) DefaultCode() string {
	return n.fallback.Code
}

// Normalize rounds amount to the minor unit of code and returns the resolved
// code. An empty or unrecognized code resolves to the default currency.
func (n *Normalizer) Normalize(amount decimal.Decimal, code string) (decimal.Decimal, string) {
	cur := n.fallback
	if code != "" {
		if found := gomoney.GetCurrency(code); found != nil {
			cur = found
		}
	}
	return amount.Round(int32(cur.Fraction)), cur.Code
}
