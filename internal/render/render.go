// Package render writes ledger records and console tables.
package render

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/Rhymond/go-money"
	"github.com/ledgerclerk/clerk/internal/core/domain"
	"github.com/ledgerclerk/clerk/internal/rules"
	"github.com/shopspring/decimal"
)

const recordDateLayout = "2006-01-02"

// Ledger writes plain-text double-entry records, one per transaction. Records
// are emitted in the order they are given; callers are expected to pass
// date-ordered projections.
type Ledger struct {
	w io.Writer
}

func NewLedger(w io.Writer) *Ledger {
	return &Ledger{w: w}
}

// Record renders one projection as a dated header line followed by its two
// posting legs. Pending transactions carry the ! flag, resolved ones *.
func (l *Ledger) Record(p rules.Projection) error {
	flag := "*"
	if p.Pending {
		flag = "!"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %q %q\n", p.Date.Format(recordDateLayout), flag, p.Payee, p.Narration)

	width := len(p.SourceAccount)
	if len(p.DestAccount) > width {
		width = len(p.DestAccount)
	}
	fundingAmount := formatAmount(p.Amount.Neg(), p.Currency)
	offsetAmount := formatAmount(p.Amount, p.Currency)
	amountWidth := len(fundingAmount)
	if len(offsetAmount) > amountWidth {
		amountWidth = len(offsetAmount)
	}
	fmt.Fprintf(&b, "  %-*s  %*s %s\n", width, p.SourceAccount, amountWidth, fundingAmount, p.Currency)
	fmt.Fprintf(&b, "  %-*s  %*s %s\n\n", width, p.DestAccount, amountWidth, offsetAmount, p.Currency)

	_, err := io.WriteString(l.w, b.String())
	return err
}

// formatAmount renders the amount with the currency's minor-unit precision.
func formatAmount(amount decimal.Decimal, code string) string {
	fraction := 2
	if currency := money.GetCurrency(code); currency != nil {
		fraction = currency.Fraction
	}
	return amount.StringFixed(int32(fraction))
}

// StatusTable prints one row per link: alias, institution, item id, state and
// the degraded reason when there is one.
func StatusTable(w io.Writer, links []domain.Link, institutions map[string]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ALIAS\tINSTITUTION\tITEM ID\tSTATE\tREASON")
	for _, link := range links {
		name := institutions[link.InstitutionID]
		if name == "" {
			name = link.InstitutionID
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", link.Alias, name, link.ItemID, link.State, link.DegradedReason)
	}
	return tw.Flush()
}

// AccountsTable prints one row per upstream account with its ledger name.
func AccountsTable(w io.Writer, accounts []domain.Account) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ACCOUNT ID\tITEM ID\tTYPE\tLEDGER NAME")
	for _, account := range accounts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", account.AccountID, account.ItemID, account.Type, account.LedgerName())
	}
	return tw.Flush()
}
