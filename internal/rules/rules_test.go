package rules

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ledgerclerk/clerk/internal/core/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRuleFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func sampleProjection() Projection {
	return Projection{
		SourceAccount: "Liabilities:Chase Card",
		DestAccount:   domain.UnclassifiedAccount,
		Amount:        decimal.RequireFromString("12.50"),
		Currency:      "USD",
		Payee:         "Blue Bottle",
		Narration:     "BLUE BOTTLE COFFEE 0042",
		Pending:       false,
		Date:          time.Date(2022, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestApplyWithoutRulesIsIdentity(t *testing.T) {
	engine, err := Load(nil)
	require.NoError(t, err)
	require.Equal(t, 0, engine.Len())

	in := sampleProjection()
	out, err := engine.Apply(in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestApplyRewritesOnMatch(t *testing.T) {
	path := writeRuleFile(t, "coffee.yaml", `
rules:
  - match:
      payee: "(?i)blue bottle"
    set:
      account: "Expenses:Coffee"
      payee: "Blue Bottle Coffee"
`)

	engine, err := Load([]string{path})
	require.NoError(t, err)
	require.Equal(t, 1, engine.Len())

	out, err := engine.Apply(sampleProjection())
	require.NoError(t, err)
	assert.Equal(t, "Expenses:Coffee", out.DestAccount)
	assert.Equal(t, "Blue Bottle Coffee", out.Payee)
	assert.Equal(t, "Liabilities:Chase Card", out.SourceAccount)
	assert.Equal(t, "BLUE BOTTLE COFFEE 0042", out.Narration)
}

func TestApplyNonMatchingRuleLeavesProjectionAlone(t *testing.T) {
	path := writeRuleFile(t, "grocery.yaml", `
rules:
  - match:
      payee: "Safeway"
    set:
      account: "Expenses:Groceries"
`)

	engine, err := Load([]string{path})
	require.NoError(t, err)

	in := sampleProjection()
	out, err := engine.Apply(in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestApplyRunsRulesInOrder(t *testing.T) {
	first := writeRuleFile(t, "first.yaml", `
rules:
  - match:
      payee: "(?i)blue bottle"
    set:
      account: "Expenses:Coffee"
`)
	second := writeRuleFile(t, "second.yaml", `
rules:
  - match:
      account: "Expenses:Coffee"
    set:
      account: "Expenses:Food:Coffee"
`)

	engine, err := Load([]string{first, second})
	require.NoError(t, err)
	require.Equal(t, 2, engine.Len())

	out, err := engine.Apply(sampleProjection())
	require.NoError(t, err)
	assert.Equal(t, "Expenses:Food:Coffee", out.DestAccount)
}

func TestApplyMatchesOnPendingFlag(t *testing.T) {
	path := writeRuleFile(t, "pending.yaml", `
rules:
  - match:
      pending: true
    set:
      narration: "awaiting settlement"
`)

	engine, err := Load([]string{path})
	require.NoError(t, err)

	settled := sampleProjection()
	out, err := engine.Apply(settled)
	require.NoError(t, err)
	assert.Equal(t, settled.Narration, out.Narration)

	held := sampleProjection()
	held.Pending = true
	out, err = engine.Apply(held)
	require.NoError(t, err)
	assert.Equal(t, "awaiting settlement", out.Narration)
}

func TestApplyExpandsNarrationCaptures(t *testing.T) {
	path := writeRuleFile(t, "transfer.yaml", `
rules:
  - match:
      narration: "^TRANSFER TO (\\w+)"
    set:
      account: "Assets:$1"
`)

	engine, err := Load([]string{path})
	require.NoError(t, err)

	in := sampleProjection()
	in.Narration = "TRANSFER TO Savings"
	out, err := engine.Apply(in)
	require.NoError(t, err)
	assert.Equal(t, "Assets:Savings", out.DestAccount)
}

func TestApplyFailsWhenExpansionIsEmpty(t *testing.T) {
	path := writeRuleFile(t, "broken.yaml", `
rules:
  - match:
      narration: "TRANSFER(?: TO (\\w+))?"
    set:
      account: "$1"
`)

	engine, err := Load([]string{path})
	require.NoError(t, err)

	in := sampleProjection()
	in.Narration = "TRANSFER"
	_, err = engine.Apply(in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty value")
}

func TestLoadRejectsInvalidPattern(t *testing.T) {
	path := writeRuleFile(t, "bad.yaml", `
rules:
  - match:
      payee: "("
    set:
      account: "Expenses:Broken"
`)

	_, err := Load([]string{path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid payee pattern")
}

func TestLoadRejectsRuleThatSetsNothing(t *testing.T) {
	path := writeRuleFile(t, "noop.yaml", `
rules:
  - match:
      payee: "Safeway"
`)

	_, err := Load([]string{path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sets nothing")
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load([]string{filepath.Join(t.TempDir(), "absent.yaml")})
	require.Error(t, err)
}

func TestNewProjectionUsesPostingLegs(t *testing.T) {
	txn := domain.Transaction{
		Status:    domain.Pending,
		Date:      time.Date(2022, 5, 1, 0, 0, 0, 0, time.UTC),
		Payee:     "Blue Bottle",
		Narration: "BLUE BOTTLE COFFEE 0042",
		Postings: []domain.Posting{
			{Account: "Liabilities:Chase Card", Amount: decimal.RequireFromString("-12.50"), Currency: "USD", Status: domain.Pending},
			{Account: domain.UnclassifiedAccount, Amount: decimal.RequireFromString("12.50"), Currency: "USD", Status: domain.Pending},
		},
	}

	p := NewProjection(txn)
	assert.Equal(t, "Liabilities:Chase Card", p.SourceAccount)
	assert.Equal(t, domain.UnclassifiedAccount, p.DestAccount)
	assert.True(t, p.Pending)
	assert.Equal(t, "12.5", p.Amount.String())
	assert.Equal(t, "USD", p.Currency)
}
