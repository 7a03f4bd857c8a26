package upstream_test

import (
	"testing"
	"time"

	"github.com/ledgerclerk/clerk/internal/core/domain"
	"github.com/ledgerclerk/clerk/internal/upstream"
	"github.com/ledgerclerk/clerk/internal/utils/money"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func usdNormalizer(t *testing.T) *money.Normalizer {
	t.Helper()
	n, err := money.NewNormalizer("USD")
	require.NoError(t, err)
	return n
}

func TestToCanonicalBuildsBalancedPair(t *testing.T) {
	account := domain.Account{AccountID: "acc-1", Name: "Chase Checking", Type: domain.DebitNormal}
	raw := upstream.RawTransaction{
		TransactionID:   "t1",
		AccountID:       "acc-1",
		Amount:          decimal.NewFromFloat(33.25),
		ISOCurrencyCode: "USD",
		Date:            "2022-05-01",
		Name:            "COFFEE SHOP #42",
		MerchantName:    "Coffee Shop",
	}

	txn, err := upstream.ToCanonical(raw, account, usdNormalizer(t))
	require.NoError(t, err)

	assert.Equal(t, domain.Resolved, txn.Status)
	assert.Equal(t, time.Date(2022, 5, 1, 0, 0, 0, 0, time.UTC), txn.Date)
	assert.Equal(t, "Coffee Shop", txn.Payee)
	assert.Equal(t, "COFFEE SHOP #42", txn.Narration)

	require.Len(t, txn.Postings, 2)
	assert.Equal(t, "Assets:Chase Checking", txn.Postings[0].Account)
	assert.Equal(t, "-33.25", txn.Postings[0].Amount.String())
	assert.Equal(t, domain.UnclassifiedAccount, txn.Postings[1].Account)
	assert.Equal(t, "33.25", txn.Postings[1].Amount.String())
	require.NoError(t, txn.Validate())
}

func TestToCanonicalPendingStatus(t *testing.T) {
	account := domain.Account{AccountID: "acc-1", Name: "Card", Type: domain.CreditNormal}
	raw := upstream.RawTransaction{
		TransactionID:   "t1",
		Amount:          decimal.NewFromFloat(10),
		ISOCurrencyCode: "USD",
		Date:            "2022-05-02",
		Name:            "PENDING CHARGE",
		Pending:         true,
	}

	txn, err := upstream.ToCanonical(raw, account, usdNormalizer(t))
	require.NoError(t, err)
	assert.Equal(t, domain.Pending, txn.Status)
	assert.Equal(t, "Liabilities:Card", txn.Postings[0].Account)
	for _, p := range txn.Postings {
		assert.Equal(t, domain.Pending, p.Status)
	}
}

func TestToCanonicalUnknownCurrencyFallsBack(t *testing.T) {
	account := domain.Account{AccountID: "acc-1", Name: "Checking", Type: domain.DebitNormal}
	raw := upstream.RawTransaction{
		TransactionID:          "t1",
		Amount:                 decimal.NewFromFloat(5),
		UnofficialCurrencyCode: "POINTS",
		Date:                   "2022-05-03",
		Name:                   "REWARDS",
	}

	txn, err := upstream.ToCanonical(raw, account, usdNormalizer(t))
	require.NoError(t, err)
	assert.Equal(t, "USD", txn.Postings[0].Currency)
}

func TestToCanonicalRejectsBadDate(t *testing.T) {
	account := domain.Account{AccountID: "acc-1", Name: "Checking", Type: domain.DebitNormal}
	raw := upstream.RawTransaction{TransactionID: "t1", Date: "05/01/2022", Name: "X"}

	_, err := upstream.ToCanonical(raw, account, usdNormalizer(t))
	require.Error(t, err)
}

func TestToCanonicalIsDeterministic(t *testing.T) {
	account := domain.Account{AccountID: "acc-1", Name: "Checking", Type: domain.DebitNormal}
	raw := rawTxn("t1")

	first, err := upstream.ToCanonical(raw, account, usdNormalizer(t))
	require.NoError(t, err)
	second, err := upstream.ToCanonical(raw, account, usdNormalizer(t))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestClassifyAccountTypes(t *testing.T) {
	cases := map[string]domain.AccountType{
		"credit":     domain.CreditNormal,
		"loan":       domain.CreditNormal,
		"depository": domain.DebitNormal,
		"investment": domain.DebitNormal,
		"brokerage":  domain.DebitNormal,
	}
	for raw, want := range cases {
		got, err := upstream.RawAccount{AccountID: "a", Type: raw}.Classify()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := upstream.RawAccount{AccountID: "a", Type: "other"}.Classify()
	assert.Error(t, err)
}
