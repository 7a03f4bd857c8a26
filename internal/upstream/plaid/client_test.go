package plaid

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ledgerclerk/clerk/internal/upstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := New(Config{ClientID: "cid", Secret: "sec", Environment: Sandbox, ClientName: "clerk"})
	client.baseURL = server.URL
	return client
}

func TestSyncTransactionsRequestShape(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/transactions/sync", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "cid", body["client_id"])
		assert.Equal(t, "sec", body["secret"])
		assert.Equal(t, "tok", body["access_token"])
		assert.Equal(t, "cur-1", body["cursor"])
		assert.Equal(t, float64(100), body["count"])

		json.NewEncoder(w).Encode(map[string]any{
			"added":       []map[string]any{{"transaction_id": "t1", "amount": 3.5, "date": "2022-05-01", "name": "X"}},
			"removed":     []map[string]any{{"transaction_id": "t0"}},
			"next_cursor": "cur-2",
			"has_more":    false,
		})
	})

	page, err := client.SyncTransactions(context.Background(), "tok", "cur-1", 100)
	require.NoError(t, err)
	assert.Equal(t, "cur-2", page.NextCursor)
	assert.False(t, page.HasMore)
	require.Len(t, page.Added, 1)
	assert.Equal(t, "t1", page.Added[0].TransactionID)
	assert.Equal(t, []string{"t0"}, page.Removed)
}

func TestErrorResponsesDecodeStructured(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error_type":    "ITEM_ERROR",
			"error_code":    "ITEM_LOGIN_REQUIRED",
			"error_message": "the login details of this item have changed",
		})
	})

	_, err := client.ListAccounts(context.Background(), "tok")
	require.Error(t, err)

	var upErr *upstream.Error
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, upstream.CodeLoginRequired, upErr.Code)
	assert.True(t, upErr.AuthFailure())
	assert.False(t, upErr.Transient())
}

func TestGetItemCarriesItemError(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"item": map[string]any{
				"item_id":        "item-1",
				"institution_id": "ins-9",
				"error": map[string]any{
					"error_type":    "ITEM_ERROR",
					"error_code":    "ITEM_LOGIN_REQUIRED",
					"error_message": "relink required",
				},
			},
		})
	})

	item, err := client.GetItem(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "item-1", item.ItemID)
	assert.Equal(t, "ins-9", item.InstitutionID)
	require.NotNil(t, item.Error)
	assert.True(t, item.Error.AuthFailure())
}

func TestEnvironmentBaseURLs(t *testing.T) {
	assert.Equal(t, "https://sandbox.plaid.com", Sandbox.BaseURL())
	assert.Equal(t, "https://development.plaid.com", Development.BaseURL())
	assert.Equal(t, "https://production.plaid.com", Production.BaseURL())
}
