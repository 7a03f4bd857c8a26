// Package plaid implements the upstream.Provider contract against the Plaid
// REST API, plus the token endpoints the link-authorization flow needs.
package plaid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ledgerclerk/clerk/internal/core/domain"
	"github.com/ledgerclerk/clerk/internal/upstream"
)

// Environment selects which Plaid deployment the client talks to.
type Environment string

const (
	Sandbox     Environment = "sandbox"
	Development Environment = "development"
	Production  Environment = "production"
)

// ParseEnvironment validates a configured environment name.
func ParseEnvironment(s string) (Environment, error) {
	switch Environment(s) {
	case Sandbox, Development, Production:
		return Environment(s), nil
	default:
		return "", fmt.Errorf("unknown plaid environment %q", s)
	}
}

// BaseURL returns the API host for the environment.
func (e Environment) BaseURL() string {
	switch e {
	case Production:
		return "https://production.plaid.com"
	case Development:
		return "https://development.plaid.com"
	default:
		return "https://sandbox.plaid.com"
	}
}

// Config carries the API credentials and environment selection.
type Config struct {
	ClientID    string
	Secret      string
	Environment Environment
	ClientName  string
}

// Client is a minimal Plaid API client covering the surface the sync engine
// and the link flow consume.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cfg        Config
}

// Ensure Client satisfies the upstream contract.
var _ upstream.Provider = (*Client)(nil)

// New builds a Client for the configured environment.
func New(cfg Config) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    cfg.Environment.BaseURL(),
		cfg:        cfg,
	}
}

// post sends a JSON request with credentials injected and decodes the JSON
// response. Non-2xx responses decode into *upstream.Error.
func (c *Client) post(ctx context.Context, path string, body map[string]any, out any) error {
	body["client_id"] = c.cfg.ClientID
	body["secret"] = c.cfg.Secret

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		upErr := &upstream.Error{StatusCode: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(upErr); err != nil {
			return &upstream.Error{StatusCode: resp.StatusCode, Type: "API_ERROR", Message: resp.Status}
		}
		return upErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// ListAccounts returns all accounts under the item holding accessToken.
func (c *Client) ListAccounts(ctx context.Context, accessToken string) ([]upstream.RawAccount, error) {
	var resp struct {
		Accounts []upstream.RawAccount `json:"accounts"`
	}
	err := c.post(ctx, "/accounts/get", map[string]any{"access_token": accessToken}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Accounts, nil
}

// GetItem returns the provider's view of the item, including any credential
// error it is reporting. Item-level errors arrive in the response body rather
// than as an HTTP failure.
func (c *Client) GetItem(ctx context.Context, accessToken string) (upstream.Item, error) {
	var resp struct {
		Item struct {
			ItemID        string          `json:"item_id"`
			InstitutionID string          `json:"institution_id"`
			Error         *upstream.Error `json:"error"`
		} `json:"item"`
	}
	err := c.post(ctx, "/item/get", map[string]any{"access_token": accessToken}, &resp)
	if err != nil {
		return upstream.Item{}, err
	}
	return upstream.Item{
		ItemID:        resp.Item.ItemID,
		InstitutionID: resp.Item.InstitutionID,
		Error:         resp.Item.Error,
	}, nil
}

// SyncTransactions requests one page of the change feed.
func (c *Client) SyncTransactions(ctx context.Context, accessToken, cursor string, pageSize int) (upstream.SyncPage, error) {
	body := map[string]any{
		"access_token": accessToken,
		"count":        pageSize,
		"options": map[string]any{
			"include_personal_finance_category": true,
		},
	}
	if cursor != "" {
		body["cursor"] = cursor
	}

	var resp struct {
		Added    []upstream.RawTransaction `json:"added"`
		Modified []upstream.RawTransaction `json:"modified"`
		Removed  []struct {
			TransactionID string `json:"transaction_id"`
		} `json:"removed"`
		NextCursor string `json:"next_cursor"`
		HasMore    bool   `json:"has_more"`
	}
	if err := c.post(ctx, "/transactions/sync", body, &resp); err != nil {
		return upstream.SyncPage{}, err
	}

	page := upstream.SyncPage{
		Added:      resp.Added,
		Modified:   resp.Modified,
		NextCursor: resp.NextCursor,
		HasMore:    resp.HasMore,
	}
	for _, r := range resp.Removed {
		page.Removed = append(page.Removed, r.TransactionID)
	}
	return page, nil
}

// ListInstitutions fetches institution metadata for the given country codes.
func (c *Client) ListInstitutions(ctx context.Context, countryCodes []string) ([]domain.Institution, error) {
	var resp struct {
		Institutions []struct {
			InstitutionID string `json:"institution_id"`
			Name          string `json:"name"`
		} `json:"institutions"`
	}
	body := map[string]any{
		"count":         500,
		"offset":        0,
		"country_codes": countryCodes,
	}
	if err := c.post(ctx, "/institutions/get", body, &resp); err != nil {
		return nil, err
	}

	institutions := make([]domain.Institution, 0, len(resp.Institutions))
	for _, ins := range resp.Institutions {
		institutions = append(institutions, domain.Institution{ID: ins.InstitutionID, Name: ins.Name})
	}
	return institutions, nil
}

// RevokeAccessGrant invalidates the access token upstream. Callers must do
// this before deleting local link state.
func (c *Client) RevokeAccessGrant(ctx context.Context, accessToken string) error {
	return c.post(ctx, "/item/remove", map[string]any{"access_token": accessToken}, nil)
}

// CreateLinkToken starts a link-authorization session and returns the token
// the hosted Link page is initialized with. When update mode is requested the
// existing accessToken is attached so the user re-authorizes the same item.
func (c *Client) CreateLinkToken(ctx context.Context, userID string, countryCodes []string, accessToken string) (string, error) {
	body := map[string]any{
		"client_name":   c.cfg.ClientName,
		"language":      "en",
		"country_codes": countryCodes,
		"user":          map[string]any{"client_user_id": userID},
	}
	if accessToken != "" {
		body["access_token"] = accessToken
	} else {
		body["products"] = []string{"transactions"}
	}

	var resp struct {
		LinkToken string `json:"link_token"`
	}
	if err := c.post(ctx, "/link/token/create", body, &resp); err != nil {
		return "", err
	}
	return resp.LinkToken, nil
}

// ExchangePublicToken trades the public token from a completed Link session
// for the long-lived access credential.
func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) (accessToken, itemID string, err error) {
	var resp struct {
		AccessToken string `json:"access_token"`
		ItemID      string `json:"item_id"`
	}
	if err := c.post(ctx, "/item/public_token/exchange", map[string]any{"public_token": publicToken}, &resp); err != nil {
		return "", "", err
	}
	return resp.AccessToken, resp.ItemID, nil
}
