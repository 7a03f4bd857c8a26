package upstream

import "fmt"

// Error codes the provider reports when a link's credential is no longer valid.
const (
	CodeLoginRequired      = "ITEM_LOGIN_REQUIRED"
	CodeInvalidAccessToken = "INVALID_ACCESS_TOKEN"
	CodeItemLocked         = "ITEM_LOCKED"
)

// Error is a structured error returned by the provider API.
type Error struct {
	StatusCode int    `json:"-"`
	Type       string `json:"error_type"`
	Code       string `json:"error_code"`
	Message    string `json:"error_message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("upstream error %s (%s): %s", e.Code, e.Type, e.Message)
}

// Transient reports whether the request may be retried as-is. Server-side
// failures and rate limits qualify; client errors do not.
func (e *Error) Transient() bool {
	if e.StatusCode >= 500 || e.StatusCode == 429 {
		return true
	}
	return e.Type == "API_ERROR" || e.Type == "RATE_LIMIT_EXCEEDED"
}

// AuthFailure reports whether the error means the credential is invalid. These
// are never retried; the owning link transitions to a degraded state instead.
func (e *Error) AuthFailure() bool {
	switch e.Code {
	case CodeLoginRequired, CodeInvalidAccessToken, CodeItemLocked:
		return true
	}
	return e.Type == "INVALID_INPUT" && e.Code == "INVALID_API_KEYS"
}
