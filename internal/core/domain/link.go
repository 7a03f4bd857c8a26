package domain

// LinkState indicates whether a link's credential is usable.
type LinkState string

const (
	// LinkActive links are eligible for sync passes.
	LinkActive LinkState = "ACTIVE"
	// LinkDegraded links have a credential the upstream has invalidated. They are
	// skipped by sync until the user re-authorizes them.
	LinkDegraded LinkState = "REQUIRES_VERIFICATION"
)

// Link is one authorized connection to an upstream institution. It owns the
// access credential and the change-feed cursor for all accounts under the item.
type Link struct {
	ItemID         string    `json:"itemID"` // Primary key, assigned by the upstream
	Alias          string    `json:"alias"`
	AccessToken    string    `json:"-"`
	State          LinkState `json:"state"`
	DegradedReason string    `json:"degradedReason,omitempty"`
	SyncCursor     string    `json:"syncCursor"` // Empty until the first successful sync pass
	InstitutionID  string    `json:"institutionID"`
}

// Degrade marks the link as requiring re-authorization.
func (l *Link) Degrade(reason string) {
	l.State = LinkDegraded
	l.DegradedReason = reason
}

// Institution is cached metadata about an upstream financial institution.
type Institution struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
