package apperrors

import "errors"

// ErrNotFound indicates that a requested resource could not be found.
var ErrNotFound = errors.New("resource not found")

// ErrValidation indicates that input data failed validation checks.
var ErrValidation = errors.New("validation error")

// ErrDuplicate indicates that an attempt was made to create a resource that already exists.
// Replaying a change feed after a crash produces these; callers treat them as a benign skip.
var ErrDuplicate = errors.New("resource already exists")

// ErrConsistency indicates the upstream feed and the local ledger disagree in a way
// that cannot be repaired automatically, e.g. a modification for a transaction that
// was never ingested, or a page sequence that ended without its terminal cursor.
var ErrConsistency = errors.New("consistency violation")

// ErrReauthRequired indicates the upstream rejected a link's credential. The link
// must be re-authorized by the user before syncing resumes.
var ErrReauthRequired = errors.New("link requires re-authorization")
