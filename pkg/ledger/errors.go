package ledger

import (
	"errors"
	"fmt"
)

// ErrTransientConflict marks an optimistic-concurrency read/write
// conflict: two writers raced on the same ledger key and the loser was
// rejected. Expected to succeed on retry.
var ErrTransientConflict = errors.New("ledger: transient read/write conflict")

// ErrNoHealthyEndpoints is returned when every configured endpoint's
// circuit breaker is open and the request was never attempted.
var ErrNoHealthyEndpoints = errors.New("ledger: no healthy endpoint available")

// Conflict codes the gateway reports for races on shared keys.
const (
	codeMVCCReadConflict    = "MVCC_READ_CONFLICT"
	codePhantomReadConflict = "PHANTOM_READ_CONFLICT"
)

// ConflictError carries the conflict code of a rejected submission.
type ConflictError struct {
	TxName string
	Code   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("ledger: %s rejected with %s", e.TxName, e.Code)
}

func (e *ConflictError) Unwrap() error { return ErrTransientConflict }

// RemoteError is any non-conflict rejection reported by the gateway.
type RemoteError struct {
	TxName  string
	Status  int
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("ledger: %s failed (%d %s): %s", e.TxName, e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("ledger: %s failed (%d %s)", e.TxName, e.Status, e.Code)
}

// IsTransientConflict reports whether err is a conflict worth retrying.
func IsTransientConflict(err error) bool {
	return errors.Is(err, ErrTransientConflict)
}

func isConflictCode(code string) bool {
	return code == codeMVCCReadConflict || code == codePhantomReadConflict
}
