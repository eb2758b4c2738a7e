package ballot

import (
	"errors"
	"fmt"
)

// Code is a stable machine-readable cause carried by every error that
// crosses the orchestrator boundary. Callers branch on it instead of
// string-matching: whether a voter should retry depends on which of
// these they got.
type Code string

const (
	CodeNotFound          Code = "not_found"
	CodeNotEligible       Code = "not_eligible"
	CodeAlreadyVoted      Code = "already_voted"
	CodeElectionNotOpen   Code = "election_not_open"
	CodeElectionDraft     Code = "election_draft"
	CodeInvalidSelection  Code = "invalid_selection"
	CodeInvalidTransition Code = "invalid_transition"
	CodeLedgerWriteFailed Code = "ledger_write_failed"
	CodeInternal          Code = "internal"
)

// SubmitError is the typed failure of a submission or lifecycle
// operation.
type SubmitError struct {
	Code    Code
	Message string
	cause   error
}

func (e *SubmitError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *SubmitError) Unwrap() error { return e.cause }

func newError(code Code, format string, args ...any) *SubmitError {
	return &SubmitError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func wrapError(code Code, cause error, format string, args ...any) *SubmitError {
	return &SubmitError{Code: code, Message: fmt.Sprintf(format, args...), cause: cause}
}

// CodeOf extracts the submission code from an error chain.
func CodeOf(err error) (Code, bool) {
	var se *SubmitError
	if errors.As(err, &se) {
		return se.Code, true
	}
	return "", false
}
