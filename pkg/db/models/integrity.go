package models

import "time"

// IntegrityComparison compares one {position, candidate} tally between
// the ledger and the off-chain mirror. Synthesized fresh on every
// reconciliation run, never persisted.
type IntegrityComparison struct {
	PositionID    string `json:"positionId"`
	CandidateID   string `json:"candidateId"`
	LedgerCount   uint64 `json:"ledgerCount"`
	OffchainCount uint64 `json:"offchainCount"`
	Match         bool   `json:"match"`
}

// IntegrityTotals aggregates both sources across all compared keys.
type IntegrityTotals struct {
	Ledger   uint64 `json:"ledger"`
	Offchain uint64 `json:"offchain"`
	Match    bool   `json:"match"`
}

// IntegrityReport is the full comparison between ledger-reported and
// off-chain-derived tallies for one election.
type IntegrityReport struct {
	ElectionID string `json:"electionId"`
	// LedgerResults and OffchainResults are the two per-source tallies
	// the comparison was built from: position id -> candidate id -> count.
	LedgerResults   map[string]map[string]uint64 `json:"ledgerResults"`
	OffchainResults map[string]map[string]uint64 `json:"offchainResults"`
	Comparison      []IntegrityComparison        `json:"comparison"`
	Totals          IntegrityTotals              `json:"totals"`
	HasMismatch     bool                         `json:"hasMismatch"`
	// VotesMissingAudit counts vote records whose transaction id has no
	// matching audit entry (audit-trail completeness check).
	VotesMissingAudit int       `json:"votesMissingAudit"`
	GeneratedAt       time.Time `json:"timestamp"`
}
