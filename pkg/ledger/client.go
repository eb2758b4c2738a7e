package ledger

import "context"

// Transaction names confirmed on the ledger. The ledger's execution
// semantics are opaque to this service: a transaction is submitted by
// name with JSON arguments and either commits with a transaction id or
// fails with a typed error.
const (
	TxCastVote          = "CastVote"
	TxSetElectionStatus = "SetElectionStatus"
	TxGetElectionTally  = "GetElectionTally"
)

// Client is the capability this service needs from the ledger network.
// Submit writes a named transaction and returns its transaction id.
// Evaluate runs a read-only query transaction and decodes the result
// into out.
type Client interface {
	Submit(ctx context.Context, txName string, args any) (string, error)
	Evaluate(ctx context.Context, txName string, args any, out any) error
}

// CastVoteArgs is the payload of a CastVote transaction.
type CastVoteArgs struct {
	ElectionID string         `json:"electionId"`
	VoterID    string         `json:"voterId"`
	Selections []SelectionArg `json:"selections"`
}

// SelectionArg is one {position, candidate} pair of a ballot.
type SelectionArg struct {
	PositionID  string `json:"positionId"`
	CandidateID string `json:"candidateId"`
}

// SetElectionStatusArgs is the payload of a SetElectionStatus transaction.
type SetElectionStatusArgs struct {
	ElectionID string `json:"electionId"`
	Status     string `json:"status"`
}

// TallyQueryArgs is the payload of a GetElectionTally evaluation.
type TallyQueryArgs struct {
	ElectionID string `json:"electionId"`
}

// TallyResult is the ledger's authoritative per-position, per-candidate
// vote counts for an election.
type TallyResult struct {
	ElectionID string `json:"electionId"`
	// Positions maps position id -> candidate id -> confirmed votes.
	Positions map[string]map[string]uint64 `json:"positions"`
}
