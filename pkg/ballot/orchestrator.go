// Package ballot owns the vote-submission saga: eligibility checks, the
// optimistic off-chain lock, the retried ledger write, compensation when
// that write fails, and audit recording when it commits.
//
// The two stores cannot share a transaction coordinator, so the saga
// compensates instead of two-phase committing. The ordering is the whole
// design: the reversible side (the voter's has_voted gate) is taken
// before the irreversible side (the ledger write), and only the
// reversible side is ever undone.
package ballot

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"

	"github.com/ballot-network/ballotx/pkg/audit"
	"github.com/ballot-network/ballotx/pkg/db/election"
	"github.com/ballot-network/ballotx/pkg/db/models"
	"github.com/ballot-network/ballotx/pkg/ledger"
	"github.com/ballot-network/ballotx/pkg/retry"
)

// Store is the relational persistence the orchestrator needs.
type Store interface {
	GetVoter(ctx context.Context, voterID string) (*models.Voter, error)
	GetElection(ctx context.Context, electionID string) (*models.Election, error)
	GetPositions(ctx context.Context, electionID string) ([]models.Position, error)
	GetCandidates(ctx context.Context, electionID string) ([]models.Candidate, error)
	ClaimVoter(ctx context.Context, voterID string, at time.Time) (bool, error)
	ReleaseVoter(ctx context.Context, voterID string) error
	InsertVote(ctx context.Context, v *models.Vote) error
	UpdateElectionStatus(ctx context.Context, electionID string, from, to models.ElectionStatus) (bool, error)
}

// Auditor appends one durable record per state-changing action.
type Auditor interface {
	Record(ctx context.Context, in audit.Entry) (string, error)
}

// Orchestrator coordinates one submission at a time per voter across
// the relational store and the ledger.
type Orchestrator struct {
	store    Store
	ledger   ledger.Client
	auditor  Auditor
	retryCfg retry.Config
	logger   *zap.Logger

	// inflight short-circuits a concurrent duplicate before it reaches
	// the store. The durable gate is still the has_voted compare-and-set;
	// this map only saves the losing request a round trip.
	inflight *xsync.Map[string, struct{}]
}

func New(store Store, lc ledger.Client, auditor Auditor, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		store:    store,
		ledger:   lc,
		auditor:  auditor,
		retryCfg: retry.ConflictConfig(ledger.IsTransientConflict),
		logger:   logger,
		inflight: xsync.NewMap[string, struct{}](),
	}
}

// SubmitRequest is one ballot: an ordered list of selections for an
// election by a voter.
type SubmitRequest struct {
	ElectionID string             `json:"electionId"`
	VoterID    string             `json:"voterId"`
	Selections []models.Selection `json:"selections"`
}

// SubmitResult confirms a recorded vote. VoteID may be empty when the
// ledger accepted the vote but the off-chain mirror write failed; that
// divergence is surfaced by reconciliation, not retried here.
type SubmitResult struct {
	TxID   string `json:"transactionId"`
	VoteID string `json:"voteRecordId"`
}

// Submit runs the full saga. On any precondition failure nothing has
// been written anywhere. After the optimistic lock is taken, a ledger
// failure compensates the lock; a ledger success is never undone.
func (o *Orchestrator) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	logger := o.logger.With(
		zap.String("election_id", req.ElectionID),
		zap.String("voter_id", req.VoterID))

	// Preconditions, in order, each with a distinct error kind.
	voter, err := o.store.GetVoter(ctx, req.VoterID)
	if errors.Is(err, election.ErrNotFound) {
		return nil, newError(CodeNotFound, "voter %s is not registered", req.VoterID)
	}
	if err != nil {
		return nil, wrapError(CodeInternal, err, "load voter")
	}

	if !voter.Enrolled || !voter.Eligible {
		return nil, newError(CodeNotEligible, "voter %s is not eligible to vote", req.VoterID)
	}

	if voter.HasVoted {
		return nil, newError(CodeAlreadyVoted, "voter %s has already voted", req.VoterID)
	}

	elec, err := o.store.GetElection(ctx, req.ElectionID)
	if errors.Is(err, election.ErrNotFound) {
		return nil, newError(CodeNotFound, "election %s does not exist", req.ElectionID)
	}
	if err != nil {
		return nil, wrapError(CodeInternal, err, "load election")
	}

	if err := o.validateSelections(ctx, req, voter); err != nil {
		return nil, err
	}

	switch elec.Status {
	case models.StatusOpen:
		// accepting votes
	case models.StatusDraft:
		// Distinct from a hard rejection: the caller may retry once an
		// administrator opens the election.
		return nil, newError(CodeElectionDraft, "election %s has not opened yet", req.ElectionID)
	default:
		return nil, newError(CodeElectionNotOpen, "election %s is not open", req.ElectionID)
	}

	// One saga per voter+election at a time within this process.
	guard := req.VoterID + "/" + req.ElectionID
	if _, loaded := o.inflight.LoadOrStore(guard, struct{}{}); loaded {
		return nil, newError(CodeAlreadyVoted, "a submission for voter %s is already in progress", req.VoterID)
	}
	defer o.inflight.Delete(guard)

	// Step A: optimistic off-chain lock. Taken before the ledger write
	// so a concurrent duplicate is rejected even while the write is in
	// flight. Of two racing claims exactly one wins the compare-and-set.
	now := time.Now().UTC()
	claimed, err := o.store.ClaimVoter(ctx, req.VoterID, now)
	if err != nil {
		return nil, wrapError(CodeInternal, err, "claim voter")
	}
	if !claimed {
		return nil, newError(CodeAlreadyVoted, "voter %s has already voted", req.VoterID)
	}

	// Step B: ledger write, retried on transient conflicts only.
	var txID string
	submitErr := retry.WithBackoff(ctx, o.retryCfg, logger, "ledger_cast_vote", func() error {
		id, serr := o.ledger.Submit(ctx, ledger.TxCastVote, ledger.CastVoteArgs{
			ElectionID: req.ElectionID,
			VoterID:    req.VoterID,
			Selections: toSelectionArgs(req.Selections),
		})
		if serr != nil {
			return serr
		}
		txID = id
		return nil
	})
	if submitErr != nil {
		o.compensate(ctx, req.VoterID, logger)
		return nil, wrapError(CodeLedgerWriteFailed, submitErr, "vote was not recorded, please try again")
	}

	logger = logger.With(zap.String("tx_id", txID))
	logger.Info("Ledger accepted vote transaction")

	// Step C: off-chain mirror. The ledger write is irreversible, so a
	// failure here is logged as a divergence for reconciliation to
	// surface, never compensated and never retried indefinitely.
	vote := &models.Vote{
		ID:         uuid.NewString(),
		ElectionID: req.ElectionID,
		VoterID:    req.VoterID,
		Selections: req.Selections,
		TxID:       txID,
		CastAt:     now,
	}
	voteID := vote.ID
	if err := o.store.InsertVote(ctx, vote); err != nil {
		voteID = ""
		logger.Error("Vote confirmed on ledger but off-chain record failed; divergence until reconciled",
			zap.Error(err))
	}

	// Step D: audit trail.
	if _, err := o.auditor.Record(ctx, audit.Entry{
		ElectionID: req.ElectionID,
		VoterID:    req.VoterID,
		Action:     models.ActionCastVote,
		TxID:       txID,
		Details:    req.Selections,
	}); err != nil {
		logger.Error("Vote confirmed but audit entry failed", zap.Error(err))
	}

	return &SubmitResult{TxID: txID, VoteID: voteID}, nil
}

// compensate reverts the optimistic lock after a failed ledger write so
// the voter can resubmit. Best effort: if this write also fails the
// voter record stays inconsistent, which the reconciliation report and
// the audit trail exist to catch.
func (o *Orchestrator) compensate(ctx context.Context, voterID string, logger *zap.Logger) {
	// The failed step may have burned the request deadline.
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := o.store.ReleaseVoter(cctx, voterID); err != nil {
		logger.Error("Compensation failed: voter left flagged as voted with no ledger transaction",
			zap.String("voter_id", voterID),
			zap.Error(err))
		return
	}
	logger.Warn("Ledger write failed, voter flag reverted", zap.String("voter_id", voterID))
}

// validateSelections enforces the ballot shape: known positions, known
// candidates (or the abstain sentinel), per-position selection caps, and
// department-restricted seats. Any violation rejects the whole ballot;
// partial ballots are never accepted.
func (o *Orchestrator) validateSelections(ctx context.Context, req SubmitRequest, voter *models.Voter) error {
	if len(req.Selections) == 0 {
		return newError(CodeInvalidSelection, "ballot has no selections")
	}

	positions, err := o.store.GetPositions(ctx, req.ElectionID)
	if err != nil {
		return wrapError(CodeInternal, err, "load positions")
	}
	candidates, err := o.store.GetCandidates(ctx, req.ElectionID)
	if err != nil {
		return wrapError(CodeInternal, err, "load candidates")
	}

	posByID := make(map[string]models.Position, len(positions))
	for _, p := range positions {
		posByID[p.ID] = p
	}
	candPos := make(map[string]string, len(candidates))
	for _, c := range candidates {
		candPos[c.ID] = c.PositionID
	}

	perPosition := make(map[string]int, len(req.Selections))
	for _, sel := range req.Selections {
		pos, ok := posByID[sel.PositionID]
		if !ok {
			return newError(CodeInvalidSelection, "position %s is not part of election %s", sel.PositionID, req.ElectionID)
		}

		if pos.Department != "" && pos.Department != voter.Department {
			return newError(CodeInvalidSelection, "position %s is restricted to department %s", pos.ID, pos.Department)
		}

		if !sel.IsAbstain() {
			candPosition, ok := candPos[sel.CandidateID]
			if !ok || candPosition != sel.PositionID {
				return newError(CodeInvalidSelection, "candidate %s is not running for position %s", sel.CandidateID, sel.PositionID)
			}
		}

		perPosition[sel.PositionID]++
		if perPosition[sel.PositionID] > pos.MaxVotes {
			return newError(CodeInvalidSelection, "position %s accepts at most %d selections", pos.ID, pos.MaxVotes)
		}
	}

	return nil
}

// SetElectionStatus moves an election through its lifecycle, writing
// the change to the ledger first (through the same conflict-retry
// policy, since administrative writes race on the election key) and
// mirroring it off-chain.
func (o *Orchestrator) SetElectionStatus(ctx context.Context, electionID string, to models.ElectionStatus) (string, error) {
	logger := o.logger.With(
		zap.String("election_id", electionID),
		zap.String("status", string(to)))

	elec, err := o.store.GetElection(ctx, electionID)
	if errors.Is(err, election.ErrNotFound) {
		return "", newError(CodeNotFound, "election %s does not exist", electionID)
	}
	if err != nil {
		return "", wrapError(CodeInternal, err, "load election")
	}

	if !models.CanTransition(elec.Status, to) {
		return "", newError(CodeInvalidTransition, "election %s cannot move from %s to %s", electionID, elec.Status, to)
	}

	var txID string
	submitErr := retry.WithBackoff(ctx, o.retryCfg, logger, "ledger_set_election_status", func() error {
		id, serr := o.ledger.Submit(ctx, ledger.TxSetElectionStatus, ledger.SetElectionStatusArgs{
			ElectionID: electionID,
			Status:     string(to),
		})
		if serr != nil {
			return serr
		}
		txID = id
		return nil
	})
	if submitErr != nil {
		return "", wrapError(CodeLedgerWriteFailed, submitErr, "election status change was not recorded")
	}

	moved, err := o.store.UpdateElectionStatus(ctx, electionID, elec.Status, to)
	if err != nil {
		logger.Error("Status confirmed on ledger but off-chain update failed; divergence until reconciled",
			zap.Error(err))
	} else if !moved {
		logger.Warn("Election status changed concurrently; off-chain state left as is")
	}

	action := models.ActionUpdateElection
	switch to {
	case models.StatusOpen:
		action = models.ActionOpenElection
	case models.StatusClosed:
		action = models.ActionCloseElection
	}
	if _, err := o.auditor.Record(ctx, audit.Entry{
		ElectionID: electionID,
		Action:     action,
		TxID:       txID,
		Details:    map[string]string{"from": string(elec.Status), "to": string(to)},
	}); err != nil {
		logger.Error("Status change confirmed but audit entry failed", zap.Error(err))
	}

	return txID, nil
}

func toSelectionArgs(in []models.Selection) []ledger.SelectionArg {
	out := make([]ledger.SelectionArg, len(in))
	for i, s := range in {
		out[i] = ledger.SelectionArg{PositionID: s.PositionID, CandidateID: s.CandidateID}
	}
	return out
}
