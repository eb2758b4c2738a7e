// Package reconcile compares ledger-reported tallies with the off-chain
// mirror and reports divergence. It never resolves a mismatch; that is
// an administrative action.
package reconcile

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/ballot-network/ballotx/pkg/db/models"
	"github.com/ballot-network/ballotx/pkg/ledger"
)

// Store is the off-chain side of the comparison.
type Store interface {
	ListVotes(ctx context.Context, electionID string) ([]models.Vote, error)
	CountVotesMissingAudit(ctx context.Context, electionID string) (int, error)
}

// Engine derives both tallies independently and diffs them. Running it
// is read-only and side-effect free, so it is safe to invoke repeatedly
// and concurrently.
type Engine struct {
	ledger ledger.Client
	store  Store
	logger *zap.Logger
}

func NewEngine(lc ledger.Client, store Store, logger *zap.Logger) *Engine {
	return &Engine{ledger: lc, store: store, logger: logger}
}

// Reconcile produces a fresh integrity report for one election.
func (e *Engine) Reconcile(ctx context.Context, electionID string) (*models.IntegrityReport, error) {
	var tally ledger.TallyResult
	if err := e.ledger.Evaluate(ctx, ledger.TxGetElectionTally, ledger.TallyQueryArgs{ElectionID: electionID}, &tally); err != nil {
		return nil, fmt.Errorf("ledger tally for election %s: %w", electionID, err)
	}

	votes, err := e.store.ListVotes(ctx, electionID)
	if err != nil {
		return nil, fmt.Errorf("off-chain votes for election %s: %w", electionID, err)
	}
	offchain := OffchainTally(votes)

	missingAudit, err := e.store.CountVotesMissingAudit(ctx, electionID)
	if err != nil {
		return nil, fmt.Errorf("audit completeness for election %s: %w", electionID, err)
	}

	report := buildReport(electionID, tally.Positions, offchain)
	report.VotesMissingAudit = missingAudit

	if report.HasMismatch {
		e.logger.Warn("Integrity mismatch detected",
			zap.String("election_id", electionID),
			zap.Uint64("ledger_total", report.Totals.Ledger),
			zap.Uint64("offchain_total", report.Totals.Offchain))
	}

	return report, nil
}

// OffchainTally derives per-position, per-candidate counts from the vote
// mirror. Abstentions are deliberate non-choices and are not counted.
func OffchainTally(votes []models.Vote) map[string]map[string]uint64 {
	tally := make(map[string]map[string]uint64)
	for _, v := range votes {
		for _, sel := range v.Selections {
			if sel.IsAbstain() {
				continue
			}
			if tally[sel.PositionID] == nil {
				tally[sel.PositionID] = make(map[string]uint64)
			}
			tally[sel.PositionID][sel.CandidateID]++
		}
	}
	return tally
}

// buildReport diffs both tallies over the union of their keys, so a key
// missing entirely from one source shows up as a zero-count mismatch
// rather than disappearing.
func buildReport(electionID string, ledgerTally, offchainTally map[string]map[string]uint64) *models.IntegrityReport {
	type key struct{ position, candidate string }
	seen := make(map[key]struct{})

	for pos, byCand := range ledgerTally {
		for cand := range byCand {
			seen[key{pos, cand}] = struct{}{}
		}
	}
	for pos, byCand := range offchainTally {
		for cand := range byCand {
			seen[key{pos, cand}] = struct{}{}
		}
	}

	keys := make([]key, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	// Deterministic order: identical inputs must yield identical reports.
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].position != keys[j].position {
			return keys[i].position < keys[j].position
		}
		return keys[i].candidate < keys[j].candidate
	})

	if ledgerTally == nil {
		ledgerTally = map[string]map[string]uint64{}
	}
	if offchainTally == nil {
		offchainTally = map[string]map[string]uint64{}
	}

	report := &models.IntegrityReport{
		ElectionID:      electionID,
		LedgerResults:   ledgerTally,
		OffchainResults: offchainTally,
		Comparison:      make([]models.IntegrityComparison, 0, len(keys)),
		GeneratedAt:     time.Now().UTC(),
	}

	for _, k := range keys {
		lc := ledgerTally[k.position][k.candidate]
		oc := offchainTally[k.position][k.candidate]
		match := lc == oc
		if !match {
			report.HasMismatch = true
		}
		report.Comparison = append(report.Comparison, models.IntegrityComparison{
			PositionID:    k.position,
			CandidateID:   k.candidate,
			LedgerCount:   lc,
			OffchainCount: oc,
			Match:         match,
		})
		report.Totals.Ledger += lc
		report.Totals.Offchain += oc
	}

	report.Totals.Match = report.Totals.Ledger == report.Totals.Offchain
	if !report.Totals.Match {
		report.HasMismatch = true
	}

	return report
}
