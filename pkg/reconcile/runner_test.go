package reconcile

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ballot-network/ballotx/pkg/db/models"
	"github.com/ballot-network/ballotx/pkg/ledger"
)

type fakeLister struct {
	elections []models.Election
}

func (f *fakeLister) ListElectionsByStatus(context.Context, models.ElectionStatus) ([]models.Election, error) {
	return f.elections, nil
}

type memorySink struct {
	mu         sync.Mutex
	stored     []*models.IntegrityReport
	mismatches []*models.IntegrityReport
}

func (s *memorySink) StoreReport(_ context.Context, report *models.IntegrityReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stored = append(s.stored, report)
	return nil
}

func (s *memorySink) PublishMismatch(_ context.Context, report *models.IntegrityReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mismatches = append(s.mismatches, report)
	return nil
}

func TestRunAllReconcilesEveryOpenElection(t *testing.T) {
	lc := &fakeLedger{tally: ledger.TallyResult{
		Positions: map[string]map[string]uint64{"chair": {"cand-1": 1}},
	}}
	store := &fakeStore{votes: []models.Vote{
		voteWith("v1", models.Selection{PositionID: "chair", CandidateID: "cand-1"}),
	}}
	engine := NewEngine(lc, store, zaptest.NewLogger(t))

	lister := &fakeLister{elections: []models.Election{
		{ID: "E1", Status: models.StatusOpen},
		{ID: "E2", Status: models.StatusOpen},
		{ID: "E3", Status: models.StatusOpen},
	}}
	sink := &memorySink{}

	r := NewRunner(engine, lister, sink, 2, "@every 1m", zaptest.NewLogger(t))
	defer r.pool.StopAndWait()

	require.NoError(t, r.RunAll(context.Background()))

	assert.Len(t, sink.stored, 3)
	// Tallies match in this fixture, so nothing is published.
	assert.Empty(t, sink.mismatches)
}

func TestRunAllPublishesMismatches(t *testing.T) {
	lc := &fakeLedger{tally: ledger.TallyResult{
		Positions: map[string]map[string]uint64{"chair": {"cand-1": 5}},
	}}
	store := &fakeStore{}
	engine := NewEngine(lc, store, zaptest.NewLogger(t))

	lister := &fakeLister{elections: []models.Election{{ID: "E1", Status: models.StatusOpen}}}
	sink := &memorySink{}

	r := NewRunner(engine, lister, sink, 2, "@every 1m", zaptest.NewLogger(t))
	defer r.pool.StopAndWait()

	require.NoError(t, r.RunAll(context.Background()))

	require.Len(t, sink.mismatches, 1)
	assert.True(t, sink.mismatches[0].HasMismatch)
}
