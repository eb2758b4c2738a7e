package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ballot-network/ballotx/app/server/types"
	"github.com/ballot-network/ballotx/pkg/ballot"
	"github.com/ballot-network/ballotx/pkg/db/election"
	"github.com/ballot-network/ballotx/pkg/db/models"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockStore) GetElection(ctx context.Context, electionID string) (*models.Election, error) {
	args := m.Called(ctx, electionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Election), args.Error(1)
}

func (m *MockStore) ListElections(ctx context.Context) ([]models.Election, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Election), args.Error(1)
}

func (m *MockStore) GetPositions(ctx context.Context, electionID string) ([]models.Position, error) {
	args := m.Called(ctx, electionID)
	return args.Get(0).([]models.Position), args.Error(1)
}

func (m *MockStore) GetCandidates(ctx context.Context, electionID string) ([]models.Candidate, error) {
	args := m.Called(ctx, electionID)
	return args.Get(0).([]models.Candidate), args.Error(1)
}

func (m *MockStore) GetVoter(ctx context.Context, voterID string) (*models.Voter, error) {
	args := m.Called(ctx, voterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Voter), args.Error(1)
}

func (m *MockStore) ListVotes(ctx context.Context, electionID string) ([]models.Vote, error) {
	args := m.Called(ctx, electionID)
	return args.Get(0).([]models.Vote), args.Error(1)
}

func (m *MockStore) ListAuditEntries(ctx context.Context, electionID string) ([]models.AuditEntry, error) {
	args := m.Called(ctx, electionID)
	return args.Get(0).([]models.AuditEntry), args.Error(1)
}

type MockVoteService struct {
	mock.Mock
}

func (m *MockVoteService) Submit(ctx context.Context, req ballot.SubmitRequest) (*ballot.SubmitResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ballot.SubmitResult), args.Error(1)
}

func (m *MockVoteService) SetElectionStatus(ctx context.Context, electionID string, to models.ElectionStatus) (string, error) {
	args := m.Called(ctx, electionID, to)
	return args.String(0), args.Error(1)
}

type MockIntegrity struct {
	mock.Mock
}

func (m *MockIntegrity) Reconcile(ctx context.Context, electionID string) (*models.IntegrityReport, error) {
	args := m.Called(ctx, electionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.IntegrityReport), args.Error(1)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) GetReport(ctx context.Context, electionID string) (*models.IntegrityReport, error) {
	args := m.Called(ctx, electionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.IntegrityReport), args.Error(1)
}

type fixture struct {
	store     *MockStore
	votes     *MockVoteService
	integrity *MockIntegrity
	router    *mux.Router
}

func newFixture(t *testing.T) *fixture {
	store := &MockStore{}
	votes := &MockVoteService{}
	integrity := &MockIntegrity{}

	app := &types.App{
		Store:     store,
		Ballots:   votes,
		Integrity: integrity,
		Logger:    zaptest.NewLogger(t),
	}
	router, err := NewController(app).NewRouter()
	require.NoError(t, err)

	return &fixture{store: store, votes: votes, integrity: integrity, router: router}
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestCastVoteAccepted(t *testing.T) {
	f := newFixture(t)

	f.votes.On("Submit", mock.Anything, ballot.SubmitRequest{
		ElectionID: "E1",
		VoterID:    "alice",
		Selections: []models.Selection{{PositionID: "chair", CandidateID: "cand-1"}},
	}).Return(&ballot.SubmitResult{TxID: "tx-1", VoteID: "vote-1"}, nil)

	rec := f.do(http.MethodPost, "/elections/E1/votes",
		`{"voterId":"alice","selections":[{"positionId":"chair","candidateId":"cand-1"}]}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "tx-1", body["transactionId"])
	assert.Equal(t, "vote-1", body["voteRecordId"])
	f.votes.AssertExpectations(t)
}

func TestCastVotePathOwnsElectionID(t *testing.T) {
	f := newFixture(t)

	// A mismatching electionId in the body must not win over the path.
	f.votes.On("Submit", mock.Anything, mock.MatchedBy(func(req ballot.SubmitRequest) bool {
		return req.ElectionID == "E1"
	})).Return(&ballot.SubmitResult{TxID: "tx-1"}, nil)

	rec := f.do(http.MethodPost, "/elections/E1/votes",
		`{"electionId":"E2","voterId":"alice","selections":[{"positionId":"chair","candidateId":"cand-1"}]}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	f.votes.AssertExpectations(t)
}

func TestCastVoteRejectionStatuses(t *testing.T) {
	cases := []struct {
		code   ballot.Code
		status int
	}{
		{ballot.CodeNotFound, http.StatusNotFound},
		{ballot.CodeNotEligible, http.StatusForbidden},
		{ballot.CodeAlreadyVoted, http.StatusConflict},
		{ballot.CodeElectionNotOpen, http.StatusConflict},
		{ballot.CodeElectionDraft, http.StatusConflict},
		{ballot.CodeInvalidSelection, http.StatusBadRequest},
		{ballot.CodeLedgerWriteFailed, http.StatusBadGateway},
	}

	for _, tc := range cases {
		t.Run(string(tc.code), func(t *testing.T) {
			f := newFixture(t)
			f.votes.On("Submit", mock.Anything, mock.Anything).
				Return(nil, &ballot.SubmitError{Code: tc.code, Message: "rejected"})

			rec := f.do(http.MethodPost, "/elections/E1/votes", `{"voterId":"alice","selections":[]}`)

			require.Equal(t, tc.status, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, string(tc.code), body["code"])
		})
	}
}

func TestCastVoteInvalidBody(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/elections/E1/votes", `{not json`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	f.votes.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
}

func TestCastVoteMissingVoter(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/elections/E1/votes", `{"selections":[]}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	f.votes.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
}

func TestElectionStatusChange(t *testing.T) {
	f := newFixture(t)

	f.votes.On("SetElectionStatus", mock.Anything, "E1", models.StatusOpen).
		Return("tx-9", nil)

	rec := f.do(http.MethodPost, "/elections/E1/status", `{"status":"open"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "tx-9", body["transactionId"])
	assert.Equal(t, "OPEN", body["status"])
}

func TestElectionStatusRejectsUnknownTarget(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/elections/E1/status", `{"status":"DRAFT"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	f.votes.AssertNotCalled(t, "SetElectionStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestElectionStatusInvalidTransition(t *testing.T) {
	f := newFixture(t)

	f.votes.On("SetElectionStatus", mock.Anything, "E1", models.StatusClosed).
		Return("", &ballot.SubmitError{Code: ballot.CodeInvalidTransition, Message: "already closed"})

	rec := f.do(http.MethodPost, "/elections/E1/status", `{"status":"CLOSED"}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestElectionDetail(t *testing.T) {
	f := newFixture(t)

	f.store.On("GetElection", mock.Anything, "E1").
		Return(&models.Election{ID: "E1", Name: "Student Council 2026", Status: models.StatusOpen}, nil)
	f.store.On("GetPositions", mock.Anything, "E1").
		Return([]models.Position{{ID: "chair", ElectionID: "E1", MaxVotes: 1}}, nil)
	f.store.On("GetCandidates", mock.Anything, "E1").
		Return([]models.Candidate{{ID: "cand-1", PositionID: "chair", ElectionID: "E1"}}, nil)

	rec := f.do(http.MethodGet, "/elections/E1", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var detail ElectionDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, "E1", detail.ID)
	assert.Len(t, detail.Positions, 1)
	assert.Len(t, detail.Candidates, 1)
}

func TestElectionDetailNotFound(t *testing.T) {
	f := newFixture(t)

	f.store.On("GetElection", mock.Anything, "nope").Return(nil, election.ErrNotFound)

	rec := f.do(http.MethodGet, "/elections/nope", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResultsTallyFromMirror(t *testing.T) {
	f := newFixture(t)

	f.store.On("GetElection", mock.Anything, "E1").
		Return(&models.Election{ID: "E1", Status: models.StatusClosed}, nil)
	f.store.On("ListVotes", mock.Anything, "E1").
		Return([]models.Vote{
			{VoterID: "v1", Selections: []models.Selection{{PositionID: "chair", CandidateID: "cand-1"}}},
			{VoterID: "v2", Selections: []models.Selection{{PositionID: "chair", CandidateID: "cand-1"}}},
			{VoterID: "v3", Selections: []models.Selection{{PositionID: "chair", CandidateID: models.AbstainCandidateID}}},
		}, nil)

	rec := f.do(http.MethodGet, "/elections/E1/results", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(3), body["totalVotes"])
	tally := body["tally"].(map[string]any)["chair"].(map[string]any)
	assert.Equal(t, float64(2), tally["cand-1"])
	// Abstentions count for turnout but never for a candidate.
	assert.NotContains(t, tally, models.AbstainCandidateID)
}

func TestVoterDetail(t *testing.T) {
	f := newFixture(t)

	votedAt := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	f.store.On("GetVoter", mock.Anything, "alice").
		Return(&models.Voter{ID: "alice", Enrolled: true, Eligible: true, HasVoted: true, VotedAt: &votedAt}, nil)

	rec := f.do(http.MethodGet, "/elections/E1/voters/alice", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["eligible"])
	assert.Equal(t, true, body["hasVoted"])
}

func TestVoterDetailNotFound(t *testing.T) {
	f := newFixture(t)

	f.store.On("GetVoter", mock.Anything, "ghost").Return(nil, election.ErrNotFound)

	rec := f.do(http.MethodGet, "/elections/E1/voters/ghost", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIntegrityComputesFreshReport(t *testing.T) {
	f := newFixture(t)

	f.store.On("GetElection", mock.Anything, "E1").
		Return(&models.Election{ID: "E1", Status: models.StatusOpen}, nil)
	f.integrity.On("Reconcile", mock.Anything, "E1").
		Return(&models.IntegrityReport{
			ElectionID:      "E1",
			LedgerResults:   map[string]map[string]uint64{"chair": {"cand-1": 2}},
			OffchainResults: map[string]map[string]uint64{"chair": {"cand-1": 2}},
			HasMismatch:     false,
		}, nil)

	rec := f.do(http.MethodGet, "/elections/E1/integrity", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "E1", body["electionId"])
	assert.Equal(t, false, body["hasMismatch"])
	ledgerResults := body["ledgerResults"].(map[string]any)["chair"].(map[string]any)
	assert.Equal(t, float64(2), ledgerResults["cand-1"])
	assert.Contains(t, body, "offchainResults")
}

func TestIntegrityLedgerUnavailable(t *testing.T) {
	f := newFixture(t)

	f.store.On("GetElection", mock.Anything, "E1").
		Return(&models.Election{ID: "E1"}, nil)
	f.integrity.On("Reconcile", mock.Anything, "E1").
		Return(nil, assert.AnError)

	rec := f.do(http.MethodGet, "/elections/E1/integrity", "")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestIntegrityServedFromCache(t *testing.T) {
	store := &MockStore{}
	votes := &MockVoteService{}
	integrity := &MockIntegrity{}
	cache := &MockCache{}

	app := &types.App{
		Store:     store,
		Ballots:   votes,
		Integrity: integrity,
		Cache:     cache,
		Logger:    zaptest.NewLogger(t),
	}
	router, err := NewController(app).NewRouter()
	require.NoError(t, err)
	f := &fixture{store: store, votes: votes, integrity: integrity, router: router}

	store.On("GetElection", mock.Anything, "E1").
		Return(&models.Election{ID: "E1"}, nil)
	cache.On("GetReport", mock.Anything, "E1").
		Return(&models.IntegrityReport{ElectionID: "E1", HasMismatch: true}, nil)

	rec := f.do(http.MethodGet, "/elections/E1/integrity?cached=true", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["hasMismatch"])
	integrity.AssertNotCalled(t, "Reconcile", mock.Anything, mock.Anything)
}

func TestIntegrityCacheMissFallsThrough(t *testing.T) {
	store := &MockStore{}
	votes := &MockVoteService{}
	integrity := &MockIntegrity{}
	cache := &MockCache{}

	app := &types.App{
		Store:     store,
		Ballots:   votes,
		Integrity: integrity,
		Cache:     cache,
		Logger:    zaptest.NewLogger(t),
	}
	router, err := NewController(app).NewRouter()
	require.NoError(t, err)
	f := &fixture{store: store, votes: votes, integrity: integrity, router: router}

	store.On("GetElection", mock.Anything, "E1").
		Return(&models.Election{ID: "E1"}, nil)
	cache.On("GetReport", mock.Anything, "E1").Return(nil, nil)
	integrity.On("Reconcile", mock.Anything, "E1").
		Return(&models.IntegrityReport{ElectionID: "E1"}, nil)

	rec := f.do(http.MethodGet, "/elections/E1/integrity?cached=true", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	integrity.AssertExpectations(t)
}

func TestAuditTrail(t *testing.T) {
	f := newFixture(t)

	f.store.On("ListAuditEntries", mock.Anything, "E1").
		Return([]models.AuditEntry{
			{ID: "a2", ElectionID: "E1", Action: models.ActionCastVote, TxID: "tx-2"},
			{ID: "a1", ElectionID: "E1", Action: models.ActionOpenElection, TxID: "tx-1"},
		}, nil)

	rec := f.do(http.MethodGet, "/elections/E1/audit", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Len(t, body["entries"], 2)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	f.store.On("Ping", mock.Anything).Return(nil)

	rec := f.do(http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthDatabaseDown(t *testing.T) {
	f := newFixture(t)

	f.store.On("Ping", mock.Anything).Return(assert.AnError)

	rec := f.do(http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
