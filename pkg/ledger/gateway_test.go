package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc) *Gateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewGateway(Opts{
		Endpoints: []string{srv.URL},
		Channel:   "election-channel",
	}, zaptest.NewLogger(t))
}

func TestGatewaySubmitReturnsTxID(t *testing.T) {
	var gotPath string
	var gotArgs CastVoteArgs

	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotArgs))
		_ = json.NewEncoder(w).Encode(map[string]string{"txId": "tx-123"})
	})

	txID, err := g.Submit(context.Background(), TxCastVote, CastVoteArgs{
		ElectionID: "E1",
		VoterID:    "V1",
		Selections: []SelectionArg{{PositionID: "chair", CandidateID: "cand-1"}},
	})

	require.NoError(t, err)
	assert.Equal(t, "tx-123", txID)
	assert.Equal(t, "/v1/channels/election-channel/transactions/CastVote", gotPath)
	assert.Equal(t, "E1", gotArgs.ElectionID)
	assert.Len(t, gotArgs.Selections, 1)
}

func TestGatewaySubmitConflict(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"code":    "MVCC_READ_CONFLICT",
			"message": "key version changed",
		})
	})

	_, err := g.Submit(context.Background(), TxCastVote, CastVoteArgs{ElectionID: "E1"})

	require.Error(t, err)
	assert.True(t, IsTransientConflict(err))

	var ce *ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "MVCC_READ_CONFLICT", ce.Code)
	assert.Equal(t, TxCastVote, ce.TxName)
}

func TestGatewaySubmitPermanentRejection(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"code":    "ENDORSEMENT_FAILURE",
			"message": "chaincode rejected the proposal",
		})
	})

	_, err := g.Submit(context.Background(), TxCastVote, CastVoteArgs{ElectionID: "E1"})

	require.Error(t, err)
	assert.False(t, IsTransientConflict(err))

	var re *RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "ENDORSEMENT_FAILURE", re.Code)
	assert.Equal(t, http.StatusBadRequest, re.Status)
}

func TestGatewayEvaluateDecodesTally(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/channels/election-channel/queries/GetElectionTally", r.URL.Path)
		_ = json.NewEncoder(w).Encode(TallyResult{
			ElectionID: "E1",
			Positions: map[string]map[string]uint64{
				"chair": {"cand-1": 5, "cand-2": 3},
			},
		})
	})

	var tally TallyResult
	err := g.Evaluate(context.Background(), TxGetElectionTally, TallyQueryArgs{ElectionID: "E1"}, &tally)

	require.NoError(t, err)
	assert.Equal(t, uint64(5), tally.Positions["chair"]["cand-1"])
	assert.Equal(t, uint64(3), tally.Positions["chair"]["cand-2"])
}

func TestGatewayRotatesOnServerError(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(bad.Close)

	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"txId": "tx-9"})
	}))
	t.Cleanup(good.Close)

	g := NewGateway(Opts{
		Endpoints: []string{bad.URL, good.URL},
	}, zaptest.NewLogger(t))

	txID, err := g.Submit(context.Background(), TxCastVote, CastVoteArgs{ElectionID: "E1"})
	require.NoError(t, err)
	assert.Equal(t, "tx-9", txID)
}

func TestGatewayFailsWhileBreakerOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	g := NewGateway(Opts{
		Endpoints:       []string{srv.URL},
		BreakerFailures: 3,
	}, zaptest.NewLogger(t))

	// Trip the breaker on the only endpoint.
	for i := 0; i < 3; i++ {
		var tally TallyResult
		err := g.Evaluate(context.Background(), TxGetElectionTally, TallyQueryArgs{ElectionID: "E1"}, &tally)
		require.Error(t, err)
	}

	// With the breaker open the call must fail, not succeed with an
	// undecoded zero-value result.
	var tally TallyResult
	err := g.Evaluate(context.Background(), TxGetElectionTally, TallyQueryArgs{ElectionID: "E1"}, &tally)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoHealthyEndpoints)
	assert.Nil(t, tally.Positions)

	_, err = g.Submit(context.Background(), TxCastVote, CastVoteArgs{ElectionID: "E1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoHealthyEndpoints)
	assert.False(t, IsTransientConflict(err))
}

func TestGatewayNoEndpoints(t *testing.T) {
	g := NewGateway(Opts{}, zaptest.NewLogger(t))
	_, err := g.Submit(context.Background(), TxCastVote, nil)
	assert.Error(t, err)
}
