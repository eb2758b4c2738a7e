package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ballot-network/ballotx/pkg/utils"
	"go.uber.org/zap"
)

// Gateway speaks JSON over HTTP to one or more ledger gateway peers.
// It rotates across endpoints on transport failures, keeps a per-endpoint
// circuit-breaker, and rate-limits outgoing calls with a token-bucket.
//
// A conflict rejection (optimistic-concurrency race) is a definitive
// answer from the network, not an endpoint failure: it is returned
// immediately without rotating, so the caller's retry policy owns the
// backoff.
type Gateway struct {
	endpoints []string
	channel   string
	client    *http.Client
	logger    *zap.Logger

	evaluateTimeout time.Duration
	submitTimeout   time.Duration

	// token-bucket
	tokens      int64
	maxTokens   int64
	refillEvery time.Duration
	lastRefill  atomic.Value // time.Time

	// circuit-breaker
	mu       sync.Mutex
	failures map[string]int
	opened   map[string]time.Time

	breakerThreshold int
	breakerCooldown  time.Duration
}

// Opts is the set of options for a new Gateway.
type Opts struct {
	Endpoints       []string
	Channel         string
	EvaluateTimeout time.Duration
	SubmitTimeout   time.Duration
	RPS             int
	Burst           int
	BreakerFailures int
	BreakerCooldown time.Duration
	HTTPClient      *http.Client
}

// NewGateway creates a new Gateway with the given options. The returned
// client is safe for concurrent use and is meant to be constructed once
// at startup and handed to every component that needs the ledger.
func NewGateway(o Opts, logger *zap.Logger) *Gateway {
	if o.RPS <= 0 {
		o.RPS = 20
	}
	if o.Burst <= 0 {
		o.Burst = 40
	}
	if o.EvaluateTimeout <= 0 {
		// Read-only evaluations should fail fast.
		o.EvaluateTimeout = 5 * time.Second
	}
	if o.SubmitTimeout <= 0 {
		// Submissions wait on consensus, so they get a longer deadline.
		o.SubmitTimeout = 30 * time.Second
	}
	if o.BreakerFailures <= 0 {
		o.BreakerFailures = 3
	}
	if o.BreakerCooldown <= 0 {
		o.BreakerCooldown = 5 * time.Second
	}
	if o.Channel == "" {
		o.Channel = "election-channel"
	}

	client := o.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	g := &Gateway{
		endpoints:        utils.Dedup(o.Endpoints),
		channel:          o.Channel,
		client:           client,
		logger:           logger,
		evaluateTimeout:  o.EvaluateTimeout,
		submitTimeout:    o.SubmitTimeout,
		maxTokens:        int64(o.Burst),
		refillEvery:      time.Second / time.Duration(o.RPS),
		failures:         map[string]int{},
		opened:           map[string]time.Time{},
		breakerThreshold: o.BreakerFailures,
		breakerCooldown:  o.BreakerCooldown,
	}
	g.tokens = g.maxTokens
	g.lastRefill.Store(time.Now())
	return g
}

// Submit writes a named transaction and returns the committed
// transaction id.
func (g *Gateway) Submit(ctx context.Context, txName string, args any) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.submitTimeout)
	defer cancel()

	var out struct {
		TxID string `json:"txId"`
	}
	path := fmt.Sprintf("/v1/channels/%s/transactions/%s", g.channel, txName)
	if err := g.doJSON(ctx, txName, path, args, &out); err != nil {
		return "", err
	}
	if out.TxID == "" {
		return "", &RemoteError{TxName: txName, Status: http.StatusOK, Code: "EMPTY_TX_ID", Message: "gateway returned no transaction id"}
	}
	return out.TxID, nil
}

// Evaluate runs a read-only query transaction and decodes its result
// into out.
func (g *Gateway) Evaluate(ctx context.Context, txName string, args any, out any) error {
	ctx, cancel := context.WithTimeout(ctx, g.evaluateTimeout)
	defer cancel()

	path := fmt.Sprintf("/v1/channels/%s/queries/%s", g.channel, txName)
	return g.doJSON(ctx, txName, path, args, out)
}

// refill refills the token-bucket with new tokens if necessary.
func (g *Gateway) refill() {
	last := g.lastRefill.Load().(time.Time)
	now := time.Now()
	if now.Sub(last) >= g.refillEvery {
		if atomic.LoadInt64(&g.tokens) < g.maxTokens {
			atomic.AddInt64(&g.tokens, 1)
		}
		g.lastRefill.Store(now)
	}
}

// acquire acquires a token from the token-bucket, blocking if necessary.
func (g *Gateway) acquire() {
	for {
		g.refill()
		if atomic.LoadInt64(&g.tokens) > 0 {
			atomic.AddInt64(&g.tokens, -1)
			return
		}
		time.Sleep(g.refillEvery / 2)
	}
}

// isOpen returns true if the endpoint's breaker is in the OPEN state.
func (g *Gateway) isOpen(ep string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	until, ok := g.opened[ep]
	if !ok {
		return false
	}
	if time.Now().After(until) {
		delete(g.opened, ep)
		g.failures[ep] = 0
		return false
	}
	return true
}

// noteFailure marks an endpoint as failed and opens the circuit-breaker
// once the failure count exceeds the threshold.
func (g *Gateway) noteFailure(ep string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures[ep]++
	if g.failures[ep] >= g.breakerThreshold {
		g.opened[ep] = time.Now().Add(g.breakerCooldown)
	}
}

// gatewayError is the error body every gateway peer returns on rejection.
type gatewayError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// doJSON sends the payload to the first healthy endpoint and decodes the
// response. Transport and 5xx failures rotate to the next endpoint;
// conflict rejections and other 4xx answers are final.
func (g *Gateway) doJSON(ctx context.Context, txName, path string, payload any, out any) error {
	if len(g.endpoints) == 0 {
		return fmt.Errorf("no ledger endpoints configured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	var lastErr error
	attempted := 0
	for i := 0; i < len(g.endpoints); i++ {
		ep := g.endpoints[i%len(g.endpoints)]
		if g.isOpen(ep) {
			continue
		}
		attempted++

		g.acquire()

		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, ep+path, bytes.NewReader(body))
		if reqErr != nil {
			return reqErr
		}
		req.Header.Set("Content-Type", "application/json")

		resp, doErr := g.client.Do(req)
		if doErr != nil {
			lastErr = doErr
			g.noteFailure(ep)
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("ledger gateway %s: server %d", ep, resp.StatusCode)
			g.noteFailure(ep)
			_ = utils.DrainAndClose(resp.Body)
			continue
		}

		if resp.StatusCode >= 300 {
			var ge gatewayError
			_ = json.NewDecoder(resp.Body).Decode(&ge)
			_ = utils.DrainAndClose(resp.Body)
			if isConflictCode(ge.Code) {
				return &ConflictError{TxName: txName, Code: ge.Code}
			}
			return &RemoteError{TxName: txName, Status: resp.StatusCode, Code: ge.Code, Message: ge.Message}
		}

		if out != nil {
			if decErr := json.NewDecoder(resp.Body).Decode(out); decErr != nil {
				_ = utils.DrainAndClose(resp.Body)
				lastErr = decErr
				continue
			}
		}

		if cerr := utils.DrainAndClose(resp.Body); cerr != nil {
			return cerr
		}
		return nil
	}

	// Never report success when nothing was attempted: with every breaker
	// open lastErr is nil and out was never decoded.
	if attempted == 0 {
		return fmt.Errorf("%w: all %d endpoints cooling down", ErrNoHealthyEndpoints, len(g.endpoints))
	}
	return lastErr
}
