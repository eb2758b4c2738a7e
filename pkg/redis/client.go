package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ballot-network/ballotx/pkg/db/models"
)

const (
	// reportKeyPrefix namespaces cached integrity reports.
	reportKeyPrefix = "integrity:"

	// MismatchChannel receives a Pub/Sub message whenever a reconciliation
	// run found a divergence between the ledger and the off-chain mirror.
	MismatchChannel = "integrity.mismatch"

	// DefaultReportTTL keeps cached reports around long enough to serve the
	// API between reconciliation runs without going stale for days.
	DefaultReportTTL = 30 * time.Minute
)

// Client wraps the Redis client used for integrity report caching and
// real-time mismatch notifications.
type Client struct {
	client    *redis.Client
	logger    *zap.Logger
	reportTTL time.Duration
}

// NewClient connects to Redis and verifies the connection with a ping.
func NewClient(ctx context.Context, logger *zap.Logger, addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,

		// Connection pool
		PoolSize:     10,
		MinIdleConns: 2,

		// Timeouts
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	logger.Info("Connected to Redis",
		zap.String("addr", addr),
		zap.Int("db", db))

	return &Client{
		client:    rdb,
		logger:    logger,
		reportTTL: DefaultReportTTL,
	}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// Health checks if Redis is healthy.
func (c *Client) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func reportKey(electionID string) string {
	return reportKeyPrefix + electionID
}

// StoreReport caches the latest integrity report for an election.
func (c *Client) StoreReport(ctx context.Context, report *models.IntegrityReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal integrity report: %w", err)
	}
	if err := c.client.Set(ctx, reportKey(report.ElectionID), payload, c.reportTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache integrity report: %w", err)
	}
	return nil
}

// GetReport returns the cached integrity report for an election, or nil
// when no report has been cached (or the cached one expired).
func (c *Client) GetReport(ctx context.Context, electionID string) (*models.IntegrityReport, error) {
	payload, err := c.client.Get(ctx, reportKey(electionID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cached integrity report: %w", err)
	}

	var report models.IntegrityReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, fmt.Errorf("failed to decode cached integrity report: %w", err)
	}
	return &report, nil
}

// PublishMismatch notifies subscribers that an election diverged from the
// ledger. Delivery is best-effort; reconciliation itself never depends on it.
func (c *Client) PublishMismatch(ctx context.Context, report *models.IntegrityReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal mismatch notification: %w", err)
	}
	if err := c.client.Publish(ctx, MismatchChannel, payload).Err(); err != nil {
		c.logger.Warn("Failed to publish mismatch notification",
			zap.String("election", report.ElectionID),
			zap.Error(err))
	}
	return nil
}

// Subscribe subscribes to one or more Pub/Sub channels. The caller is
// responsible for closing the returned PubSub object.
func (c *Client) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	return c.client.Subscribe(ctx, channels...)
}
