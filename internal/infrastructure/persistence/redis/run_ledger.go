// Package redis implements the Redis-backed run ledger: every convergence
// run is stored keyed by operation ID with a TTL, plus a capped recent-run
// list for the control surface.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/memberhub/member-records/internal/application/sweep"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config holds Redis connection configuration.
type Config struct {
	// Host is the Redis server hostname.
	Host string

	// Port is the Redis server port.
	Port int

	// Password is the Redis authentication password (empty if no auth).
	Password string

	// DB is the Redis database number (0-15).
	DB int

	// PoolSize is the maximum number of socket connections.
	PoolSize int

	// MaxRetries is the maximum number of retries before giving up.
	MaxRetries int

	// DialTimeout is the timeout for establishing new connections.
	DialTimeout time.Duration

	// RunTTL is how long each run entry lives.
	RunTTL time.Duration

	// MaxRecent caps the recent-run list.
	MaxRecent int
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Host:        "localhost",
		Port:        6379,
		DB:          0,
		PoolSize:    10,
		MaxRetries:  3,
		DialTimeout: 5 * time.Second,
		RunTTL:      7 * 24 * time.Hour,
		MaxRecent:   100,
	}
}

// Addr returns the Redis address in "host:port" format.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS AND KEYS
// ══════════════════════════════════════════════════════════════════════════════

// ErrLedgerConnection is returned when the Redis connection fails.
var ErrLedgerConnection = errors.New("run ledger: connection failed")

const (
	// keyPrefixRun namespaces run entries.
	keyPrefixRun = "run:"

	// keyRecentRuns is the list of recent operation IDs, newest first.
	keyRecentRuns = "runs:recent"
)

// runKey generates the storage key for an operation ID.
func runKey(operationID string) string {
	return keyPrefixRun + operationID
}

// ══════════════════════════════════════════════════════════════════════════════
// RUN LEDGER
// ══════════════════════════════════════════════════════════════════════════════

// RunLedger stores convergence runs in Redis with TTL-based expiry.
type RunLedger struct {
	client *redis.Client
	config Config
}

// NewRunLedger creates a RunLedger and verifies the connection.
func NewRunLedger(cfg Config) (*RunLedger, error) {
	if cfg.RunTTL <= 0 {
		cfg.RunTTL = 7 * 24 * time.Hour
	}
	if cfg.MaxRecent <= 0 {
		cfg.MaxRecent = 100
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr(),
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		MaxRetries:  cfg.MaxRetries,
		DialTimeout: cfg.DialTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLedgerConnection, err)
	}

	return &RunLedger{client: client, config: cfg}, nil
}

// SaveRun stores the run under its operation ID and pushes it onto the
// recent-run list, trimming the list to its cap.
func (l *RunLedger) SaveRun(ctx context.Context, stats *sweep.RunStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshal run %s: %w", stats.OperationID, err)
	}

	pipe := l.client.TxPipeline()
	pipe.Set(ctx, runKey(stats.OperationID), data, l.config.RunTTL)
	pipe.LPush(ctx, keyRecentRuns, stats.OperationID)
	pipe.LTrim(ctx, keyRecentRuns, 0, int64(l.config.MaxRecent-1))
	pipe.Expire(ctx, keyRecentRuns, l.config.RunTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save run %s: %w", stats.OperationID, err)
	}
	return nil
}

// GetRun fetches a run by operation ID.
func (l *RunLedger) GetRun(ctx context.Context, operationID string) (*sweep.RunStats, error) {
	data, err := l.client.Get(ctx, runKey(operationID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, sweep.ErrRunNotFound
		}
		return nil, fmt.Errorf("get run %s: %w", operationID, err)
	}

	var stats sweep.RunStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("unmarshal run %s: %w", operationID, err)
	}
	return &stats, nil
}

// RecentRuns returns up to limit runs, newest first. IDs whose entries have
// already expired are skipped silently.
func (l *RunLedger) RecentRuns(ctx context.Context, limit int) ([]*sweep.RunStats, error) {
	if limit <= 0 || limit > l.config.MaxRecent {
		limit = l.config.MaxRecent
	}

	ids, err := l.client.LRange(ctx, keyRecentRuns, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list recent runs: %w", err)
	}

	runs := make([]*sweep.RunStats, 0, len(ids))
	for _, id := range ids {
		stats, err := l.GetRun(ctx, id)
		if errors.Is(err, sweep.ErrRunNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		runs = append(runs, stats)
	}
	return runs, nil
}

// Ping checks if Redis is reachable.
func (l *RunLedger) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (l *RunLedger) Close() error {
	return l.client.Close()
}
