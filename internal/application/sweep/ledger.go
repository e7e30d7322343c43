package sweep

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrRunNotFound is returned when no run exists for an operation ID.
var ErrRunNotFound = errors.New("run not found")

// RunLedger persists run statistics keyed by operation ID. Entries expire:
// the ledger is an operational audit trail, not a permanent archive.
type RunLedger interface {
	// SaveRun stores the statistics of a completed run.
	SaveRun(ctx context.Context, stats *RunStats) error

	// GetRun fetches a run by operation ID. Returns ErrRunNotFound if the
	// run never existed or has expired.
	GetRun(ctx context.Context, operationID string) (*RunStats, error)

	// RecentRuns returns up to limit runs, newest first.
	RecentRuns(ctx context.Context, limit int) ([]*RunStats, error)

	// Ping checks the backing store.
	Ping(ctx context.Context) error
}

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// MemoryRunLedger keeps runs in process memory. It is the fallback when no
// external store is configured; runs do not survive a restart.
type MemoryRunLedger struct {
	mu      sync.RWMutex
	runs    map[string]memoryEntry
	ttl     time.Duration
	maxRuns int
	now     func() time.Time
}

type memoryEntry struct {
	stats   *RunStats
	savedAt time.Time
}

// NewMemoryRunLedger creates a ledger holding at most maxRuns entries, each
// expiring after ttl.
func NewMemoryRunLedger(ttl time.Duration, maxRuns int) *MemoryRunLedger {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	if maxRuns <= 0 {
		maxRuns = 100
	}
	return &MemoryRunLedger{
		runs:    make(map[string]memoryEntry),
		ttl:     ttl,
		maxRuns: maxRuns,
		now:     time.Now,
	}
}

// SaveRun stores a copy of the run statistics.
func (l *MemoryRunLedger) SaveRun(_ context.Context, stats *RunStats) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneLocked()

	cp := *stats
	l.runs[stats.OperationID] = memoryEntry{stats: &cp, savedAt: l.now()}

	if len(l.runs) > l.maxRuns {
		l.evictOldestLocked()
	}
	return nil
}

// GetRun fetches a run by operation ID.
func (l *MemoryRunLedger) GetRun(_ context.Context, operationID string) (*RunStats, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entry, ok := l.runs[operationID]
	if !ok || l.now().Sub(entry.savedAt) > l.ttl {
		return nil, ErrRunNotFound
	}

	cp := *entry.stats
	return &cp, nil
}

// RecentRuns returns up to limit runs, newest first.
func (l *MemoryRunLedger) RecentRuns(_ context.Context, limit int) ([]*RunStats, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entries := make([]memoryEntry, 0, len(l.runs))
	for _, e := range l.runs {
		if l.now().Sub(e.savedAt) <= l.ttl {
			entries = append(entries, e)
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].savedAt.After(entries[j].savedAt)
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	result := make([]*RunStats, len(entries))
	for i, e := range entries {
		cp := *e.stats
		result[i] = &cp
	}
	return result, nil
}

// Ping always succeeds for the in-memory ledger.
func (l *MemoryRunLedger) Ping(_ context.Context) error {
	return nil
}

// pruneLocked drops expired entries. Must be called with the lock held.
func (l *MemoryRunLedger) pruneLocked() {
	cutoff := l.now().Add(-l.ttl)
	for id, e := range l.runs {
		if e.savedAt.Before(cutoff) {
			delete(l.runs, id)
		}
	}
}

// evictOldestLocked removes the oldest entry. Must be called with the lock held.
func (l *MemoryRunLedger) evictOldestLocked() {
	var oldestID string
	var oldestAt time.Time
	for id, e := range l.runs {
		if oldestID == "" || e.savedAt.Before(oldestAt) {
			oldestID = id
			oldestAt = e.savedAt
		}
	}
	if oldestID != "" {
		delete(l.runs, oldestID)
	}
}
