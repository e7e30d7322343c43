package sweep

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memberhub/member-records/internal/domain/education"
	"github.com/memberhub/member-records/pkg/timeutil"
)

// today is the fixed reference date for every test: 15 March 2026.
var today = timeutil.Date(2026, int(time.March), 15)

// expiryEndOfSeptember is a membership expiry still in the future on today.
var expiryEndOfSeptember = timeutil.Date(2026, int(time.September), 30)

// ══════════════════════════════════════════════════════════════════════════════
// FAKES
// ══════════════════════════════════════════════════════════════════════════════

type fakeStore struct {
	mu          sync.Mutex
	records     map[education.RecordID]*education.Record
	failUpdates map[education.RecordID]error
	fetchErr    error
	updateCalls int
}

func newFakeStore(records ...*education.Record) *fakeStore {
	store := &fakeStore{
		records:     make(map[education.RecordID]*education.Record),
		failUpdates: make(map[education.RecordID]error),
	}
	for _, r := range records {
		store.records[r.ID] = r
	}
	return store
}

func (f *fakeStore) FindRecordsByCategory(_ context.Context, category education.Category) ([]*education.Record, []error, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fetchErr != nil {
		return nil, nil, f.fetchErr
	}

	var result []*education.Record
	for _, r := range f.records {
		if r.Category == category {
			cp := *r
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil, nil
}

func (f *fakeStore) UpdateRecordCategory(_ context.Context, id education.RecordID, category education.Category) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.updateCalls++
	if err, ok := f.failUpdates[id]; ok {
		return err
	}
	if r, ok := f.records[id]; ok {
		r.Category = category
	}
	return nil
}

func (f *fakeStore) CountRecordsByCategory(_ context.Context, category education.Category) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fetchErr != nil {
		return 0, f.fetchErr
	}
	count := 0
	for _, r := range f.records {
		if r.Category == category {
			count++
		}
	}
	return count, nil
}

type fakeExpiry struct {
	expiry *time.Time
	err    error
}

func (f *fakeExpiry) CurrentMembershipExpiry(context.Context) (*time.Time, error) {
	return f.expiry, f.err
}

func record(id string, year string, category education.Category) *education.Record {
	return &education.Record{
		ID:             education.RecordID(id),
		SubjectID:      education.SubjectBusinessID("subject-" + id),
		GraduationYear: education.GraduationYear(year),
		Category:       category,
	}
}

func newTestSweeper(store *fakeStore, expiry *fakeExpiry, extra ...func(*Config)) (*Sweeper, *int) {
	sleeps := new(int)
	config := Config{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		sleep: func(context.Context, time.Duration) error {
			*sleeps++
			return nil
		},
		now: func() time.Time { return today },
	}
	for _, fn := range extra {
		fn(&config)
	}
	return NewSweeper(store, expiry, NewMemoryRunLedger(time.Hour, 10), config), sleeps
}

// ══════════════════════════════════════════════════════════════════════════════
// RUN TESTS
// ══════════════════════════════════════════════════════════════════════════════

func TestSweeper_Run_Transitions(t *testing.T) {
	store := newFakeStore(
		record("r1", "2027", education.CategoryStudent),        // future year, stays
		record("r2", "2026", education.CategoryStudent),        // current year + expiry → NEW_GRADUATED
		record("r3", "2025", education.CategoryStudent),        // last year + expiry → NEW_GRADUATED
		record("r4", "2024", education.CategoryNewGraduated),   // too old → GRADUATED
		record("r5", "2020", education.CategoryStudent),        // stale student → GRADUATED directly
		record("r6", "2026", education.CategoryNewGraduated),   // already correct, skipped
		record("r7", "1960s", education.CategoryNewGraduated),  // decade bucket → GRADUATED
	)
	sweeper, _ := newTestSweeper(store, &fakeExpiry{expiry: &expiryEndOfSeptember})

	stats, err := sweeper.Run(context.Background(), "test")
	require.NoError(t, err)

	assert.Equal(t, 7, stats.TotalProcessed)
	assert.Equal(t, 2, stats.StudentsToNewGrad)
	assert.Equal(t, 2, stats.NewGradToGraduated)
	assert.Equal(t, 3, stats.GraduatedRemaining) // r4, r5, r7
	assert.Equal(t, 2, stats.Skipped)            // r1, r6
	assert.Equal(t, 0, stats.Errors)
	assert.False(t, stats.Truncated)
	assert.Equal(t, "test", stats.Reason)
	assert.NotEmpty(t, stats.OperationID)
}

func TestSweeper_Run_ConvergesOnSecondRun(t *testing.T) {
	store := newFakeStore(
		record("r1", "2026", education.CategoryStudent),
		record("r2", "2024", education.CategoryNewGraduated),
		record("r3", "2019", education.CategoryStudent),
	)
	sweeper, _ := newTestSweeper(store, &fakeExpiry{expiry: &expiryEndOfSeptember})

	first, err := sweeper.Run(context.Background(), "first")
	require.NoError(t, err)
	assert.Equal(t, 3, first.Transitions())

	second, err := sweeper.Run(context.Background(), "second")
	require.NoError(t, err)
	assert.Equal(t, 0, second.Transitions())
	assert.Equal(t, 0, second.Errors)

	// GRADUATED records are terminal: they drop out of the candidate set.
	assert.Equal(t, 1, second.TotalProcessed)
	assert.Equal(t, 1, second.Skipped)
}

func TestSweeper_Run_PerRecordFailureDoesNotAbort(t *testing.T) {
	store := newFakeStore(
		record("r1", "2026", education.CategoryStudent),
		record("r2", "2026", education.CategoryStudent),
		record("r3", "2026", education.CategoryStudent),
	)
	store.failUpdates["r2"] = errors.New("store rejected the write")

	sweeper, _ := newTestSweeper(store, &fakeExpiry{expiry: &expiryEndOfSeptember})

	stats, err := sweeper.Run(context.Background(), "test")
	require.NoError(t, err)

	assert.Equal(t, 3, stats.TotalProcessed)
	assert.Equal(t, 2, stats.StudentsToNewGrad)
	assert.Equal(t, 1, stats.Errors)
}

func TestSweeper_Run_BatchingWith120Candidates(t *testing.T) {
	var records []*education.Record
	for i := 0; i < 120; i++ {
		records = append(records, record(fmt.Sprintf("r%03d", i), "2020", education.CategoryStudent))
	}
	store := newFakeStore(records...)

	sweeper, sleeps := newTestSweeper(store, &fakeExpiry{})

	stats, err := sweeper.Run(context.Background(), "test")
	require.NoError(t, err)

	// 120 candidates → batches of 50/50/20 → exactly 2 inter-batch delays.
	assert.Equal(t, 120, stats.TotalProcessed)
	assert.Equal(t, 120, stats.GraduatedRemaining)
	assert.Equal(t, 2, *sleeps)
}

func TestSweeper_Run_CancellationTruncates(t *testing.T) {
	var records []*education.Record
	for i := 0; i < 120; i++ {
		records = append(records, record(fmt.Sprintf("r%03d", i), "2020", education.CategoryStudent))
	}
	store := newFakeStore(records...)

	ctx, cancel := context.WithCancel(context.Background())

	sweeper, _ := newTestSweeper(store, &fakeExpiry{}, func(c *Config) {
		c.sleep = func(ctx context.Context, _ time.Duration) error {
			cancel() // cancellation arrives while waiting between batches
			return ctx.Err()
		}
	})

	stats, err := sweeper.Run(ctx, "test")
	require.NoError(t, err)

	assert.True(t, stats.Truncated)
	assert.Equal(t, 50, stats.TotalProcessed) // only the first batch ran
}

func TestSweeper_Run_SingleFlight(t *testing.T) {
	var records []*education.Record
	for i := 0; i < 60; i++ {
		records = append(records, record(fmt.Sprintf("r%02d", i), "2020", education.CategoryStudent))
	}
	store := newFakeStore(records...)

	entered := make(chan struct{})
	release := make(chan struct{})

	sweeper, _ := newTestSweeper(store, &fakeExpiry{}, func(c *Config) {
		c.sleep = func(context.Context, time.Duration) error {
			close(entered)
			<-release
			return nil
		}
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := sweeper.Run(context.Background(), "long")
		assert.NoError(t, err)
	}()

	<-entered

	_, err := sweeper.Run(context.Background(), "concurrent")
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(release)
	<-done

	// The gate is free again after the first run finishes.
	_, err = sweeper.Run(context.Background(), "after")
	assert.NoError(t, err)
}

func TestSweeper_Run_FetchFailureAbortsRun(t *testing.T) {
	store := newFakeStore()
	store.fetchErr = errors.New("store unreachable")

	sweeper, _ := newTestSweeper(store, &fakeExpiry{})

	stats, err := sweeper.Run(context.Background(), "test")
	require.Error(t, err)
	assert.Nil(t, stats)
	assert.Equal(t, 0, store.updateCalls)
}

func TestSweeper_Run_UnrecognizedYearCountsWarning(t *testing.T) {
	store := newFakeStore(
		record("r1", "not-a-year", education.CategoryStudent),
	)
	sweeper, _ := newTestSweeper(store, &fakeExpiry{})

	stats, err := sweeper.Run(context.Background(), "test")
	require.NoError(t, err)

	// Fallback year == current year with no expiry date → GRADUATED.
	assert.Equal(t, 1, stats.Warnings)
	assert.Equal(t, 1, stats.GraduatedRemaining)
}

func TestSweeper_Run_ExpiryFailureTreatedAsAbsent(t *testing.T) {
	store := newFakeStore(
		record("r1", "2026", education.CategoryStudent),
	)
	sweeper, _ := newTestSweeper(store, &fakeExpiry{err: errors.New("settings API down")})

	stats, err := sweeper.Run(context.Background(), "test")
	require.NoError(t, err)

	// Without an expiry date rule 2 cannot match: the record graduates.
	assert.Equal(t, 1, stats.GraduatedRemaining)
	assert.Equal(t, 0, stats.StudentsToNewGrad)
}

func TestSweeper_Run_PersistsToLedgerAndFiresHook(t *testing.T) {
	store := newFakeStore(
		record("r1", "2026", education.CategoryStudent),
	)

	var changes []education.CategoryChanged
	sweeper, _ := newTestSweeper(store, &fakeExpiry{expiry: &expiryEndOfSeptember}, func(c *Config) {
		c.OnCategoryChanged = func(_ context.Context, change education.CategoryChanged) {
			changes = append(changes, change)
		}
	})

	stats, err := sweeper.Run(context.Background(), "test")
	require.NoError(t, err)

	saved, err := sweeper.Ledger().GetRun(context.Background(), stats.OperationID)
	require.NoError(t, err)
	assert.Equal(t, stats.OperationID, saved.OperationID)
	assert.Equal(t, stats.StudentsToNewGrad, saved.StudentsToNewGrad)

	require.Len(t, changes, 1)
	assert.Equal(t, education.RecordID("r1"), changes[0].RecordID)
	assert.Equal(t, education.CategoryStudent, changes[0].OldCategory)
	assert.Equal(t, education.CategoryNewGraduated, changes[0].NewCategory)
	assert.Equal(t, "test", changes[0].Reason)
}

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER TESTS
// ══════════════════════════════════════════════════════════════════════════════

func TestMemoryRunLedger_SaveGetRecent(t *testing.T) {
	ledger := NewMemoryRunLedger(time.Hour, 10)
	ctx := context.Background()

	clock := today
	ledger.now = func() time.Time { return clock }

	for i := 0; i < 3; i++ {
		clock = clock.Add(time.Minute)
		err := ledger.SaveRun(ctx, &RunStats{OperationID: fmt.Sprintf("op-%d", i), Reason: "test"})
		require.NoError(t, err)
	}

	run, err := ledger.GetRun(ctx, "op-1")
	require.NoError(t, err)
	assert.Equal(t, "op-1", run.OperationID)

	recent, err := ledger.RecentRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "op-2", recent[0].OperationID)
	assert.Equal(t, "op-1", recent[1].OperationID)

	_, err = ledger.GetRun(ctx, "op-unknown")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestMemoryRunLedger_TTLExpiry(t *testing.T) {
	ledger := NewMemoryRunLedger(time.Hour, 10)
	ctx := context.Background()

	clock := today
	ledger.now = func() time.Time { return clock }

	require.NoError(t, ledger.SaveRun(ctx, &RunStats{OperationID: "op-old"}))

	clock = clock.Add(2 * time.Hour)

	_, err := ledger.GetRun(ctx, "op-old")
	assert.ErrorIs(t, err, ErrRunNotFound)

	recent, err := ledger.RecentRuns(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestMemoryRunLedger_EvictsOldestOverCapacity(t *testing.T) {
	ledger := NewMemoryRunLedger(time.Hour, 2)
	ctx := context.Background()

	clock := today
	ledger.now = func() time.Time { return clock }

	for i := 0; i < 3; i++ {
		clock = clock.Add(time.Minute)
		require.NoError(t, ledger.SaveRun(ctx, &RunStats{OperationID: fmt.Sprintf("op-%d", i)}))
	}

	_, err := ledger.GetRun(ctx, "op-0")
	assert.ErrorIs(t, err, ErrRunNotFound)

	_, err = ledger.GetRun(ctx, "op-2")
	assert.NoError(t, err)
}

// ══════════════════════════════════════════════════════════════════════════════
// DISTRIBUTION TESTS
// ══════════════════════════════════════════════════════════════════════════════

func TestDistributionReader_Read(t *testing.T) {
	store := newFakeStore(
		record("r1", "2027", education.CategoryStudent),
		record("r2", "2028", education.CategoryStudent),
		record("r3", "2026", education.CategoryNewGraduated),
		record("r4", "2010", education.CategoryGraduated),
	)

	reader := NewDistributionReader(store)

	dist, err := reader.Read(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, dist.Students)
	assert.Equal(t, 1, dist.NewGraduated)
	assert.Equal(t, 1, dist.Graduated)
	assert.Equal(t, 4, dist.Total)
	assert.InDelta(t, 50.0, dist.Percentages.Students, 0.01)
	assert.InDelta(t, 25.0, dist.Percentages.NewGraduated, 0.01)
	assert.False(t, dist.LastUpdated.IsZero())
}

func TestDistributionReader_ReadFailure(t *testing.T) {
	store := newFakeStore()
	store.fetchErr = errors.New("store unreachable")

	reader := NewDistributionReader(store)

	_, err := reader.Read(context.Background())
	require.Error(t, err)
}
