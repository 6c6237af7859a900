package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"party-system/models"
	"party-system/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeReputation records accounting calls and can be told to fail.
type fakeReputation struct {
	mu      sync.Mutex
	calls   map[string][]string
	failErr error
}

func newFakeReputation() *fakeReputation {
	return &fakeReputation{calls: make(map[string][]string)}
}

func (f *fakeReputation) UpdateUserStatsAfterEvent(ctx context.Context, party *models.Party, attendees []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[party.ID] = append([]string(nil), attendees...)
	return f.failErr
}

func (f *fakeReputation) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeLock struct {
	held bool
}

func (l *fakeLock) TryAcquire(ctx context.Context) (bool, error) { return !l.held, nil }
func (l *fakeLock) Release(ctx context.Context)                  {}

func setupTestSweeper(t *testing.T) (*Sweeper, *store.MemoryStore, *fakeReputation) {
	t.Helper()

	memStore := store.NewMemoryStore()
	reputation := newFakeReputation()
	cfg := testConfig()
	service := NewPartyService(memStore, nil, reputation, cfg)
	sweeper := NewSweeper(memStore, service, nil, cfg)
	return sweeper, memStore, reputation
}

// endedParty seeds a party whose end time lies the given duration in the
// past, with the given confirmed guests.
func endedParty(t *testing.T, memStore *store.MemoryStore, id string, endedAgo time.Duration, guests ...string) *models.Party {
	t.Helper()

	capacity := len(guests)
	if capacity == 0 {
		capacity = 1
	}
	party, err := memStore.CreateParty(context.Background(), &models.Party{
		ID:            id,
		HostID:        "host-" + id,
		Name:          "Ended " + id,
		Visibility:    models.VisibilityPublic,
		MaxGuestCount: capacity,
		StartTime:     time.Now().Add(-endedAgo - 4*time.Hour),
		EndTime:       time.Now().Add(-endedAgo),
		ActiveUsers:   guests,
	})
	require.NoError(t, err)
	return party
}

func TestSweeper_Sweep_FinalizesOnce(t *testing.T) {
	sweeper, memStore, reputation := setupTestSweeper(t)
	ctx := context.Background()
	party := endedParty(t, memStore, "p1", 2*time.Hour, "u1", "u2")

	sweeper.Sweep(ctx)

	assert.Equal(t, []string{"u1", "u2"}, reputation.calls[party.ID])

	processed, err := memStore.GetParty(ctx, party.ID)
	require.NoError(t, err)
	assert.True(t, processed.StatsProcessed)
	assert.NotNil(t, processed.StatsProcessedAt)
	assert.Empty(t, processed.StatsError)

	// A second pass finds nothing to do.
	sweeper.Sweep(ctx)
	assert.Equal(t, 1, reputation.callCount())

	lastRunAt, lastSwept := sweeper.Status()
	assert.False(t, lastRunAt.IsZero())
	assert.Equal(t, 0, lastSwept)
}

func TestSweeper_Sweep_AgeWindow(t *testing.T) {
	sweeper, memStore, reputation := setupTestSweeper(t)
	ctx := context.Background()

	// Too fresh: inside the minimum age grace period.
	endedParty(t, memStore, "fresh", 10*time.Minute, "u1")
	// Too old: outside the maximum age window.
	endedParty(t, memStore, "stale", 72*time.Hour, "u2")
	// In the window.
	eligible := endedParty(t, memStore, "eligible", 3*time.Hour, "u3")

	sweeper.Sweep(ctx)

	assert.Equal(t, 1, reputation.callCount())
	assert.Contains(t, reputation.calls, eligible.ID)
}

func TestSweeper_Sweep_AccountingErrorStillMarksProcessed(t *testing.T) {
	sweeper, memStore, reputation := setupTestSweeper(t)
	ctx := context.Background()
	reputation.failErr = errors.New("stats backend down")
	party := endedParty(t, memStore, "p1", 2*time.Hour, "u1")

	sweeper.Sweep(ctx)

	// The party is still marked processed so the sweep does not retry it
	// forever; the failure is recorded on the record instead.
	processed, err := memStore.GetParty(ctx, party.ID)
	require.NoError(t, err)
	assert.True(t, processed.StatsProcessed)
	assert.Equal(t, "stats backend down", processed.StatsError)

	sweeper.Sweep(ctx)
	assert.Equal(t, 1, reputation.callCount())
}

func TestSweeper_Sweep_NoConfirmedGuests(t *testing.T) {
	sweeper, memStore, reputation := setupTestSweeper(t)
	ctx := context.Background()
	party := endedParty(t, memStore, "empty", 2*time.Hour)

	sweeper.Sweep(ctx)

	// No attendees means no accounting call, but the party is closed out.
	assert.Equal(t, 0, reputation.callCount())
	processed, err := memStore.GetParty(ctx, party.ID)
	require.NoError(t, err)
	assert.True(t, processed.StatsProcessed)
}

func TestSweeper_Sweep_BatchLimit(t *testing.T) {
	memStore := store.NewMemoryStore()
	reputation := newFakeReputation()
	cfg := testConfig()
	cfg.SweepBatchSize = 1
	service := NewPartyService(memStore, nil, reputation, cfg)
	sweeper := NewSweeper(memStore, service, nil, cfg)
	ctx := context.Background()

	endedParty(t, memStore, "p1", 3*time.Hour, "u1")
	endedParty(t, memStore, "p2", 2*time.Hour, "u2")

	sweeper.Sweep(ctx)
	assert.Equal(t, 1, reputation.callCount())

	// The next pass drains the rest.
	sweeper.Sweep(ctx)
	assert.Equal(t, 2, reputation.callCount())
}

// flakyStore fails reads for one party id, leaving the rest intact.
type flakyStore struct {
	*store.MemoryStore
	failID string
}

func (s *flakyStore) GetParty(ctx context.Context, partyID string) (*models.Party, error) {
	if partyID == s.failID {
		return nil, errors.New("read failed")
	}
	return s.MemoryStore.GetParty(ctx, partyID)
}

func TestSweeper_Sweep_PartialFailure(t *testing.T) {
	memStore := store.NewMemoryStore()
	flaky := &flakyStore{MemoryStore: memStore, failID: "broken"}
	reputation := newFakeReputation()
	cfg := testConfig()
	service := NewPartyService(flaky, nil, reputation, cfg)
	sweeper := NewSweeper(flaky, service, nil, cfg)
	ctx := context.Background()

	endedParty(t, memStore, "broken", 3*time.Hour, "u1")
	healthy := endedParty(t, memStore, "healthy", 2*time.Hour, "u2")

	sweeper.Sweep(ctx)

	// The healthy party is finalized even though its batch-mate failed.
	assert.Equal(t, 1, reputation.callCount())
	assert.Contains(t, reputation.calls, healthy.ID)

	processed, err := memStore.GetParty(ctx, healthy.ID)
	require.NoError(t, err)
	assert.True(t, processed.StatsProcessed)

	unprocessed, err := memStore.GetParty(ctx, "broken")
	require.NoError(t, err)
	assert.False(t, unprocessed.StatsProcessed)

	_, lastSwept := sweeper.Status()
	assert.Equal(t, 1, lastSwept)
}

func TestSweeper_Sweep_SkipsWhenLockHeldElsewhere(t *testing.T) {
	memStore := store.NewMemoryStore()
	reputation := newFakeReputation()
	cfg := testConfig()
	service := NewPartyService(memStore, nil, reputation, cfg)
	sweeper := NewSweeper(memStore, service, &fakeLock{held: true}, cfg)
	ctx := context.Background()

	endedParty(t, memStore, "p1", 2*time.Hour, "u1")

	sweeper.Sweep(ctx)

	assert.Equal(t, 0, reputation.callCount())
	party, err := memStore.GetParty(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, party.StatsProcessed)
}

func TestSweeper_StartAndShutdown(t *testing.T) {
	memStore := store.NewMemoryStore()
	reputation := newFakeReputation()
	cfg := testConfig()
	cfg.SweepInitialDelay = 10 * time.Millisecond
	cfg.SweepInterval = time.Hour
	service := NewPartyService(memStore, nil, reputation, cfg)
	sweeper := NewSweeper(memStore, service, nil, cfg)

	endedParty(t, memStore, "p1", 2*time.Hour, "u1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeper.Start(ctx)

	assert.Eventually(t, func() bool {
		return reputation.callCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	sweeper.Shutdown()
	// Shutdown twice is safe.
	sweeper.Shutdown()
}
