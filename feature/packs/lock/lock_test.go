package lock

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"packsync/feature/packs/models"
	"packsync/feature/packs/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memStore is an in-memory Store good enough to exercise lease and version
// semantics without a database.
type memStore struct {
	mu    sync.Mutex
	packs map[string]*models.SeatPack

	saveConflicts int // fail this many saves with a version conflict
	saves         int
}

func newMemStore(packs ...*models.SeatPack) *memStore {
	s := &memStore{packs: map[string]*models.SeatPack{}}
	for _, p := range packs {
		s.packs[p.PackID] = p
	}
	return s
}

func (s *memStore) Get(_ context.Context, packID string) (*models.SeatPack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.packs[packID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *memStore) AcquireLease(_ context.Context, packID, holderID string) (*models.SeatPack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.packs[packID]
	if !ok {
		return nil, nil
	}
	if p.LockedBy != nil && *p.LockedBy != holderID {
		return nil, nil
	}
	now := time.Now().UTC()
	p.LockedBy = &holderID
	p.LockedAt = &now
	cp := *p
	return &cp, nil
}

func (s *memStore) ReleaseLease(_ context.Context, packID, holderID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.packs[packID]
	if !ok || p.LockedBy == nil || *p.LockedBy != holderID {
		return false, nil
	}
	p.LockedBy = nil
	p.LockedAt = nil
	return true, nil
}

func (s *memStore) SweepStaleLeases(_ context.Context, maxAge time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().UTC().Add(-maxAge)
	var n int64
	for _, p := range s.packs {
		if p.LockedBy != nil && p.LockedAt != nil && p.LockedAt.Before(cutoff) {
			p.LockedBy = nil
			p.LockedAt = nil
			n++
		}
	}
	return n, nil
}

func (s *memStore) ActiveLeaseCount(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, p := range s.packs {
		if p.LockedBy != nil {
			n++
		}
	}
	return n, nil
}

func (s *memStore) StaleLeases(_ context.Context, maxAge time.Duration) ([]*models.SeatPack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().UTC().Add(-maxAge)
	var out []*models.SeatPack
	for _, p := range s.packs {
		if p.LockedBy != nil && p.LockedAt != nil && p.LockedAt.Before(cutoff) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memStore) SaveWithVersion(_ context.Context, pack *models.SeatPack) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveConflicts > 0 {
		s.saveConflicts--
		return fmt.Errorf("pack %s: %w", pack.PackID, repository.ErrVersionConflict)
	}
	stored, ok := s.packs[pack.PackID]
	if !ok || stored.Version != pack.Version {
		return fmt.Errorf("pack %s: %w", pack.PackID, repository.ErrVersionConflict)
	}
	cp := *pack
	cp.Version = pack.Version + 1
	s.packs[pack.PackID] = &cp
	pack.Version = cp.Version
	return nil
}

func testPack() *models.SeatPack {
	return &models.SeatPack{
		PackID:     "tm_pk_1",
		SeatKeys:   models.StringList{"A-1", "A-2"},
		PackSize:   2,
		PackStatus: models.PackStatusActive,
		POSStatus:  models.POSStatusPending,
		PackState:  models.PackStateCreate,
	}
}

func newManager(store Store) *Manager {
	return NewManager(store, Config{RetryBackoff: time.Millisecond}, zap.NewNop())
}

func TestAcquireRelease(t *testing.T) {
	store := newMemStore(testPack())
	m := newManager(store)
	ctx := context.Background()

	pack, err := m.Acquire(ctx, "tm_pk_1", "worker-a")
	require.NoError(t, err)
	require.NotNil(t, pack)

	_, err = m.Acquire(ctx, "tm_pk_1", "worker-b")
	assert.ErrorIs(t, err, ErrLeaseHeld)

	// Same holder may re-acquire
	again, err := m.Acquire(ctx, "tm_pk_1", "worker-a")
	require.NoError(t, err)
	assert.NotNil(t, again)

	assert.True(t, m.Release(ctx, "tm_pk_1", "worker-a"))
	assert.False(t, m.Release(ctx, "tm_pk_1", "worker-a"), "second release is a no-op")

	pack, err = m.Acquire(ctx, "tm_pk_1", "worker-b")
	require.NoError(t, err)
	assert.NotNil(t, pack)
}

func TestAcquireMissingPack(t *testing.T) {
	m := newManager(newMemStore())

	pack, err := m.Acquire(context.Background(), "tm_pk_missing", "worker-a")
	assert.NoError(t, err)
	assert.Nil(t, pack)
}

func TestAcquireExclusivityUnderConcurrency(t *testing.T) {
	store := newMemStore(testPack())
	m := newManager(store)

	const holders = 8
	var wins int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < holders; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			pack, err := m.Acquire(context.Background(), "tm_pk_1", fmt.Sprintf("worker-%d", n))
			if err == nil && pack != nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, wins, "exactly one holder wins the lease")
}

func TestSweepStale(t *testing.T) {
	p := testPack()
	holder := "dead-worker"
	past := time.Now().UTC().Add(-2 * time.Hour)
	p.LockedBy = &holder
	p.LockedAt = &past

	store := newMemStore(p)
	m := NewManager(store, Config{StaleAge: 30 * time.Minute}, zap.NewNop())

	cleared, err := m.SweepStale(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, cleared)

	// Lease is free again
	pack, err := m.Acquire(context.Background(), "tm_pk_1", "worker-a")
	require.NoError(t, err)
	assert.NotNil(t, pack)
}

func TestHealth(t *testing.T) {
	fresh := testPack()
	holder := "worker-a"
	now := time.Now().UTC()
	fresh.LockedBy = &holder
	fresh.LockedAt = &now

	stale := testPack()
	stale.PackID = "tm_pk_2"
	dead := "dead-worker"
	past := now.Add(-2 * time.Hour)
	stale.LockedBy = &dead
	stale.LockedAt = &past

	m := NewManager(newMemStore(fresh, stale), Config{StaleAge: 30 * time.Minute}, zap.NewNop())

	health, err := m.Health(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, health.ActiveLeases)
	assert.EqualValues(t, 1, health.StaleLeases)
}

func TestSafeUpdate(t *testing.T) {
	t.Run("AppliesAndReleases", func(t *testing.T) {
		store := newMemStore(testPack())
		m := newManager(store)

		updated, err := m.SafeUpdate(context.Background(), "tm_pk_1", "worker-a", func(p *models.SeatPack) error {
			p.SyncError = "boom"
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, "boom", updated.SyncError)
		assert.Equal(t, 1, updated.Version)

		stored, _ := store.Get(context.Background(), "tm_pk_1")
		assert.Nil(t, stored.LockedBy, "lease released after update")
	})

	t.Run("RetriesVersionConflict", func(t *testing.T) {
		store := newMemStore(testPack())
		store.saveConflicts = 2
		m := newManager(store)

		_, err := m.SafeUpdate(context.Background(), "tm_pk_1", "worker-a", func(p *models.SeatPack) error {
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, store.saves, "two conflicts then success")
	})

	t.Run("GivesUpAfterBoundedRetries", func(t *testing.T) {
		store := newMemStore(testPack())
		store.saveConflicts = 10
		m := newManager(store)

		_, err := m.SafeUpdate(context.Background(), "tm_pk_1", "worker-a", func(p *models.SeatPack) error {
			return nil
		})
		assert.ErrorIs(t, err, repository.ErrVersionConflict)
		assert.Equal(t, 3, store.saves)
	})

	t.Run("RejectsInvalidResult", func(t *testing.T) {
		store := newMemStore(testPack())
		m := newManager(store)

		_, err := m.SafeUpdate(context.Background(), "tm_pk_1", "worker-a", func(p *models.SeatPack) error {
			p.PackSize = 99
			return nil
		})
		assert.ErrorContains(t, err, "does not match")
	})

	t.Run("HeldElsewhere", func(t *testing.T) {
		store := newMemStore(testPack())
		m := newManager(store)

		_, err := m.Acquire(context.Background(), "tm_pk_1", "other")
		require.NoError(t, err)

		_, err = m.SafeUpdate(context.Background(), "tm_pk_1", "worker-a", func(p *models.SeatPack) error {
			return nil
		})
		assert.ErrorIs(t, err, ErrLeaseHeld)
	})
}
