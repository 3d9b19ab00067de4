package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"packsync/feature/packs/models"
	"packsync/feature/packs/repository"

	"go.uber.org/zap"
)

// ErrLeaseHeld is returned when another holder owns the pack's lease.
var ErrLeaseHeld = errors.New("pack lease held by another holder")

// Store is the slice of the pack repository the lock manager needs.
type Store interface {
	Get(ctx context.Context, packID string) (*models.SeatPack, error)
	AcquireLease(ctx context.Context, packID, holderID string) (*models.SeatPack, error)
	ReleaseLease(ctx context.Context, packID, holderID string) (bool, error)
	SweepStaleLeases(ctx context.Context, maxAge time.Duration) (int64, error)
	ActiveLeaseCount(ctx context.Context) (int64, error)
	StaleLeases(ctx context.Context, maxAge time.Duration) ([]*models.SeatPack, error)
	SaveWithVersion(ctx context.Context, pack *models.SeatPack) error
}

// Config holds the lock manager tunables.
type Config struct {
	// StaleAge is how old a lease must be before the sweep clears it.
	StaleAge time.Duration
	// MaxSaveRetries bounds optimistic-save retries inside SafeUpdate.
	MaxSaveRetries int
	// RetryBackoff is the initial backoff between save retries; it doubles
	// per attempt.
	RetryBackoff time.Duration
}

func (c *Config) applyDefaults() {
	if c.StaleAge <= 0 {
		c.StaleAge = 30 * time.Minute
	}
	if c.MaxSaveRetries <= 0 {
		c.MaxSaveRetries = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 100 * time.Millisecond
	}
}

// Health reports lease counts as an operational signal.
type Health struct {
	// ActiveLeases counts currently held leases.
	ActiveLeases int64 `json:"active_leases"`

	// StaleLeases counts leases past the stale age, awaiting sweep.
	StaleLeases int64 `json:"stale_leases"`
}

// Manager grants exclusive per-pack leases and applies lease-guarded,
// version-checked writes.
type Manager struct {
	store Store
	cfg   Config
	log   *zap.Logger
}

// NewManager creates a Manager.
func NewManager(store Store, cfg Config, log *zap.Logger) *Manager {
	cfg.applyDefaults()
	return &Manager{store: store, cfg: cfg, log: log}
}

// Acquire claims the pack for holderID. It returns ErrLeaseHeld when another
// holder owns it, and nil pack when the pack does not exist.
func (m *Manager) Acquire(ctx context.Context, packID, holderID string) (*models.SeatPack, error) {
	pack, err := m.store.AcquireLease(ctx, packID, holderID)
	if err != nil {
		return nil, err
	}
	if pack == nil {
		// Distinguish contention from absence
		existing, err := m.store.Get(ctx, packID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("pack %s: %w", packID, ErrLeaseHeld)
	}
	return pack, nil
}

// Release frees the pack if holderID still owns it.
func (m *Manager) Release(ctx context.Context, packID, holderID string) bool {
	released, err := m.store.ReleaseLease(ctx, packID, holderID)
	if err != nil {
		m.log.Warn("Failed to release pack lease",
			zap.String("pack_id", packID),
			zap.String("holder_id", holderID),
			zap.Error(err),
		)
		return false
	}
	return released
}

// SweepStale clears leases older than the configured stale age. The cleared
// count is logged as a health signal; anything nonzero means a worker died
// mid-operation.
func (m *Manager) SweepStale(ctx context.Context) (int64, error) {
	cleared, err := m.store.SweepStaleLeases(ctx, m.cfg.StaleAge)
	if err != nil {
		return 0, err
	}
	if cleared > 0 {
		m.log.Warn("Cleared stale pack leases", zap.Int64("count", cleared))
	}
	return cleared, nil
}

// Health collects current lease counters.
func (m *Manager) Health(ctx context.Context) (Health, error) {
	active, err := m.store.ActiveLeaseCount(ctx)
	if err != nil {
		return Health{}, err
	}
	stale, err := m.store.StaleLeases(ctx, m.cfg.StaleAge)
	if err != nil {
		return Health{}, err
	}
	return Health{ActiveLeases: active, StaleLeases: int64(len(stale))}, nil
}

// SafeUpdate acquires the pack's lease, applies update to a fresh copy and
// persists it under the version check, retrying version conflicts with
// exponential backoff. The lease is always released before returning.
func (m *Manager) SafeUpdate(ctx context.Context, packID, holderID string, update func(*models.SeatPack) error) (*models.SeatPack, error) {
	pack, err := m.Acquire(ctx, packID, holderID)
	if err != nil {
		return nil, err
	}
	if pack == nil {
		return nil, fmt.Errorf("pack %s not found", packID)
	}
	defer m.Release(ctx, packID, holderID)

	backoff := m.cfg.RetryBackoff
	for attempt := 0; ; attempt++ {
		if err := update(pack); err != nil {
			return nil, err
		}
		if err := pack.Validate(); err != nil {
			return nil, err
		}

		err := m.store.SaveWithVersion(ctx, pack)
		if err == nil {
			return pack, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) || attempt >= m.cfg.MaxSaveRetries-1 {
			return nil, err
		}

		// A conflicting writer got in; back off and rework from its state
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2

		pack, err = m.store.Get(ctx, packID)
		if err != nil {
			return nil, err
		}
		if pack == nil {
			return nil, fmt.Errorf("pack %s disappeared during update", packID)
		}
	}
}
