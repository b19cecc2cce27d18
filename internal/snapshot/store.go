package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/wonny/alphaterminal/backend/internal/contracts"
	"github.com/wonny/alphaterminal/backend/pkg/logger"
)

// Store publishes ranking snapshots. Readers see either the previous or the
// new snapshot, never a mix: a snapshot becomes visible only after the
// repository has durably saved it.
// ⭐ SSOT: the current snapshot is read from here only
type Store struct {
	repo    contracts.SnapshotRepository
	current atomic.Pointer[contracts.Snapshot]
	logger  *logger.Logger
}

// NewStore creates a store backed by repo
func NewStore(repo contracts.SnapshotRepository, log *logger.Logger) *Store {
	return &Store{
		repo:   repo,
		logger: log.WithComponent("snapshot"),
	}
}

// Publish saves s and makes it the current snapshot
func (s *Store) Publish(ctx context.Context, snap *contracts.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("publish: nil snapshot")
	}
	if err := s.repo.Save(ctx, snap); err != nil {
		return fmt.Errorf("save snapshot %s: %w", snap.RunID, err)
	}
	s.current.Store(snap)

	s.logger.WithRun(snap.RunID).WithFields(map[string]interface{}{
		"ranked":  snap.TotalRanked,
		"partial": snap.Partial,
	}).Info("Snapshot published")
	return nil
}

// Latest returns the current snapshot, loading it from the repository on a cold start
func (s *Store) Latest(ctx context.Context) (*contracts.Snapshot, error) {
	if snap := s.current.Load(); snap != nil {
		return snap, nil
	}

	snap, err := s.repo.Latest(ctx)
	if err != nil {
		if !errors.Is(err, contracts.ErrNoSnapshot) {
			err = fmt.Errorf("load snapshot: %w", err)
		}
		return nil, err
	}

	// a concurrent Publish wins over the stored copy
	if s.current.CompareAndSwap(nil, snap) {
		return snap, nil
	}
	return s.current.Load(), nil
}

// Reset forgets the in-memory snapshot; the repository is untouched
func (s *Store) Reset() {
	s.current.Store(nil)
}
