package snapshot

import (
	"context"
	"sync"

	"github.com/wonny/alphaterminal/backend/internal/contracts"
)

// MemoryRepository keeps snapshots in process memory only
type MemoryRepository struct {
	mu    sync.Mutex
	saved []*contracts.Snapshot
}

// NewMemoryRepository creates an empty repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

// Save implements contracts.SnapshotRepository
func (r *MemoryRepository) Save(ctx context.Context, s *contracts.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, s)
	return nil
}

// Latest implements contracts.SnapshotRepository
func (r *MemoryRepository) Latest(ctx context.Context) (*contracts.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.saved) == 0 {
		return nil, contracts.ErrNoSnapshot
	}
	return r.saved[len(r.saved)-1], nil
}

// Count returns how many snapshots were saved
func (r *MemoryRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.saved)
}
