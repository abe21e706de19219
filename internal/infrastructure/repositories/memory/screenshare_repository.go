package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"classhub/internal/core/domain"
	"classhub/internal/core/ports"
)

type MemoryScreenShareRepository struct {
	shares map[domain.ShareID]*domain.ScreenShare
	mu     sync.RWMutex
}

func NewMemoryScreenShareRepository() ports.ScreenShareRepository {
	return &MemoryScreenShareRepository{
		shares: make(map[domain.ShareID]*domain.ScreenShare),
	}
}

func (r *MemoryScreenShareRepository) Create(ctx context.Context, share *domain.ScreenShare) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.shares[share.ID]; exists {
		return fmt.Errorf("screen share already exists: %s", share.ID)
	}

	copied := *share
	r.shares[share.ID] = &copied
	return nil
}

func (r *MemoryScreenShareRepository) GetByID(ctx context.Context, id domain.ShareID) (*domain.ScreenShare, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	share, exists := r.shares[id]
	if !exists {
		return nil, domain.ErrShareNotFound
	}

	copied := *share
	return &copied, nil
}

func (r *MemoryScreenShareRepository) End(ctx context.Context, id domain.ShareID, endedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	share, exists := r.shares[id]
	if !exists {
		return domain.ErrShareNotFound
	}

	share.Active = false
	share.EndedAt = &endedAt
	return nil
}

func (r *MemoryScreenShareRepository) ListActiveBySession(ctx context.Context, sessionID domain.SessionID) ([]*domain.ScreenShare, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var active []*domain.ScreenShare
	for _, share := range r.shares {
		if share.SessionID == sessionID && share.Active {
			copied := *share
			active = append(active, &copied)
		}
	}
	return active, nil
}
