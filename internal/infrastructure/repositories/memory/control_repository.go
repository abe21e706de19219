package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"classhub/internal/core/domain"
	"classhub/internal/core/ports"
)

type MemoryControlActionRepository struct {
	actions map[domain.ActionID]*domain.ControlAction
	mu      sync.RWMutex
}

func NewMemoryControlActionRepository() ports.ControlActionRepository {
	return &MemoryControlActionRepository{
		actions: make(map[domain.ActionID]*domain.ControlAction),
	}
}

func (r *MemoryControlActionRepository) Create(ctx context.Context, action *domain.ControlAction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.actions[action.ID]; exists {
		return fmt.Errorf("control action already exists: %s", action.ID)
	}

	copied := *action
	r.actions[action.ID] = &copied
	return nil
}

func (r *MemoryControlActionRepository) GetByID(ctx context.Context, id domain.ActionID) (*domain.ControlAction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	action, exists := r.actions[id]
	if !exists {
		return nil, domain.ErrActionNotFound
	}

	copied := *action
	return &copied, nil
}

func (r *MemoryControlActionRepository) UpdateStatus(ctx context.Context, id domain.ActionID, status domain.ActionStatus, response json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	action, exists := r.actions[id]
	if !exists {
		return domain.ErrActionNotFound
	}

	action.Status = status
	action.Response = response
	action.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryControlActionRepository) ListPending(ctx context.Context, deviceID domain.DeviceID) ([]*domain.ControlAction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var pending []*domain.ControlAction
	for _, action := range r.actions {
		if action.TargetDeviceID == deviceID && action.Status == domain.ActionPending {
			copied := *action
			pending = append(pending, &copied)
		}
	}

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	return pending, nil
}
