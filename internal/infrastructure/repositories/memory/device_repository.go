package memory

import (
	"context"
	"sync"
	"time"

	"classhub/internal/core/domain"
	"classhub/internal/core/ports"
)

type MemoryDeviceRepository struct {
	devices map[domain.DeviceID]*domain.DeviceRecord
	mu      sync.RWMutex
}

func NewMemoryDeviceRepository() ports.DeviceRepository {
	return &MemoryDeviceRepository{
		devices: make(map[domain.DeviceID]*domain.DeviceRecord),
	}
}

// Register upserts: re-registering a device overwrites its record, matching
// the replace-on-duplicate semantics of the live registry.
func (r *MemoryDeviceRepository) Register(ctx context.Context, record *domain.DeviceRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *record
	r.devices[record.ID] = &copied
	return nil
}

func (r *MemoryDeviceRepository) GetByID(ctx context.Context, id domain.DeviceID) (*domain.DeviceRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, exists := r.devices[id]
	if !exists {
		return nil, domain.ErrDeviceNotFound
	}

	copied := *record
	return &copied, nil
}

func (r *MemoryDeviceRepository) UpdateHeartbeat(ctx context.Context, id domain.DeviceID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, exists := r.devices[id]
	if !exists {
		return domain.ErrDeviceNotFound
	}

	record.LastHeartbeat = at
	return nil
}
