package memory

import (
	"context"
	"sort"
	"sync"

	"classhub/internal/core/domain"
	"classhub/internal/core/ports"
)

type MemoryParticipantRepository struct {
	bySession map[domain.SessionID]map[domain.DeviceID]*domain.Participant
	mu        sync.RWMutex
}

func NewMemoryParticipantRepository() ports.ParticipantRepository {
	return &MemoryParticipantRepository{
		bySession: make(map[domain.SessionID]map[domain.DeviceID]*domain.Participant),
	}
}

func (r *MemoryParticipantRepository) Add(ctx context.Context, participant *domain.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, exists := r.bySession[participant.SessionID]
	if !exists {
		set = make(map[domain.DeviceID]*domain.Participant)
		r.bySession[participant.SessionID] = set
	}

	copied := *participant
	set[participant.DeviceID] = &copied
	return nil
}

func (r *MemoryParticipantRepository) Remove(ctx context.Context, sessionID domain.SessionID, deviceID domain.DeviceID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if set, exists := r.bySession[sessionID]; exists {
		delete(set, deviceID)
		if len(set) == 0 {
			delete(r.bySession, sessionID)
		}
	}
	return nil
}

func (r *MemoryParticipantRepository) ListBySession(ctx context.Context, sessionID domain.SessionID) ([]*domain.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, exists := r.bySession[sessionID]
	if !exists {
		return nil, nil
	}

	participants := make([]*domain.Participant, 0, len(set))
	for _, participant := range set {
		copied := *participant
		participants = append(participants, &copied)
	}

	sort.Slice(participants, func(i, j int) bool {
		return participants[i].JoinedAt.Before(participants[j].JoinedAt)
	})
	return participants, nil
}
