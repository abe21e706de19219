package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"classhub/internal/core/domain"
	"classhub/internal/core/ports"
)

type MemorySessionRepository struct {
	sessions map[domain.SessionID]*domain.LiveSession
	mu       sync.RWMutex
}

func NewMemorySessionRepository() ports.SessionRepository {
	return &MemorySessionRepository{
		sessions: make(map[domain.SessionID]*domain.LiveSession),
	}
}

func (r *MemorySessionRepository) Create(ctx context.Context, session *domain.LiveSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[session.ID]; exists {
		return fmt.Errorf("session already exists: %s", session.ID)
	}

	copied := *session
	r.sessions[session.ID] = &copied
	return nil
}

func (r *MemorySessionRepository) GetByID(ctx context.Context, id domain.SessionID) (*domain.LiveSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, exists := r.sessions[id]
	if !exists {
		return nil, domain.ErrSessionNotFound
	}

	copied := *session
	return &copied, nil
}

func (r *MemorySessionRepository) Update(ctx context.Context, session *domain.LiveSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[session.ID]; !exists {
		return domain.ErrSessionNotFound
	}

	copied := *session
	r.sessions[session.ID] = &copied
	return nil
}

func (r *MemorySessionRepository) ListByTeacher(ctx context.Context, teacherID domain.UserID) ([]*domain.LiveSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sessions []*domain.LiveSession
	for _, session := range r.sessions {
		if session.TeacherID == teacherID {
			copied := *session
			sessions = append(sessions, &copied)
		}
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	return sessions, nil
}
