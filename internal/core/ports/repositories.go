package ports

import (
	"context"
	"encoding/json"
	"time"

	"classhub/internal/core/domain"
)

// The repositories below make up the external persistence contract. The
// coordinator calls them but never owns their schema; failures on the write
// paths are logged and do not block in-memory state (best-effort
// persistence).

type SessionRepository interface {
	Create(ctx context.Context, session *domain.LiveSession) error
	GetByID(ctx context.Context, id domain.SessionID) (*domain.LiveSession, error)
	Update(ctx context.Context, session *domain.LiveSession) error
	ListByTeacher(ctx context.Context, teacherID domain.UserID) ([]*domain.LiveSession, error)
}

type DeviceRepository interface {
	Register(ctx context.Context, record *domain.DeviceRecord) error
	GetByID(ctx context.Context, id domain.DeviceID) (*domain.DeviceRecord, error)
	UpdateHeartbeat(ctx context.Context, id domain.DeviceID, at time.Time) error
}

type ParticipantRepository interface {
	Add(ctx context.Context, participant *domain.Participant) error
	Remove(ctx context.Context, sessionID domain.SessionID, deviceID domain.DeviceID) error
	ListBySession(ctx context.Context, sessionID domain.SessionID) ([]*domain.Participant, error)
}

type ControlActionRepository interface {
	Create(ctx context.Context, action *domain.ControlAction) error
	GetByID(ctx context.Context, id domain.ActionID) (*domain.ControlAction, error)
	UpdateStatus(ctx context.Context, id domain.ActionID, status domain.ActionStatus, response json.RawMessage) error
	ListPending(ctx context.Context, deviceID domain.DeviceID) ([]*domain.ControlAction, error)
}

type ScreenShareRepository interface {
	Create(ctx context.Context, share *domain.ScreenShare) error
	GetByID(ctx context.Context, id domain.ShareID) (*domain.ScreenShare, error)
	End(ctx context.Context, id domain.ShareID, endedAt time.Time) error
	ListActiveBySession(ctx context.Context, sessionID domain.SessionID) ([]*domain.ScreenShare, error)
}
