package services

import (
	"context"
	"fmt"
	"time"

	"classhub/internal/core/domain"
	"classhub/internal/core/ports"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type sessionService struct {
	sessions     ports.SessionRepository
	participants ports.ParticipantRepository
	devices      ports.DeviceRepository
	sink         ports.EventSink
	logger       *zap.SugaredLogger
	now          func() time.Time
}

func NewSessionService(
	sessions ports.SessionRepository,
	participants ports.ParticipantRepository,
	devices ports.DeviceRepository,
	sink ports.EventSink,
	logger *zap.SugaredLogger,
	now func() time.Time,
) ports.SessionService {
	if now == nil {
		now = time.Now
	}
	return &sessionService{
		sessions:     sessions,
		participants: participants,
		devices:      devices,
		sink:         sink,
		logger:       logger,
		now:          now,
	}
}

func (s *sessionService) Create(ctx context.Context, teacherID domain.UserID, tenantID domain.TenantID, title string, scheduledStart, scheduledEnd time.Time) (*domain.LiveSession, error) {
	session := &domain.LiveSession{
		ID:             domain.SessionID(uuid.NewString()),
		TeacherID:      teacherID,
		TenantID:       tenantID,
		Title:          title,
		Status:         domain.SessionScheduled,
		ScheduledStart: scheduledStart,
		ScheduledEnd:   scheduledEnd,
		CreatedAt:      s.now(),
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.logger.Infow("session created", "session_id", session.ID, "teacher_id", teacherID)
	return session, nil
}

func (s *sessionService) Get(ctx context.Context, id domain.SessionID) (*domain.LiveSession, error) {
	return s.sessions.GetByID(ctx, id)
}

func (s *sessionService) ListByTeacher(ctx context.Context, teacherID domain.UserID) ([]*domain.LiveSession, error) {
	return s.sessions.ListByTeacher(ctx, teacherID)
}

// UpdateStatus advances the scheduled -> live -> ended lifecycle. The live
// transition stamps the actual start; ending stamps the actual end,
// announces the change to members and tears the session down.
func (s *sessionService) UpdateStatus(ctx context.Context, id domain.SessionID, actorID domain.UserID, next domain.SessionStatus) (*domain.LiveSession, error) {
	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.TeacherID != actorID {
		return nil, domain.ErrNotSessionOwner
	}
	if !session.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, session.Status, next)
	}

	now := s.now()
	session.Status = next
	switch next {
	case domain.SessionLive:
		session.ActualStart = &now
	case domain.SessionEnded:
		session.ActualEnd = &now
	}

	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to update session: %w", err)
	}

	s.sink.Broadcast(ctx, id, ports.Event{
		"type":      "session_status_changed",
		"sessionId": id,
		"status":    next,
		"timestamp": now.Unix(),
	}, "")

	if next == domain.SessionEnded {
		s.sink.TearDown(ctx, id)
	}

	s.logger.Infow("session status changed", "session_id", id, "status", next)
	return session, nil
}

// Participants merges the durable participant records with registry
// liveness: the store is authoritative for who joined, the registry for
// who still holds an open channel.
func (s *sessionService) Participants(ctx context.Context, id domain.SessionID) ([]*domain.SessionParticipantView, error) {
	if _, err := s.sessions.GetByID(ctx, id); err != nil {
		return nil, err
	}

	records, err := s.participants.ListBySession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}

	views := make([]*domain.SessionParticipantView, 0, len(records))
	for _, record := range records {
		connected, lastSeen := s.sink.Liveness(record.DeviceID)
		views = append(views, &domain.SessionParticipantView{
			Participant:   *record,
			Connected:     connected,
			LastHeartbeat: lastSeen,
		})
	}
	return views, nil
}

// Devices returns the device records behind a session's participants with
// merged liveness. A stale store record is still listed; it just shows as
// disconnected.
func (s *sessionService) Devices(ctx context.Context, id domain.SessionID) ([]*domain.DeviceLiveness, error) {
	records, err := s.participants.ListBySession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}

	views := make([]*domain.DeviceLiveness, 0, len(records))
	for _, record := range records {
		device, err := s.devices.GetByID(ctx, record.DeviceID)
		if err != nil {
			s.logger.Debugw("no device record for participant", "device_id", record.DeviceID)
			device = &domain.DeviceRecord{ID: record.DeviceID, UserID: record.UserID}
		}
		connected, lastSeen := s.sink.Liveness(record.DeviceID)
		if connected {
			device.LastHeartbeat = lastSeen
		}
		views = append(views, &domain.DeviceLiveness{
			DeviceRecord: *device,
			Connected:    connected,
		})
	}
	return views, nil
}
