package services

import (
	"context"
	"time"

	"classhub/internal/core/domain"
	"classhub/internal/core/ports"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type screenShareService struct {
	shares ports.ScreenShareRepository
	sink   ports.EventSink
	logger *zap.SugaredLogger
	now    func() time.Time
}

func NewScreenShareService(
	shares ports.ScreenShareRepository,
	sink ports.EventSink,
	logger *zap.SugaredLogger,
	now func() time.Time,
) ports.ScreenShareService {
	if now == nil {
		now = time.Now
	}
	return &screenShareService{
		shares: shares,
		sink:   sink,
		logger: logger,
		now:    now,
	}
}

// Start records an active presentation stream and announces it to the whole
// session, presenter included: the announcement is session-wide.
func (s *screenShareService) Start(ctx context.Context, sessionID domain.SessionID, presenterUserID domain.UserID, presenterDeviceID domain.DeviceID, shareType, quality, streamURL string) (*domain.ScreenShare, error) {
	share := &domain.ScreenShare{
		ID:                domain.ShareID(uuid.NewString()),
		SessionID:         sessionID,
		PresenterUserID:   presenterUserID,
		PresenterDeviceID: presenterDeviceID,
		ShareType:         shareType,
		Quality:           quality,
		StreamURL:         streamURL,
		Active:            true,
		StartedAt:         s.now(),
	}

	if err := s.shares.Create(ctx, share); err != nil {
		s.logger.Warnw("screen share persist failed", "share_id", share.ID, "error", err)
	}

	s.sink.Broadcast(ctx, sessionID, ports.Event{
		"type":          "screen_share_started",
		"screenShareId": share.ID,
		"presenterId":   presenterUserID,
		"shareType":     shareType,
		"streamUrl":     streamURL,
	}, "")

	s.logger.Infow("screen share started",
		"share_id", share.ID, "session_id", sessionID, "presenter", presenterUserID)
	return share, nil
}

// Stop marks the share ended and announces it. Stopping an already ended
// share is a no-op.
func (s *screenShareService) Stop(ctx context.Context, shareID domain.ShareID) error {
	share, err := s.shares.GetByID(ctx, shareID)
	if err != nil {
		return err
	}
	if !share.Active {
		return nil
	}

	if err := s.shares.End(ctx, shareID, s.now()); err != nil {
		return err
	}

	s.sink.Broadcast(ctx, share.SessionID, ports.Event{
		"type":          "screen_share_stopped",
		"screenShareId": shareID,
	}, "")

	s.logger.Infow("screen share stopped", "share_id", shareID, "session_id", share.SessionID)
	return nil
}

func (s *screenShareService) ListActive(ctx context.Context, sessionID domain.SessionID) ([]*domain.ScreenShare, error) {
	return s.shares.ListActiveBySession(ctx, sessionID)
}
