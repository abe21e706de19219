package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"classhub/internal/core/domain"
	"classhub/internal/core/ports"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type controlService struct {
	actions ports.ControlActionRepository
	sink    ports.EventSink
	logger  *zap.SugaredLogger
	now     func() time.Time
}

func NewControlService(
	actions ports.ControlActionRepository,
	sink ports.EventSink,
	logger *zap.SugaredLogger,
	now func() time.Time,
) ports.ControlService {
	if now == nil {
		now = time.Now
	}
	return &controlService{
		actions: actions,
		sink:    sink,
		logger:  logger,
		now:     now,
	}
}

// Issue persists a pending control action and forwards it to the target if
// it currently holds an open channel. An offline target gets no delivery
// attempt and no queueing: the action stays pending in the store until the
// device polls for it or the controller re-queries.
func (s *controlService) Issue(ctx context.Context, sessionID domain.SessionID, controllerID domain.UserID, targetDeviceID domain.DeviceID, targetUserID domain.UserID, actionType string, actionData json.RawMessage) (*domain.ControlAction, ports.Delivery, error) {
	if actionType == "" {
		return nil, "", fmt.Errorf("action type is required")
	}

	now := s.now()
	action := &domain.ControlAction{
		ID:             domain.ActionID(uuid.NewString()),
		SessionID:      sessionID,
		ControllerID:   controllerID,
		TargetDeviceID: targetDeviceID,
		TargetUserID:   targetUserID,
		ActionType:     actionType,
		ActionData:     actionData,
		Status:         domain.ActionPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	// Logged, not fatal: real-time delivery must survive a storage outage.
	if err := s.actions.Create(ctx, action); err != nil {
		s.logger.Warnw("control action persist failed", "action_id", action.ID, "error", err)
	}

	event := ports.Event{
		"type":         "device_control_command",
		"actionId":     action.ID,
		"actionType":   actionType,
		"actionData":   actionData,
		"controllerId": controllerID,
	}
	if s.sink.SendToDevice(targetDeviceID, event) {
		s.logger.Infow("control command delivered",
			"action_id", action.ID, "target_device", targetDeviceID, "action_type", actionType)
		return action, ports.DeliverySent, nil
	}

	s.logger.Infow("control target offline, action stays pending",
		"action_id", action.ID, "target_device", targetDeviceID)
	return action, ports.DeliveryPending, nil
}

// ReportResponse records the target device's response. The controller is
// not notified in real time; it re-queries the action.
func (s *controlService) ReportResponse(ctx context.Context, actionID domain.ActionID, status domain.ActionStatus, response json.RawMessage) error {
	switch status {
	case domain.ActionDelivered, domain.ActionAcknowledged, domain.ActionFailed:
	default:
		return fmt.Errorf("invalid action status: %s", status)
	}

	if err := s.actions.UpdateStatus(ctx, actionID, status, response); err != nil {
		return err
	}
	s.logger.Infow("control action response recorded", "action_id", actionID, "status", status)
	return nil
}

func (s *controlService) ListPending(ctx context.Context, deviceID domain.DeviceID) ([]*domain.ControlAction, error) {
	return s.actions.ListPending(ctx, deviceID)
}
