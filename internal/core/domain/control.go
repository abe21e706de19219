package domain

import (
	"encoding/json"
	"time"
)

type ActionStatus string

const (
	ActionPending      ActionStatus = "pending"
	ActionDelivered    ActionStatus = "delivered"
	ActionAcknowledged ActionStatus = "acknowledged"
	ActionFailed       ActionStatus = "failed"
)

// ControlAction is the persisted record of a teacher-issued remote command
// directed at one device. It is created pending, updated when the target
// reports back, and never deleted by the coordinator.
type ControlAction struct {
	ID             ActionID
	SessionID      SessionID
	ControllerID   UserID
	TargetDeviceID DeviceID
	TargetUserID   UserID
	ActionType     string
	ActionData     json.RawMessage
	Status         ActionStatus
	Response       json.RawMessage
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
