package live

import (
	"encoding/json"

	"classhub/internal/core/domain"
	"classhub/internal/core/ports"
)

// Inbound message types.
const (
	msgRegister         = "register"
	msgJoinSession      = "join_session"
	msgLeaveSession     = "leave_session"
	msgScreenShareStart = "screen_share_start"
	msgScreenShareStop  = "screen_share_stop"
	msgDeviceControl    = "device_control"
	msgHeartbeat        = "heartbeat"
)

// inboundMessage is the tagged wire envelope. Fields are flat; which ones
// are meaningful depends on Type.
type inboundMessage struct {
	Type string `json:"type"`

	DeviceID   domain.DeviceID   `json:"deviceId,omitempty"`
	UserID     domain.UserID     `json:"userId,omitempty"`
	TenantID   domain.TenantID   `json:"tenantId,omitempty"`
	DeviceInfo domain.DeviceInfo `json:"deviceInfo,omitempty"`

	SessionID domain.SessionID `json:"sessionId,omitempty"`
	Role      string           `json:"role,omitempty"`

	ShareType     string         `json:"shareType,omitempty"`
	Quality       string         `json:"quality,omitempty"`
	StreamURL     string         `json:"streamUrl,omitempty"`
	ScreenShareID domain.ShareID `json:"screenShareId,omitempty"`

	TargetDeviceID domain.DeviceID `json:"targetDeviceId,omitempty"`
	TargetUserID   domain.UserID   `json:"targetUserId,omitempty"`
	ActionType     string          `json:"actionType,omitempty"`
	ActionData     json.RawMessage `json:"actionData,omitempty"`
}

func errorEvent(message string) ports.Event {
	return ports.Event{"type": "error", "message": message}
}

func registeredEvent(deviceID domain.DeviceID) ports.Event {
	return ports.Event{"type": "registered", "deviceId": deviceID}
}

func sessionJoinedEvent(sessionID domain.SessionID) ports.Event {
	return ports.Event{"type": "session_joined", "sessionId": sessionID}
}

func participantJoinedEvent(userID domain.UserID, deviceID domain.DeviceID, info domain.DeviceInfo) ports.Event {
	return ports.Event{
		"type":       "participant_joined",
		"userId":     userID,
		"deviceId":   deviceID,
		"deviceInfo": info,
	}
}

func participantLeftEvent(deviceID domain.DeviceID) ports.Event {
	return ports.Event{"type": "participant_left", "deviceId": deviceID}
}
