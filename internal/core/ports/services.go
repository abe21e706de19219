package ports

import (
	"context"
	"encoding/json"
	"time"

	"classhub/internal/core/domain"
)

// Event is a tagged outbound payload sent on device channels. The "type" key
// names the variant; everything else is flat event data.
type Event map[string]interface{}

// EventSink is the live hub as seen by the services: best-effort fan-out and
// targeted delivery over currently open channels, plus the liveness the
// registry knows about. A send that cannot complete is dropped, never
// retried.
type EventSink interface {
	// Broadcast fans event out to the members of sessionID, skipping
	// exclude (empty means no exclusion), and returns how many channels
	// accepted the event.
	Broadcast(ctx context.Context, sessionID domain.SessionID, event Event, exclude domain.DeviceID) int
	// SendToDevice attempts a non-blocking send to one device and reports
	// whether the channel accepted it.
	SendToDevice(deviceID domain.DeviceID, event Event) bool
	// Liveness reports whether the device holds an open channel and its
	// last heartbeat.
	Liveness(deviceID domain.DeviceID) (bool, time.Time)
	// TearDown evicts every member of the session from the live
	// structures. Called when a session transitions to ended.
	TearDown(ctx context.Context, sessionID domain.SessionID)
}

type SessionService interface {
	Create(ctx context.Context, teacherID domain.UserID, tenantID domain.TenantID, title string, scheduledStart, scheduledEnd time.Time) (*domain.LiveSession, error)
	Get(ctx context.Context, id domain.SessionID) (*domain.LiveSession, error)
	ListByTeacher(ctx context.Context, teacherID domain.UserID) ([]*domain.LiveSession, error)
	UpdateStatus(ctx context.Context, id domain.SessionID, actorID domain.UserID, next domain.SessionStatus) (*domain.LiveSession, error)
	Participants(ctx context.Context, id domain.SessionID) ([]*domain.SessionParticipantView, error)
	Devices(ctx context.Context, id domain.SessionID) ([]*domain.DeviceLiveness, error)
}

// Delivery is the tagged outcome of issuing a control action: the command
// either went out on a live channel or is parked pending in the store.
type Delivery string

const (
	DeliverySent    Delivery = "sent"
	DeliveryPending Delivery = "pending"
)

type ControlService interface {
	Issue(ctx context.Context, sessionID domain.SessionID, controllerID domain.UserID, targetDeviceID domain.DeviceID, targetUserID domain.UserID, actionType string, actionData json.RawMessage) (*domain.ControlAction, Delivery, error)
	ReportResponse(ctx context.Context, actionID domain.ActionID, status domain.ActionStatus, response json.RawMessage) error
	ListPending(ctx context.Context, deviceID domain.DeviceID) ([]*domain.ControlAction, error)
}

type ScreenShareService interface {
	Start(ctx context.Context, sessionID domain.SessionID, presenterUserID domain.UserID, presenterDeviceID domain.DeviceID, shareType, quality, streamURL string) (*domain.ScreenShare, error)
	Stop(ctx context.Context, shareID domain.ShareID) error
	ListActive(ctx context.Context, sessionID domain.SessionID) ([]*domain.ScreenShare, error)
}
