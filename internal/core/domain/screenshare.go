package domain

import "time"

// ScreenShare is the persisted record of a presentation stream within a
// live session. The coordinator mediates start/stop and the stream locator;
// the media itself flows elsewhere.
type ScreenShare struct {
	ID                ShareID
	SessionID         SessionID
	PresenterUserID   UserID
	PresenterDeviceID DeviceID
	ShareType         string
	Quality           string
	StreamURL         string
	Viewers           []DeviceID
	Active            bool
	StartedAt         time.Time
	EndedAt           *time.Time
}
