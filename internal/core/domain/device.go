package domain

import "time"

// DeviceInfo describes a client endpoint as reported at registration.
type DeviceInfo struct {
	Type         string   `json:"type"`
	Platform     string   `json:"platform"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// DeviceRecord is the persisted projection of a registered device. The
// registry owns the live channel; this record survives disconnects.
type DeviceRecord struct {
	ID            DeviceID
	UserID        UserID
	TenantID      TenantID
	Info          DeviceInfo
	LastHeartbeat time.Time
	RegisteredAt  time.Time
}

// DeviceLiveness merges a durable device record with what the registry
// knows at query time. The record is authoritative for identity, the
// registry for Connected and LastHeartbeat.
type DeviceLiveness struct {
	DeviceRecord
	Connected bool
}
