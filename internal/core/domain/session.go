package domain

import (
	"time"
)

type SessionID string
type DeviceID string
type UserID string
type ActionID string
type ShareID string
type TenantID string

type SessionStatus string

const (
	SessionScheduled SessionStatus = "scheduled"
	SessionLive      SessionStatus = "live"
	SessionEnded     SessionStatus = "ended"
)

// CanTransitionTo reports whether the lifecycle allows moving to next.
// The only legal path is scheduled -> live -> ended; ended is terminal.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	switch s {
	case SessionScheduled:
		return next == SessionLive || next == SessionEnded
	case SessionLive:
		return next == SessionEnded
	default:
		return false
	}
}

// LiveSession is the durable source of truth for a teacher-owned class
// instance. The in-memory registry and membership index are transient
// projections keyed off its ID.
type LiveSession struct {
	ID             SessionID
	TeacherID      UserID
	TenantID       TenantID
	Title          string
	Status         SessionStatus
	ScheduledStart time.Time
	ScheduledEnd   time.Time
	ActualStart    *time.Time
	ActualEnd      *time.Time
	CreatedAt      time.Time
}

// Participant is the persisted record of a device joined to a session.
type Participant struct {
	SessionID SessionID
	DeviceID  DeviceID
	UserID    UserID
	Role      string
	JoinedAt  time.Time
}

// SessionParticipantView merges the durable participant record with the
// liveness the registry knows about at query time.
type SessionParticipantView struct {
	Participant
	Connected     bool
	LastHeartbeat time.Time
}
