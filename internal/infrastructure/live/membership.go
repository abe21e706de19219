package live

import (
	"sync"

	"classhub/internal/core/domain"
)

// JoinOutcome makes the idempotent re-join observable to callers instead of
// silently succeeding.
type JoinOutcome string

const (
	OutcomeJoined        JoinOutcome = "joined"
	OutcomeAlreadyMember JoinOutcome = "already_member"
)

// Membership owns the session identity -> member device set mapping plus the
// reverse index. Both maps are guarded by one mutex: the invariant that a
// device belongs to at most one session at a time is exactly a two-map
// consistency property, so the two are never updated under separate locks.
type Membership struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]map[domain.DeviceID]struct{}
	byDevice map[domain.DeviceID]domain.SessionID
}

func NewMembership() *Membership {
	return &Membership{
		sessions: make(map[domain.SessionID]map[domain.DeviceID]struct{}),
		byDevice: make(map[domain.DeviceID]domain.SessionID),
	}
}

// Join adds the device to the session's set. Re-adding an existing member is
// a no-op reported as OutcomeAlreadyMember. If the device was a member of a
// different session it is moved; the previous session is returned so the
// caller can announce the departure there.
func (m *Membership) Join(sessionID domain.SessionID, deviceID domain.DeviceID) (JoinOutcome, domain.SessionID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, inSession := m.byDevice[deviceID]
	if inSession && prev == sessionID {
		return OutcomeAlreadyMember, ""
	}
	if inSession {
		m.removeLocked(prev, deviceID)
	}

	set, ok := m.sessions[sessionID]
	if !ok {
		set = make(map[domain.DeviceID]struct{})
		m.sessions[sessionID] = set
	}
	set[deviceID] = struct{}{}
	m.byDevice[deviceID] = sessionID

	if inSession {
		return OutcomeJoined, prev
	}
	return OutcomeJoined, ""
}

// Leave removes the device from the session's set. Unknown session or
// non-member device is a no-op.
func (m *Membership) Leave(sessionID domain.SessionID, deviceID domain.DeviceID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.byDevice[deviceID] != sessionID {
		return false
	}
	m.removeLocked(sessionID, deviceID)
	return true
}

func (m *Membership) removeLocked(sessionID domain.SessionID, deviceID domain.DeviceID) {
	if set, ok := m.sessions[sessionID]; ok {
		delete(set, deviceID)
		if len(set) == 0 {
			delete(m.sessions, sessionID)
		}
	}
	delete(m.byDevice, deviceID)
}

// Members returns the current member set of the session.
func (m *Membership) Members(sessionID domain.SessionID) []domain.DeviceID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	set, ok := m.sessions[sessionID]
	if !ok {
		return nil
	}
	members := make([]domain.DeviceID, 0, len(set))
	for id := range set {
		members = append(members, id)
	}
	return members
}

// SessionOf returns the session the device is currently joined to.
func (m *Membership) SessionOf(deviceID domain.DeviceID) (domain.SessionID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessionID, ok := m.byDevice[deviceID]
	return sessionID, ok
}

// Drop removes the whole session set and returns the evicted members.
func (m *Membership) Drop(sessionID domain.SessionID) []domain.DeviceID {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.sessions[sessionID]
	if !ok {
		return nil
	}
	members := make([]domain.DeviceID, 0, len(set))
	for id := range set {
		members = append(members, id)
		delete(m.byDevice, id)
	}
	delete(m.sessions, sessionID)
	return members
}

func (m *Membership) Count(sessionID domain.SessionID) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions[sessionID])
}
