package live

import (
	"hash/fnv"
	"sync"
	"time"

	"classhub/internal/core/domain"
)

// RegisterOutcome distinguishes a fresh registration from one that silently
// replaced a previous live connection for the same device identity.
type RegisterOutcome string

const (
	OutcomeRegistered RegisterOutcome = "registered"
	OutcomeReplaced   RegisterOutcome = "replaced"
)

// Connection is the in-memory record of one device's live duplex channel.
// At most one Connection exists per device identity at any time.
type Connection struct {
	DeviceID      domain.DeviceID
	UserID        domain.UserID
	TenantID      domain.TenantID
	SessionID     domain.SessionID
	Info          domain.DeviceInfo
	Channel       Channel
	LastHeartbeat time.Time
	ConnectedAt   time.Time
}

const registryShards = 32

type registryShard struct {
	mu    sync.RWMutex
	conns map[domain.DeviceID]*Connection
}

// Registry owns the device identity -> live channel mapping. It is a sharded
// lock table so operations on distinct devices rarely contend; all state for
// one device lives in exactly one shard. The clock is injected so eviction
// boundaries are testable.
type Registry struct {
	shards [registryShards]*registryShard
	now    func() time.Time
}

func NewRegistry(now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	r := &Registry{now: now}
	for i := range r.shards {
		r.shards[i] = &registryShard{conns: make(map[domain.DeviceID]*Connection)}
	}
	return r
}

func (r *Registry) shard(id domain.DeviceID) *registryShard {
	h := fnv.New32a()
	h.Write([]byte(id))
	return r.shards[h.Sum32()%registryShards]
}

// Register stores the connection, replacing any previous entry for the same
// device. The replaced channel is force-closed after the new entry is
// installed so its reader loop terminates without touching the new state.
// A re-register arriving on the same channel refreshes the entry; closing
// there would kill the caller's own socket.
func (r *Registry) Register(conn *Connection) RegisterOutcome {
	conn.LastHeartbeat = r.now()
	conn.ConnectedAt = r.now()

	s := r.shard(conn.DeviceID)
	s.mu.Lock()
	prev, replaced := s.conns[conn.DeviceID]
	s.conns[conn.DeviceID] = conn
	s.mu.Unlock()

	if replaced {
		if prev.Channel != nil && prev.Channel != conn.Channel {
			prev.Channel.Close()
		}
		return OutcomeReplaced
	}
	return OutcomeRegistered
}

// TouchHeartbeat updates the device's last-seen time to now. Returns false
// for unregistered devices (a no-op, not an error).
func (r *Registry) TouchHeartbeat(id domain.DeviceID) bool {
	s := r.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, ok := s.conns[id]
	if !ok {
		return false
	}
	conn.LastHeartbeat = r.now()
	return true
}

// Get returns a snapshot of the device's connection. The copy means callers
// never observe concurrent mutation of SessionID or LastHeartbeat.
func (r *Registry) Get(id domain.DeviceID) (Connection, bool) {
	s := r.shard(id)
	s.mu.RLock()
	defer s.mu.RUnlock()

	conn, ok := s.conns[id]
	if !ok {
		return Connection{}, false
	}
	return *conn, true
}

// Remove drops the entry and returns its last snapshot so the caller can
// finish session cleanup.
func (r *Registry) Remove(id domain.DeviceID) (Connection, bool) {
	s := r.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, ok := s.conns[id]
	if !ok {
		return Connection{}, false
	}
	delete(s.conns, id)
	return *conn, true
}

// RemoveIfChannel removes the entry only while it still owns ch. A reader
// loop cleaning up after being replaced must not evict its successor.
func (r *Registry) RemoveIfChannel(id domain.DeviceID, ch Channel) (Connection, bool) {
	s := r.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, ok := s.conns[id]
	if !ok || conn.Channel != ch {
		return Connection{}, false
	}
	delete(s.conns, id)
	return *conn, true
}

// SetSession binds the connection to a session. Returns false if the device
// is not registered.
func (r *Registry) SetSession(id domain.DeviceID, sessionID domain.SessionID) bool {
	s := r.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, ok := s.conns[id]
	if !ok {
		return false
	}
	conn.SessionID = sessionID
	return true
}

func (r *Registry) ClearSession(id domain.DeviceID) bool {
	s := r.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, ok := s.conns[id]
	if !ok {
		return false
	}
	conn.SessionID = ""
	return true
}

// Snapshot copies every registered connection, for the heartbeat sweep and
// the health surface.
func (r *Registry) Snapshot() []Connection {
	var out []Connection
	for _, s := range r.shards {
		s.mu.RLock()
		for _, conn := range s.conns {
			out = append(out, *conn)
		}
		s.mu.RUnlock()
	}
	return out
}

func (r *Registry) Count() int {
	n := 0
	for _, s := range r.shards {
		s.mu.RLock()
		n += len(s.conns)
		s.mu.RUnlock()
	}
	return n
}
