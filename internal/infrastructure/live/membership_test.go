package live

import (
	"testing"

	"classhub/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMembershipJoinAndMembers(t *testing.T) {
	m := NewMembership()

	outcome, prev := m.Join("session-1", "dev-1")
	assert.Equal(t, OutcomeJoined, outcome)
	assert.Empty(t, prev)

	outcome, prev = m.Join("session-1", "dev-2")
	assert.Equal(t, OutcomeJoined, outcome)
	assert.Empty(t, prev)

	members := m.Members("session-1")
	assert.ElementsMatch(t, []domain.DeviceID{"dev-1", "dev-2"}, members)
	assert.Equal(t, 2, m.Count("session-1"))
}

func TestMembershipRejoinIsIdempotent(t *testing.T) {
	m := NewMembership()

	m.Join("session-1", "dev-1")
	outcome, prev := m.Join("session-1", "dev-1")

	assert.Equal(t, OutcomeAlreadyMember, outcome)
	assert.Empty(t, prev)
	assert.Equal(t, 1, m.Count("session-1"))
}

func TestMembershipMoveBetweenSessions(t *testing.T) {
	m := NewMembership()

	m.Join("session-1", "dev-1")
	outcome, prev := m.Join("session-2", "dev-1")

	assert.Equal(t, OutcomeJoined, outcome)
	assert.Equal(t, domain.SessionID("session-1"), prev)
	assert.Equal(t, 0, m.Count("session-1"))
	assert.Equal(t, 1, m.Count("session-2"))

	sessionID, ok := m.SessionOf("dev-1")
	require.True(t, ok)
	assert.Equal(t, domain.SessionID("session-2"), sessionID)
}

func TestMembershipLeave(t *testing.T) {
	m := NewMembership()
	m.Join("session-1", "dev-1")

	assert.True(t, m.Leave("session-1", "dev-1"))
	assert.Equal(t, 0, m.Count("session-1"))
	_, ok := m.SessionOf("dev-1")
	assert.False(t, ok)

	// Non-member and unknown session are no-ops.
	assert.False(t, m.Leave("session-1", "dev-1"))
	assert.False(t, m.Leave("unknown", "dev-1"))
}

func TestMembershipLeaveWrongSessionIsNoOp(t *testing.T) {
	m := NewMembership()
	m.Join("session-1", "dev-1")

	assert.False(t, m.Leave("session-2", "dev-1"))
	assert.Equal(t, 1, m.Count("session-1"))
}

func TestMembershipDrop(t *testing.T) {
	m := NewMembership()
	m.Join("session-1", "dev-1")
	m.Join("session-1", "dev-2")
	m.Join("session-2", "dev-3")

	evicted := m.Drop("session-1")
	assert.ElementsMatch(t, []domain.DeviceID{"dev-1", "dev-2"}, evicted)
	assert.Equal(t, 0, m.Count("session-1"))
	assert.Equal(t, 1, m.Count("session-2"))

	_, ok := m.SessionOf("dev-1")
	assert.False(t, ok)

	assert.Nil(t, m.Drop("session-1"))
}
