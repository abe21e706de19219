package memory

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"classhub/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRepositoryCRUD(t *testing.T) {
	repo := NewMemorySessionRepository()
	ctx := context.Background()

	session := &domain.LiveSession{
		ID:        "session-1",
		TeacherID: "teacher-1",
		Title:     "Biology",
		Status:    domain.SessionScheduled,
		CreatedAt: time.Now(),
	}
	require.NoError(t, repo.Create(ctx, session))
	assert.Error(t, repo.Create(ctx, session), "duplicate create must fail")

	got, err := repo.GetByID(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, "Biology", got.Title)

	// The stored record is insulated from caller mutation.
	got.Title = "Chemistry"
	again, err := repo.GetByID(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, "Biology", again.Title)

	session.Status = domain.SessionLive
	require.NoError(t, repo.Update(ctx, session))
	updated, err := repo.GetByID(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionLive, updated.Status)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.ErrorIs(t, repo.Update(ctx, &domain.LiveSession{ID: "missing"}), domain.ErrSessionNotFound)
}

func TestSessionRepositoryListByTeacherOrdered(t *testing.T) {
	repo := NewMemorySessionRepository()
	ctx := context.Background()
	base := time.Now()

	for i, id := range []domain.SessionID{"s-b", "s-a", "s-c"} {
		require.NoError(t, repo.Create(ctx, &domain.LiveSession{
			ID: id, TeacherID: "teacher-1", CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, repo.Create(ctx, &domain.LiveSession{ID: "other", TeacherID: "teacher-2", CreatedAt: base}))

	sessions, err := repo.ListByTeacher(ctx, "teacher-1")
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	assert.Equal(t, domain.SessionID("s-b"), sessions[0].ID)
	assert.Equal(t, domain.SessionID("s-c"), sessions[2].ID)
}

func TestDeviceRepositoryUpsertAndHeartbeat(t *testing.T) {
	repo := NewMemoryDeviceRepository()
	ctx := context.Background()

	record := &domain.DeviceRecord{
		ID:     "dev-1",
		UserID: "user-1",
		Info:   domain.DeviceInfo{Type: "tablet", Platform: "android"},
	}
	require.NoError(t, repo.Register(ctx, record))

	// Re-register overwrites in place.
	record.Info.Platform = "ios"
	require.NoError(t, repo.Register(ctx, record))

	got, err := repo.GetByID(ctx, "dev-1")
	require.NoError(t, err)
	assert.Equal(t, "ios", got.Info.Platform)

	at := time.Now().Add(time.Minute)
	require.NoError(t, repo.UpdateHeartbeat(ctx, "dev-1", at))
	got, err = repo.GetByID(ctx, "dev-1")
	require.NoError(t, err)
	assert.Equal(t, at, got.LastHeartbeat)

	assert.ErrorIs(t, repo.UpdateHeartbeat(ctx, "missing", at), domain.ErrDeviceNotFound)
	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrDeviceNotFound)
}

func TestParticipantRepository(t *testing.T) {
	repo := NewMemoryParticipantRepository()
	ctx := context.Background()

	require.NoError(t, repo.Add(ctx, &domain.Participant{
		SessionID: "session-1", DeviceID: "dev-1", UserID: "user-1", JoinedAt: time.Now(),
	}))
	require.NoError(t, repo.Add(ctx, &domain.Participant{
		SessionID: "session-1", DeviceID: "dev-2", UserID: "user-2", JoinedAt: time.Now(),
	}))
	require.NoError(t, repo.Add(ctx, &domain.Participant{
		SessionID: "session-2", DeviceID: "dev-3", UserID: "user-3", JoinedAt: time.Now(),
	}))

	participants, err := repo.ListBySession(ctx, "session-1")
	require.NoError(t, err)
	assert.Len(t, participants, 2)

	require.NoError(t, repo.Remove(ctx, "session-1", "dev-1"))
	participants, err = repo.ListBySession(ctx, "session-1")
	require.NoError(t, err)
	require.Len(t, participants, 1)
	assert.Equal(t, domain.DeviceID("dev-2"), participants[0].DeviceID)

	// Removing a non-member is a no-op.
	assert.NoError(t, repo.Remove(ctx, "session-1", "dev-1"))
}

func TestControlActionRepositoryPendingQueue(t *testing.T) {
	repo := NewMemoryControlActionRepository()
	ctx := context.Background()
	base := time.Now()

	for i, id := range []domain.ActionID{"a-1", "a-2"} {
		require.NoError(t, repo.Create(ctx, &domain.ControlAction{
			ID:             id,
			TargetDeviceID: "dev-1",
			ActionType:     "lock_screen",
			Status:         domain.ActionPending,
			CreatedAt:      base.Add(time.Duration(i) * time.Second),
		}))
	}
	require.NoError(t, repo.Create(ctx, &domain.ControlAction{
		ID: "a-other", TargetDeviceID: "dev-2", Status: domain.ActionPending, CreatedAt: base,
	}))

	pending, err := repo.ListPending(ctx, "dev-1")
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, domain.ActionID("a-1"), pending[0].ID, "pending actions come back oldest first")

	require.NoError(t, repo.UpdateStatus(ctx, "a-1", domain.ActionAcknowledged, json.RawMessage(`{"ok":true}`)))
	pending, err = repo.ListPending(ctx, "dev-1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, domain.ActionID("a-2"), pending[0].ID)

	got, err := repo.GetByID(ctx, "a-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ActionAcknowledged, got.Status)

	assert.ErrorIs(t, repo.UpdateStatus(ctx, "missing", domain.ActionFailed, nil), domain.ErrActionNotFound)
}

func TestScreenShareRepository(t *testing.T) {
	repo := NewMemoryScreenShareRepository()
	ctx := context.Background()

	share := &domain.ScreenShare{
		ID:        "share-1",
		SessionID: "session-1",
		Active:    true,
		StartedAt: time.Now(),
	}
	require.NoError(t, repo.Create(ctx, share))

	active, err := repo.ListActiveBySession(ctx, "session-1")
	require.NoError(t, err)
	assert.Len(t, active, 1)

	endedAt := time.Now()
	require.NoError(t, repo.End(ctx, "share-1", endedAt))

	active, err = repo.ListActiveBySession(ctx, "session-1")
	require.NoError(t, err)
	assert.Empty(t, active)

	got, err := repo.GetByID(ctx, "share-1")
	require.NoError(t, err)
	assert.False(t, got.Active)
	require.NotNil(t, got.EndedAt)

	assert.ErrorIs(t, repo.End(ctx, "missing", endedAt), domain.ErrShareNotFound)
}
