package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"classhub/internal/core/domain"
	"classhub/internal/core/ports"
)

// The sqlite repositories implement the persistence contract against the
// relational store the surrounding school platform uses. Each repository
// shares one *sql.DB; sqlite serializes the writes itself.

type SQLiteSessionRepository struct {
	db *sql.DB
}

func NewSQLiteSessionRepository(db *sql.DB) ports.SessionRepository {
	return &SQLiteSessionRepository{db: db}
}

func (r *SQLiteSessionRepository) Create(ctx context.Context, session *domain.LiveSession) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO live_sessions
		 (id, teacher_id, tenant_id, title, status, scheduled_start, scheduled_end, actual_start, actual_end, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(session.ID), string(session.TeacherID), string(session.TenantID),
		session.Title, string(session.Status),
		session.ScheduledStart, session.ScheduledEnd,
		nullTime(session.ActualStart), nullTime(session.ActualEnd),
		session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

func (r *SQLiteSessionRepository) GetByID(ctx context.Context, id domain.SessionID) (*domain.LiveSession, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, teacher_id, tenant_id, title, status, scheduled_start, scheduled_end, actual_start, actual_end, created_at
		 FROM live_sessions WHERE id = ?`, string(id))
	return scanSession(row)
}

func (r *SQLiteSessionRepository) Update(ctx context.Context, session *domain.LiveSession) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE live_sessions
		 SET status = ?, actual_start = ?, actual_end = ?
		 WHERE id = ?`,
		string(session.Status), nullTime(session.ActualStart), nullTime(session.ActualEnd),
		string(session.ID),
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (r *SQLiteSessionRepository) ListByTeacher(ctx context.Context, teacherID domain.UserID) ([]*domain.LiveSession, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, teacher_id, tenant_id, title, status, scheduled_start, scheduled_end, actual_start, actual_end, created_at
		 FROM live_sessions WHERE teacher_id = ? ORDER BY created_at`, string(teacherID))
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*domain.LiveSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*domain.LiveSession, error) {
	var session domain.LiveSession
	var actualStart, actualEnd sql.NullTime
	err := row.Scan(
		&session.ID, &session.TeacherID, &session.TenantID, &session.Title, &session.Status,
		&session.ScheduledStart, &session.ScheduledEnd, &actualStart, &actualEnd, &session.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}
	if actualStart.Valid {
		session.ActualStart = &actualStart.Time
	}
	if actualEnd.Valid {
		session.ActualEnd = &actualEnd.Time
	}
	return &session, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

type SQLiteDeviceRepository struct {
	db *sql.DB
}

func NewSQLiteDeviceRepository(db *sql.DB) ports.DeviceRepository {
	return &SQLiteDeviceRepository{db: db}
}

func (r *SQLiteDeviceRepository) Register(ctx context.Context, record *domain.DeviceRecord) error {
	info, err := json.Marshal(record.Info)
	if err != nil {
		return fmt.Errorf("failed to marshal device info: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO devices (id, user_id, tenant_id, info, last_heartbeat, registered_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   user_id = excluded.user_id,
		   tenant_id = excluded.tenant_id,
		   info = excluded.info,
		   last_heartbeat = excluded.last_heartbeat,
		   registered_at = excluded.registered_at`,
		string(record.ID), string(record.UserID), string(record.TenantID),
		string(info), record.LastHeartbeat, record.RegisteredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert device: %w", err)
	}
	return nil
}

func (r *SQLiteDeviceRepository) GetByID(ctx context.Context, id domain.DeviceID) (*domain.DeviceRecord, error) {
	var record domain.DeviceRecord
	var info string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, tenant_id, info, last_heartbeat, registered_at FROM devices WHERE id = ?`,
		string(id)).Scan(&record.ID, &record.UserID, &record.TenantID, &info, &record.LastHeartbeat, &record.RegisteredAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrDeviceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan device: %w", err)
	}
	if err := json.Unmarshal([]byte(info), &record.Info); err != nil {
		return nil, fmt.Errorf("failed to unmarshal device info: %w", err)
	}
	return &record, nil
}

func (r *SQLiteDeviceRepository) UpdateHeartbeat(ctx context.Context, id domain.DeviceID, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE devices SET last_heartbeat = ? WHERE id = ?`, at, string(id))
	if err != nil {
		return fmt.Errorf("failed to update device heartbeat: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return domain.ErrDeviceNotFound
	}
	return nil
}

type SQLiteParticipantRepository struct {
	db *sql.DB
}

func NewSQLiteParticipantRepository(db *sql.DB) ports.ParticipantRepository {
	return &SQLiteParticipantRepository{db: db}
}

func (r *SQLiteParticipantRepository) Add(ctx context.Context, participant *domain.Participant) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO session_participants (session_id, device_id, user_id, role, joined_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(session_id, device_id) DO UPDATE SET
		   user_id = excluded.user_id,
		   role = excluded.role,
		   joined_at = excluded.joined_at`,
		string(participant.SessionID), string(participant.DeviceID), string(participant.UserID),
		participant.Role, participant.JoinedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert participant: %w", err)
	}
	return nil
}

func (r *SQLiteParticipantRepository) Remove(ctx context.Context, sessionID domain.SessionID, deviceID domain.DeviceID) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM session_participants WHERE session_id = ? AND device_id = ?`,
		string(sessionID), string(deviceID))
	if err != nil {
		return fmt.Errorf("failed to remove participant: %w", err)
	}
	return nil
}

func (r *SQLiteParticipantRepository) ListBySession(ctx context.Context, sessionID domain.SessionID) ([]*domain.Participant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT session_id, device_id, user_id, role, joined_at
		 FROM session_participants WHERE session_id = ? ORDER BY joined_at`, string(sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to query participants: %w", err)
	}
	defer rows.Close()

	var participants []*domain.Participant
	for rows.Next() {
		var participant domain.Participant
		if err := rows.Scan(&participant.SessionID, &participant.DeviceID, &participant.UserID, &participant.Role, &participant.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, &participant)
	}
	return participants, rows.Err()
}

type SQLiteControlActionRepository struct {
	db *sql.DB
}

func NewSQLiteControlActionRepository(db *sql.DB) ports.ControlActionRepository {
	return &SQLiteControlActionRepository{db: db}
}

func (r *SQLiteControlActionRepository) Create(ctx context.Context, action *domain.ControlAction) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO control_actions
		 (id, session_id, controller_id, target_device_id, target_user_id, action_type, action_data, status, response, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(action.ID), string(action.SessionID), string(action.ControllerID),
		string(action.TargetDeviceID), string(action.TargetUserID),
		action.ActionType, string(action.ActionData), string(action.Status), string(action.Response),
		action.CreatedAt, action.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert control action: %w", err)
	}
	return nil
}

func (r *SQLiteControlActionRepository) GetByID(ctx context.Context, id domain.ActionID) (*domain.ControlAction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, session_id, controller_id, target_device_id, target_user_id, action_type, action_data, status, response, created_at, updated_at
		 FROM control_actions WHERE id = ?`, string(id))
	return scanAction(row)
}

func (r *SQLiteControlActionRepository) UpdateStatus(ctx context.Context, id domain.ActionID, status domain.ActionStatus, response json.RawMessage) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE control_actions SET status = ?, response = ?, updated_at = ? WHERE id = ?`,
		string(status), string(response), time.Now(), string(id))
	if err != nil {
		return fmt.Errorf("failed to update control action: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return domain.ErrActionNotFound
	}
	return nil
}

func (r *SQLiteControlActionRepository) ListPending(ctx context.Context, deviceID domain.DeviceID) ([]*domain.ControlAction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, session_id, controller_id, target_device_id, target_user_id, action_type, action_data, status, response, created_at, updated_at
		 FROM control_actions WHERE target_device_id = ? AND status = ? ORDER BY created_at`,
		string(deviceID), string(domain.ActionPending))
	if err != nil {
		return nil, fmt.Errorf("failed to query pending actions: %w", err)
	}
	defer rows.Close()

	var pending []*domain.ControlAction
	for rows.Next() {
		action, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		pending = append(pending, action)
	}
	return pending, rows.Err()
}

func scanAction(row rowScanner) (*domain.ControlAction, error) {
	var action domain.ControlAction
	var actionData, response string
	err := row.Scan(
		&action.ID, &action.SessionID, &action.ControllerID, &action.TargetDeviceID, &action.TargetUserID,
		&action.ActionType, &actionData, &action.Status, &response, &action.CreatedAt, &action.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrActionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan control action: %w", err)
	}
	if actionData != "" {
		action.ActionData = json.RawMessage(actionData)
	}
	if response != "" {
		action.Response = json.RawMessage(response)
	}
	return &action, nil
}

type SQLiteScreenShareRepository struct {
	db *sql.DB
}

func NewSQLiteScreenShareRepository(db *sql.DB) ports.ScreenShareRepository {
	return &SQLiteScreenShareRepository{db: db}
}

func (r *SQLiteScreenShareRepository) Create(ctx context.Context, share *domain.ScreenShare) error {
	viewers, err := json.Marshal(share.Viewers)
	if err != nil {
		return fmt.Errorf("failed to marshal viewers: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO screen_shares
		 (id, session_id, presenter_user_id, presenter_device_id, share_type, quality, stream_url, viewers, active, started_at, ended_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(share.ID), string(share.SessionID), string(share.PresenterUserID), string(share.PresenterDeviceID),
		share.ShareType, share.Quality, share.StreamURL, string(viewers), share.Active, share.StartedAt, nullTime(share.EndedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert screen share: %w", err)
	}
	return nil
}

func (r *SQLiteScreenShareRepository) GetByID(ctx context.Context, id domain.ShareID) (*domain.ScreenShare, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, session_id, presenter_user_id, presenter_device_id, share_type, quality, stream_url, viewers, active, started_at, ended_at
		 FROM screen_shares WHERE id = ?`, string(id))
	return scanShare(row)
}

func (r *SQLiteScreenShareRepository) End(ctx context.Context, id domain.ShareID, endedAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE screen_shares SET active = 0, ended_at = ? WHERE id = ?`, endedAt, string(id))
	if err != nil {
		return fmt.Errorf("failed to end screen share: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return domain.ErrShareNotFound
	}
	return nil
}

func (r *SQLiteScreenShareRepository) ListActiveBySession(ctx context.Context, sessionID domain.SessionID) ([]*domain.ScreenShare, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, session_id, presenter_user_id, presenter_device_id, share_type, quality, stream_url, viewers, active, started_at, ended_at
		 FROM screen_shares WHERE session_id = ? AND active = 1`, string(sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to query screen shares: %w", err)
	}
	defer rows.Close()

	var shares []*domain.ScreenShare
	for rows.Next() {
		share, err := scanShare(rows)
		if err != nil {
			return nil, err
		}
		shares = append(shares, share)
	}
	return shares, rows.Err()
}

func scanShare(row rowScanner) (*domain.ScreenShare, error) {
	var share domain.ScreenShare
	var viewers string
	var endedAt sql.NullTime
	err := row.Scan(
		&share.ID, &share.SessionID, &share.PresenterUserID, &share.PresenterDeviceID,
		&share.ShareType, &share.Quality, &share.StreamURL, &viewers, &share.Active, &share.StartedAt, &endedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrShareNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan screen share: %w", err)
	}
	if viewers != "" {
		if err := json.Unmarshal([]byte(viewers), &share.Viewers); err != nil {
			return nil, fmt.Errorf("failed to unmarshal viewers: %w", err)
		}
	}
	if endedAt.Valid {
		share.EndedAt = &endedAt.Time
	}
	return &share, nil
}
