package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS live_sessions (
	id              TEXT PRIMARY KEY,
	teacher_id      TEXT NOT NULL,
	tenant_id       TEXT,
	title           TEXT,
	status          TEXT NOT NULL,
	scheduled_start TIMESTAMP,
	scheduled_end   TIMESTAMP,
	actual_start    TIMESTAMP,
	actual_end      TIMESTAMP,
	created_at      TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_teacher ON live_sessions(teacher_id);

CREATE TABLE IF NOT EXISTS devices (
	id             TEXT PRIMARY KEY,
	user_id        TEXT NOT NULL,
	tenant_id      TEXT,
	info           TEXT NOT NULL,
	last_heartbeat TIMESTAMP,
	registered_at  TIMESTAMP
);

CREATE TABLE IF NOT EXISTS session_participants (
	session_id TEXT NOT NULL,
	device_id  TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	role       TEXT,
	joined_at  TIMESTAMP NOT NULL,
	PRIMARY KEY (session_id, device_id)
);

CREATE TABLE IF NOT EXISTS control_actions (
	id               TEXT PRIMARY KEY,
	session_id       TEXT NOT NULL,
	controller_id    TEXT NOT NULL,
	target_device_id TEXT NOT NULL,
	target_user_id   TEXT,
	action_type      TEXT NOT NULL,
	action_data      TEXT,
	status           TEXT NOT NULL,
	response         TEXT,
	created_at       TIMESTAMP NOT NULL,
	updated_at       TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_actions_target ON control_actions(target_device_id, status);

CREATE TABLE IF NOT EXISTS screen_shares (
	id                  TEXT PRIMARY KEY,
	session_id          TEXT NOT NULL,
	presenter_user_id   TEXT NOT NULL,
	presenter_device_id TEXT NOT NULL,
	share_type          TEXT,
	quality             TEXT,
	stream_url          TEXT,
	viewers             TEXT,
	active              INTEGER NOT NULL,
	started_at          TIMESTAMP NOT NULL,
	ended_at            TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_shares_session ON screen_shares(session_id, active);
`

// Open opens (or creates) the coordinator's sqlite store and applies the
// schema. WAL mode keeps concurrent readers off the single writer's back.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return db, nil
}
