package storage

import (
	"context"
	"database/sql"
	"time"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

type Session struct {
	ID        string
	Token     string
	UserJSON  string
	ExpiresAt time.Time
	CreatedAt time.Time
}

type AuditEventRow struct {
	ID           int64
	EventID      string
	Action       string
	Resource     string
	EntityID     int64
	EntityLabel  string
	Actor        string
	Payload      string
	OccurredAt   time.Time
	Synced       bool
	SyncAttempts int64
	LastError    string
	SyncedAt     sql.NullTime
}

const createSession = `-- name: CreateSession :exec
INSERT INTO sessions (id, token, user_json, expires_at, created_at)
VALUES (?, ?, ?, ?, ?)
`

type CreateSessionParams struct {
	ID        string
	Token     string
	UserJSON  string
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (q *Queries) CreateSession(ctx context.Context, arg CreateSessionParams) error {
	_, err := q.db.ExecContext(ctx, createSession,
		arg.ID,
		arg.Token,
		arg.UserJSON,
		arg.ExpiresAt,
		arg.CreatedAt,
	)
	return err
}

const getSession = `-- name: GetSession :one
SELECT id, token, user_json, expires_at, created_at FROM sessions
WHERE id = ?
`

func (q *Queries) GetSession(ctx context.Context, id string) (Session, error) {
	row := q.db.QueryRowContext(ctx, getSession, id)
	var i Session
	err := row.Scan(
		&i.ID,
		&i.Token,
		&i.UserJSON,
		&i.ExpiresAt,
		&i.CreatedAt,
	)
	return i, err
}

const deleteSession = `-- name: DeleteSession :exec
DELETE FROM sessions WHERE id = ?
`

func (q *Queries) DeleteSession(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, deleteSession, id)
	return err
}

const deleteViewStateForSession = `-- name: DeleteViewStateForSession :exec
DELETE FROM view_state WHERE session_id = ?
`

func (q *Queries) DeleteViewStateForSession(ctx context.Context, sessionID string) error {
	_, err := q.db.ExecContext(ctx, deleteViewStateForSession, sessionID)
	return err
}

const deleteExpiredSessions = `-- name: DeleteExpiredSessions :execrows
DELETE FROM sessions WHERE expires_at <= ?
`

func (q *Queries) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteExpiredSessions, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteOrphanViewState = `-- name: DeleteOrphanViewState :exec
DELETE FROM view_state WHERE session_id NOT IN (SELECT id FROM sessions)
`

func (q *Queries) DeleteOrphanViewState(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteOrphanViewState)
	return err
}

const getExpanded = `-- name: GetExpanded :one
SELECT expanded FROM view_state
WHERE session_id = ? AND view = ?
`

func (q *Queries) GetExpanded(ctx context.Context, sessionID, view string) (string, error) {
	row := q.db.QueryRowContext(ctx, getExpanded, sessionID, view)
	var expanded string
	err := row.Scan(&expanded)
	return expanded, err
}

const upsertExpanded = `-- name: UpsertExpanded :exec
INSERT INTO view_state (session_id, view, expanded, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (session_id, view) DO UPDATE SET
    expanded = excluded.expanded,
    updated_at = excluded.updated_at
`

func (q *Queries) UpsertExpanded(ctx context.Context, sessionID, view, expanded string, now time.Time) error {
	_, err := q.db.ExecContext(ctx, upsertExpanded, sessionID, view, expanded, now)
	return err
}

const nextSeq = `-- name: NextSeq :one
INSERT INTO view_state (session_id, view, seq, updated_at)
VALUES (?, ?, 1, ?)
ON CONFLICT (session_id, view) DO UPDATE SET
    seq = view_state.seq + 1,
    updated_at = excluded.updated_at
RETURNING seq
`

func (q *Queries) NextSeq(ctx context.Context, sessionID, view string, now time.Time) (int64, error) {
	row := q.db.QueryRowContext(ctx, nextSeq, sessionID, view, now)
	var seq int64
	err := row.Scan(&seq)
	return seq, err
}

const getSeq = `-- name: GetSeq :one
SELECT seq FROM view_state
WHERE session_id = ? AND view = ?
`

func (q *Queries) GetSeq(ctx context.Context, sessionID, view string) (int64, error) {
	row := q.db.QueryRowContext(ctx, getSeq, sessionID, view)
	var seq int64
	err := row.Scan(&seq)
	return seq, err
}

const createAuditEvent = `-- name: CreateAuditEvent :one
INSERT INTO audit_events (event_id, action, resource, entity_id, entity_label, actor, payload, occurred_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id
`

type CreateAuditEventParams struct {
	EventID     string
	Action      string
	Resource    string
	EntityID    int64
	EntityLabel string
	Actor       string
	Payload     string
	OccurredAt  time.Time
}

func (q *Queries) CreateAuditEvent(ctx context.Context, arg CreateAuditEventParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, createAuditEvent,
		arg.EventID,
		arg.Action,
		arg.Resource,
		arg.EntityID,
		arg.EntityLabel,
		arg.Actor,
		arg.Payload,
		arg.OccurredAt,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const auditEventColumns = `id, event_id, action, resource, entity_id, entity_label, actor, payload, occurred_at, synced, sync_attempts, last_error, synced_at`

const getAuditEvent = `-- name: GetAuditEvent :one
SELECT ` + auditEventColumns + ` FROM audit_events
WHERE event_id = ?
`

func (q *Queries) GetAuditEvent(ctx context.Context, eventID string) (AuditEventRow, error) {
	row := q.db.QueryRowContext(ctx, getAuditEvent, eventID)
	return scanAuditEvent(row)
}

const getPendingAuditEvents = `-- name: GetPendingAuditEvents :many
SELECT ` + auditEventColumns + ` FROM audit_events
WHERE synced = 0
ORDER BY id ASC
LIMIT ?
`

func (q *Queries) GetPendingAuditEvents(ctx context.Context, limit int64) ([]AuditEventRow, error) {
	rows, err := q.db.QueryContext(ctx, getPendingAuditEvents, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AuditEventRow
	for rows.Next() {
		i, err := scanAuditEvent(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const markAuditEventSynced = `-- name: MarkAuditEventSynced :execrows
UPDATE audit_events
SET synced = 1, synced_at = ?, last_error = ''
WHERE event_id = ?
`

func (q *Queries) MarkAuditEventSynced(ctx context.Context, eventID string, now time.Time) (int64, error) {
	result, err := q.db.ExecContext(ctx, markAuditEventSynced, now, eventID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const markAuditEventSyncError = `-- name: MarkAuditEventSyncError :exec
UPDATE audit_events
SET sync_attempts = sync_attempts + 1, last_error = ?
WHERE event_id = ?
`

func (q *Queries) MarkAuditEventSyncError(ctx context.Context, eventID, lastError string) error {
	_, err := q.db.ExecContext(ctx, markAuditEventSyncError, lastError, eventID)
	return err
}

const countPendingAuditEvents = `-- name: CountPendingAuditEvents :one
SELECT COUNT(*) FROM audit_events WHERE synced = 0
`

func (q *Queries) CountPendingAuditEvents(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countPendingAuditEvents)
	var n int64
	err := row.Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAuditEvent(row rowScanner) (AuditEventRow, error) {
	var i AuditEventRow
	err := row.Scan(
		&i.ID,
		&i.EventID,
		&i.Action,
		&i.Resource,
		&i.EntityID,
		&i.EntityLabel,
		&i.Actor,
		&i.Payload,
		&i.OccurredAt,
		&i.Synced,
		&i.SyncAttempts,
		&i.LastError,
		&i.SyncedAt,
	)
	return i, err
}
