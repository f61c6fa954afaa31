package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"finconsole/internal/core"

	_ "modernc.org/sqlite"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrEventNotFound   = errors.New("audit event not found")
)

// dsnPragmas makes concurrent writers wait on a locked database and stores
// times in a format that sorts as text.
const dsnPragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_time_format=sqlite"

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	schema  SchemaVersion
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", withPragmas(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	schema, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		schema:  schema,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func withPragmas(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + dsnPragmas
}

// Schema reports the migration state found when the repository opened.
func (r *SQLiteRepository) Schema() SchemaVersion {
	return r.schema
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping backs the readiness probe.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// SessionData is a logged in console session: the Entity Store bearer
// token and the user it belongs to.
type SessionData struct {
	ID        string
	Token     string
	User      core.User
	ExpiresAt time.Time
}

// CreateSession stores token under a fresh random session id.
func (r *SQLiteRepository) CreateSession(ctx context.Context, token string, user core.User, ttl time.Duration) (SessionData, error) {
	userJSON, err := json.Marshal(user)
	if err != nil {
		return SessionData{}, fmt.Errorf("encode session user: %w", err)
	}
	now := r.now()
	s := SessionData{
		ID:        uuid.NewString(),
		Token:     token,
		User:      user,
		ExpiresAt: now.Add(ttl),
	}
	err = r.queries.CreateSession(ctx, CreateSessionParams{
		ID:        s.ID,
		Token:     token,
		UserJSON:  string(userJSON),
		ExpiresAt: s.ExpiresAt,
		CreatedAt: now,
	})
	if err != nil {
		return SessionData{}, fmt.Errorf("create session: %w", err)
	}

	slog.InfoContext(ctx, "Session created", "user_id", user.ID, "expires_at", s.ExpiresAt)
	return s, nil
}

// GetSession returns the session with id. Expired sessions are removed and
// reported as ErrSessionExpired.
func (r *SQLiteRepository) GetSession(ctx context.Context, id string) (SessionData, error) {
	if _, err := uuid.Parse(id); err != nil {
		return SessionData{}, ErrSessionNotFound
	}
	row, err := r.queries.GetSession(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionData{}, ErrSessionNotFound
	}
	if err != nil {
		return SessionData{}, fmt.Errorf("get session: %w", err)
	}
	if !row.ExpiresAt.After(r.now()) {
		if err := r.DeleteSession(ctx, id); err != nil {
			slog.WarnContext(ctx, "Failed to remove expired session", "error", err)
		}
		return SessionData{}, ErrSessionExpired
	}

	s := SessionData{ID: row.ID, Token: row.Token, ExpiresAt: row.ExpiresAt}
	if err := json.Unmarshal([]byte(row.UserJSON), &s.User); err != nil {
		return SessionData{}, fmt.Errorf("decode session user: %w", err)
	}
	return s, nil
}

// DeleteSession removes a session and its view state.
func (r *SQLiteRepository) DeleteSession(ctx context.Context, id string) error {
	if err := r.queries.DeleteViewStateForSession(ctx, id); err != nil {
		return fmt.Errorf("delete view state: %w", err)
	}
	if err := r.queries.DeleteSession(ctx, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// PurgeExpiredSessions drops sessions past their expiry along with their
// view state.
func (r *SQLiteRepository) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	n, err := r.queries.DeleteExpiredSessions(ctx, r.now())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	if err := r.queries.DeleteOrphanViewState(ctx); err != nil {
		return n, fmt.Errorf("delete orphan view state: %w", err)
	}
	if n > 0 {
		slog.InfoContext(ctx, "Expired sessions purged", "count", n)
	}
	return n, nil
}

// Expanded returns the ids expanded in view for the session. A view never
// toggled yields an empty slice.
func (r *SQLiteRepository) Expanded(ctx context.Context, sessionID, view string) ([]int64, error) {
	raw, err := r.queries.GetExpanded(ctx, sessionID, view)
	if errors.Is(err, sql.ErrNoRows) {
		return []int64{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get expanded ids: %w", err)
	}
	return parseIDList(raw)
}

// SaveExpanded replaces the expanded ids of view for the session.
func (r *SQLiteRepository) SaveExpanded(ctx context.Context, sessionID, view string, ids []int64) error {
	if err := r.queries.UpsertExpanded(ctx, sessionID, view, formatIDList(ids), r.now()); err != nil {
		return fmt.Errorf("save expanded ids: %w", err)
	}
	return nil
}

// NextSeq issues the next sequence token for a view. Tokens increase
// strictly per (session, view).
func (r *SQLiteRepository) NextSeq(ctx context.Context, sessionID, view string) (int64, error) {
	seq, err := r.queries.NextSeq(ctx, sessionID, view, r.now())
	if err != nil {
		return 0, fmt.Errorf("issue sequence token: %w", err)
	}
	return seq, nil
}

// IsLatest reports whether seq is still the newest token issued for view.
func (r *SQLiteRepository) IsLatest(ctx context.Context, sessionID, view string, seq int64) (bool, error) {
	latest, err := r.queries.GetSeq(ctx, sessionID, view)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read sequence token: %w", err)
	}
	return latest == seq, nil
}

// AppendAuditEvent stores e in the outbox as unsynced.
func (r *SQLiteRepository) AppendAuditEvent(ctx context.Context, e core.AuditEvent) error {
	if err := e.Validate(); err != nil {
		return err
	}
	payload := string(e.Payload)
	if payload == "" {
		payload = "{}"
	}
	id, err := r.queries.CreateAuditEvent(ctx, CreateAuditEventParams{
		EventID:     e.EventID,
		Action:      string(e.Action),
		Resource:    string(e.Resource),
		EntityID:    e.EntityID,
		EntityLabel: e.EntityLabel,
		Actor:       e.Actor,
		Payload:     payload,
		OccurredAt:  e.OccurredAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("create audit event: %w", err)
	}

	slog.InfoContext(ctx, "Audit event saved to SQLite",
		"id", id,
		"event_id", e.EventID,
		"action", e.Action,
		"resource", e.Resource,
		"entity_id", e.EntityID)
	return nil
}

// PendingAuditEvent is an outbox entry not yet in the ledger.
type PendingAuditEvent struct {
	Event        core.AuditEvent
	SyncAttempts int64
	LastError    string
}

// GetAuditEvent loads one outbox entry.
func (r *SQLiteRepository) GetAuditEvent(ctx context.Context, eventID string) (core.AuditEvent, bool, error) {
	row, err := r.queries.GetAuditEvent(ctx, eventID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.AuditEvent{}, false, ErrEventNotFound
	}
	if err != nil {
		return core.AuditEvent{}, false, fmt.Errorf("get audit event: %w", err)
	}
	return rowToEvent(row), row.Synced, nil
}

// GetPendingAuditEvents returns up to limit unsynced events, oldest first.
func (r *SQLiteRepository) GetPendingAuditEvents(ctx context.Context, limit int) ([]PendingAuditEvent, error) {
	rows, err := r.queries.GetPendingAuditEvents(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("get pending audit events: %w", err)
	}
	out := make([]PendingAuditEvent, len(rows))
	for i, row := range rows {
		out[i] = PendingAuditEvent{
			Event:        rowToEvent(row),
			SyncAttempts: row.SyncAttempts,
			LastError:    row.LastError,
		}
	}
	return out, nil
}

// CountPendingAuditEvents is reported on the readiness endpoint.
func (r *SQLiteRepository) CountPendingAuditEvents(ctx context.Context) (int64, error) {
	n, err := r.queries.CountPendingAuditEvents(ctx)
	if err != nil {
		return 0, fmt.Errorf("count pending audit events: %w", err)
	}
	return n, nil
}

// MarkSynced marks an event as written to the ledger.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, eventID string) error {
	n, err := r.queries.MarkAuditEventSynced(ctx, eventID, r.now())
	if err != nil {
		return fmt.Errorf("mark audit event synced: %w", err)
	}
	if n == 0 {
		return ErrEventNotFound
	}

	slog.InfoContext(ctx, "Audit event marked as synced", "event_id", eventID)
	return nil
}

// MarkSyncError records a failed ledger write; the event stays pending.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, eventID string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if err := r.queries.MarkAuditEventSyncError(ctx, eventID, msg); err != nil {
		return fmt.Errorf("mark audit event sync error: %w", err)
	}

	slog.WarnContext(ctx, "Audit event marked with sync error", "event_id", eventID, "error", msg)
	return nil
}

func rowToEvent(row AuditEventRow) core.AuditEvent {
	return core.AuditEvent{
		EventID:     row.EventID,
		Action:      core.AuditAction(row.Action),
		Resource:    core.Resource(row.Resource),
		EntityID:    row.EntityID,
		EntityLabel: row.EntityLabel,
		Actor:       row.Actor,
		Payload:     json.RawMessage(row.Payload),
		OccurredAt:  row.OccurredAt.UTC(),
	}
}

func parseIDList(raw string) ([]int64, error) {
	ids := []int64{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse expanded id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func formatIDList(ids []int64) string {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
