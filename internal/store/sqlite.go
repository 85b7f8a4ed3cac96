package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/agentation/broker/internal/apperr"
)

const timeLayout = "2006-01-02T15:04:05.000000000Z"

// sqliteStore is the durable Store backing: a single embedded SQLite file,
// serialized through a single connection so statements run one at a time
// (a mutation and its event are written by separate calls, so the pair is
// not atomic to readers), grounded on the teacher pack's
// Eunho-J-coboo/internal/store/store.go Open/migrate pattern (see
// DESIGN.md).
type sqliteStore struct {
	db     *sql.DB
	dbPath string
}

// OpenSQLite opens (or creates) the durable store at dbPath, running
// migrations idempotently.
func OpenSQLite(dbPath string) (Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, apperr.Fatal("create store directory", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, apperr.Fatal("open sqlite store", err)
	}
	db.SetMaxOpenConns(1)

	s := &sqliteStore{db: db, dbPath: dbPath}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, apperr.Fatal("migrate sqlite store", err)
	}
	return s, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	statements := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			url TEXT NOT NULL,
			project_id TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS annotations (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			comment TEXT NOT NULL,
			element TEXT NOT NULL,
			element_path TEXT NOT NULL,
			url TEXT NOT NULL DEFAULT '',
			bbox_json TEXT NULL,
			intent TEXT NOT NULL DEFAULT '',
			severity TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			resolved_by TEXT NOT NULL DEFAULT '',
			resolved_at TEXT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			context_json TEXT NULL,
			FOREIGN KEY(session_id) REFERENCES sessions(id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_annotations_session ON annotations(session_id, created_at, id);`,
		`CREATE INDEX IF NOT EXISTS idx_annotations_status ON annotations(status);`,
		`CREATE TABLE IF NOT EXISTS thread_messages (
			id TEXT PRIMARY KEY,
			annotation_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TEXT NOT NULL,
			FOREIGN KEY(annotation_id) REFERENCES annotations(id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_thread_annotation ON thread_messages(annotation_id, created_at, id);`,
		`CREATE TABLE IF NOT EXISTS events (
			sequence INTEGER PRIMARY KEY,
			type TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			session_id TEXT NOT NULL,
			payload_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id, sequence);`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration statement failed (%s): %w", firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}

func fmtTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func (s *sqliteStore) CreateSession(ctx context.Context, url, projectID string) (Session, error) {
	sess := Session{
		ID:        uuid.NewString(),
		URL:       url,
		ProjectID: projectID,
		Status:    SessionActive,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions(id, url, project_id, status, created_at) VALUES(?, ?, ?, ?, ?)`,
		sess.ID, sess.URL, sess.ProjectID, string(sess.Status), fmtTime(sess.CreatedAt))
	if err != nil {
		return Session{}, apperr.Transient("create session", err)
	}
	return sess, nil
}

func scanSession(row interface{ Scan(...any) error }) (Session, error) {
	var s Session
	var status, createdAt string
	if err := row.Scan(&s.ID, &s.URL, &s.ProjectID, &status, &createdAt); err != nil {
		return Session{}, err
	}
	s.Status = SessionStatus(status)
	t, err := parseTime(createdAt)
	if err != nil {
		return Session{}, err
	}
	s.CreatedAt = t
	return s, nil
}

func (s *sqliteStore) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, url, project_id, status, created_at FROM sessions ORDER BY created_at, id`)
	if err != nil {
		return nil, apperr.Transient("list sessions", err)
	}
	defer rows.Close()

	out := make([]Session, 0)
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, apperr.Transient("scan session", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *sqliteStore) GetSession(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, url, project_id, status, created_at FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return Session{}, apperr.NotFound("session", id)
	}
	if err != nil {
		return Session{}, apperr.Transient("get session", err)
	}
	return sess, nil
}

func (s *sqliteStore) GetSessionWithAnnotations(ctx context.Context, id string) (SessionDetail, error) {
	sess, err := s.GetSession(ctx, id)
	if err != nil {
		return SessionDetail{}, err
	}
	anns, err := s.annotationsForSession(ctx, id)
	if err != nil {
		return SessionDetail{}, err
	}
	return SessionDetail{Session: sess, Annotations: anns}, nil
}

func (s *sqliteStore) CloseSession(ctx context.Context, id string) (Session, error) {
	if _, err := s.GetSession(ctx, id); err != nil {
		return Session{}, err
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE sessions SET status = ? WHERE id = ?`, string(SessionClosed), id); err != nil {
		return Session{}, apperr.Transient("close session", err)
	}
	return s.GetSession(ctx, id)
}

func (s *sqliteStore) DeleteSession(ctx context.Context, id string) (Session, error) {
	sess, err := s.GetSession(ctx, id)
	if err != nil {
		return Session{}, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Session{}, apperr.Transient("delete session", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM thread_messages WHERE annotation_id IN (SELECT id FROM annotations WHERE session_id = ?)`, id); err != nil {
		return Session{}, apperr.Transient("delete session threads", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM annotations WHERE session_id = ?`, id); err != nil {
		return Session{}, apperr.Transient("delete session annotations", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return Session{}, apperr.Transient("delete session", err)
	}
	if err := tx.Commit(); err != nil {
		return Session{}, apperr.Transient("delete session", err)
	}
	return sess, nil
}

func (s *sqliteStore) annotationsForSession(ctx context.Context, sessionID string) ([]Annotation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, comment, element, element_path, url, bbox_json, intent, severity,
		        status, resolved_by, resolved_at, created_at, updated_at, context_json
		 FROM annotations WHERE session_id = ? ORDER BY created_at, id`, sessionID)
	if err != nil {
		return nil, apperr.Transient("list annotations", err)
	}
	defer rows.Close()

	out := make([]Annotation, 0)
	for rows.Next() {
		a, err := scanAnnotation(rows)
		if err != nil {
			return nil, apperr.Transient("scan annotation", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Transient("list annotations", err)
	}
	for i := range out {
		thread, err := s.threadFor(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Thread = thread
	}
	return out, nil
}

func scanAnnotation(row interface{ Scan(...any) error }) (Annotation, error) {
	var a Annotation
	var status, resolvedBy, createdAt, updatedAt, intent, severity string
	var bboxJSON, resolvedAt, contextJSON sql.NullString

	if err := row.Scan(&a.ID, &a.SessionID, &a.Comment, &a.Element, &a.ElementPath, &a.URL,
		&bboxJSON, &intent, &severity, &status, &resolvedBy, &resolvedAt, &createdAt, &updatedAt, &contextJSON); err != nil {
		return Annotation{}, err
	}
	a.Status = AnnotationStatus(status)
	a.Intent = Intent(intent)
	a.Severity = Severity(severity)
	a.ResolvedBy = ResolverKind(resolvedBy)

	if bboxJSON.Valid && bboxJSON.String != "" {
		var bb BoundingBox
		if err := json.Unmarshal([]byte(bboxJSON.String), &bb); err != nil {
			return Annotation{}, err
		}
		a.BoundingBox = &bb
	}
	if contextJSON.Valid && contextJSON.String != "" {
		var ctxMap map[string]string
		if err := json.Unmarshal([]byte(contextJSON.String), &ctxMap); err != nil {
			return Annotation{}, err
		}
		a.Context = ctxMap
	}
	var err error
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return Annotation{}, err
	}
	if a.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Annotation{}, err
	}
	if resolvedAt.Valid && resolvedAt.String != "" {
		t, err := parseTime(resolvedAt.String)
		if err != nil {
			return Annotation{}, err
		}
		a.ResolvedAt = &t
	}
	return a, nil
}

func (s *sqliteStore) threadFor(ctx context.Context, annotationID string) ([]ThreadMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, annotation_id, role, content, created_at FROM thread_messages
		 WHERE annotation_id = ? ORDER BY created_at, id`, annotationID)
	if err != nil {
		return nil, apperr.Transient("list thread", err)
	}
	defer rows.Close()

	out := make([]ThreadMessage, 0)
	for rows.Next() {
		var m ThreadMessage
		var role, createdAt string
		if err := rows.Scan(&m.ID, &m.AnnotationID, &role, &m.Content, &createdAt); err != nil {
			return nil, apperr.Transient("scan thread message", err)
		}
		m.Role = ThreadRole(role)
		t, err := parseTime(createdAt)
		if err != nil {
			return nil, apperr.Transient("parse thread message time", err)
		}
		m.CreatedAt = t
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *sqliteStore) AddAnnotation(ctx context.Context, sessionID string, in AnnotationCreate) (Annotation, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return Annotation{}, err
	}

	now := time.Now().UTC()
	a := Annotation{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		Comment:     in.Comment,
		Element:     in.Element,
		ElementPath: in.ElementPath,
		URL:         in.URL,
		BoundingBox: in.BoundingBox,
		Intent:      in.Intent,
		Severity:    in.Severity,
		Status:      StatusPending,
		Context:     in.Context,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var bboxJSON, contextJSON sql.NullString
	if a.BoundingBox != nil {
		b, err := json.Marshal(a.BoundingBox)
		if err != nil {
			return Annotation{}, apperr.Transient("marshal bbox", err)
		}
		bboxJSON = sql.NullString{String: string(b), Valid: true}
	}
	if len(a.Context) > 0 {
		b, err := json.Marshal(a.Context)
		if err != nil {
			return Annotation{}, apperr.Transient("marshal context", err)
		}
		contextJSON = sql.NullString{String: string(b), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO annotations(id, session_id, comment, element, element_path, url, bbox_json,
		    intent, severity, status, resolved_by, resolved_at, created_at, updated_at, context_json)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.SessionID, a.Comment, a.Element, a.ElementPath, a.URL, bboxJSON,
		string(a.Intent), string(a.Severity), string(a.Status), "", nil, fmtTime(a.CreatedAt), fmtTime(a.UpdatedAt), contextJSON)
	if err != nil {
		return Annotation{}, apperr.Transient("insert annotation", err)
	}
	return a, nil
}

func (s *sqliteStore) GetAnnotation(ctx context.Context, id string) (Annotation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, comment, element, element_path, url, bbox_json, intent, severity,
		        status, resolved_by, resolved_at, created_at, updated_at, context_json
		 FROM annotations WHERE id = ?`, id)
	a, err := scanAnnotation(row)
	if err == sql.ErrNoRows {
		return Annotation{}, apperr.NotFound("annotation", id)
	}
	if err != nil {
		return Annotation{}, apperr.Transient("get annotation", err)
	}
	thread, err := s.threadFor(ctx, id)
	if err != nil {
		return Annotation{}, err
	}
	a.Thread = thread
	return a, nil
}

func (s *sqliteStore) UpdateAnnotation(ctx context.Context, id string, patch AnnotationPatch) (Annotation, error) {
	a, err := s.GetAnnotation(ctx, id)
	if err != nil {
		return Annotation{}, err
	}
	if err := applyPatch(&a, patch); err != nil {
		return Annotation{}, err
	}

	var bboxJSON, contextJSON, resolvedAt sql.NullString
	if a.BoundingBox != nil {
		b, err := json.Marshal(a.BoundingBox)
		if err != nil {
			return Annotation{}, apperr.Transient("marshal bbox", err)
		}
		bboxJSON = sql.NullString{String: string(b), Valid: true}
	}
	if len(a.Context) > 0 {
		b, err := json.Marshal(a.Context)
		if err != nil {
			return Annotation{}, apperr.Transient("marshal context", err)
		}
		contextJSON = sql.NullString{String: string(b), Valid: true}
	}
	if a.ResolvedAt != nil {
		resolvedAt = sql.NullString{String: fmtTime(*a.ResolvedAt), Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE annotations SET comment=?, element=?, element_path=?, url=?, bbox_json=?, intent=?,
		    severity=?, status=?, resolved_by=?, resolved_at=?, updated_at=?, context_json=? WHERE id = ?`,
		a.Comment, a.Element, a.ElementPath, a.URL, bboxJSON, string(a.Intent), string(a.Severity),
		string(a.Status), string(a.ResolvedBy), resolvedAt, fmtTime(a.UpdatedAt), contextJSON, id)
	if err != nil {
		return Annotation{}, apperr.Transient("update annotation", err)
	}
	return s.GetAnnotation(ctx, id)
}

func (s *sqliteStore) DeleteAnnotation(ctx context.Context, id string) (Annotation, error) {
	a, err := s.GetAnnotation(ctx, id)
	if err != nil {
		return Annotation{}, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Annotation{}, apperr.Transient("delete annotation", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM thread_messages WHERE annotation_id = ?`, id); err != nil {
		return Annotation{}, apperr.Transient("delete thread messages", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM annotations WHERE id = ?`, id); err != nil {
		return Annotation{}, apperr.Transient("delete annotation", err)
	}
	if err := tx.Commit(); err != nil {
		return Annotation{}, apperr.Transient("delete annotation", err)
	}
	return a, nil
}

func (s *sqliteStore) GetPendingAnnotations(ctx context.Context, sessionID string) ([]Annotation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, comment, element, element_path, url, bbox_json, intent, severity,
		        status, resolved_by, resolved_at, created_at, updated_at, context_json
		 FROM annotations WHERE session_id = ? AND status = ? ORDER BY created_at, id`,
		sessionID, string(StatusPending))
	if err != nil {
		return nil, apperr.Transient("pending annotations", err)
	}
	defer rows.Close()
	return scanAnnotationRows(rows)
}

func (s *sqliteStore) GetAllPendingAnnotations(ctx context.Context) ([]Annotation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, comment, element, element_path, url, bbox_json, intent, severity,
		        status, resolved_by, resolved_at, created_at, updated_at, context_json
		 FROM annotations WHERE status = ? ORDER BY created_at, id`, string(StatusPending))
	if err != nil {
		return nil, apperr.Transient("all pending annotations", err)
	}
	defer rows.Close()
	return scanAnnotationRows(rows)
}

func scanAnnotationRows(rows *sql.Rows) ([]Annotation, error) {
	out := make([]Annotation, 0)
	for rows.Next() {
		a, err := scanAnnotation(rows)
		if err != nil {
			return nil, apperr.Transient("scan annotation", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *sqliteStore) AddThreadMessage(ctx context.Context, annotationID string, role ThreadRole, content string) (Annotation, error) {
	if _, err := s.GetAnnotation(ctx, annotationID); err != nil {
		return Annotation{}, err
	}
	now := time.Now().UTC()
	msgID := uuid.NewString()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Annotation{}, apperr.Transient("add thread message", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO thread_messages(id, annotation_id, role, content, created_at) VALUES(?, ?, ?, ?, ?)`,
		msgID, annotationID, string(role), content, fmtTime(now)); err != nil {
		return Annotation{}, apperr.Transient("insert thread message", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE annotations SET updated_at = ? WHERE id = ?`, fmtTime(now), annotationID); err != nil {
		return Annotation{}, apperr.Transient("bump annotation updated_at", err)
	}
	if err := tx.Commit(); err != nil {
		return Annotation{}, apperr.Transient("add thread message", err)
	}
	return s.GetAnnotation(ctx, annotationID)
}

func (s *sqliteStore) AppendEvent(ctx context.Context, ev Event) (Event, error) {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return Event{}, apperr.Transient("marshal event payload", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO events(sequence, type, timestamp, session_id, payload_json) VALUES(?, ?, ?, ?, ?)`,
		ev.Sequence, string(ev.Type), fmtTime(ev.Timestamp), ev.SessionID, string(payload))
	if err != nil {
		return Event{}, apperr.Transient("append event", err)
	}
	return ev, nil
}

func scanEvent(row interface{ Scan(...any) error }) (Event, error) {
	var ev Event
	var typ, timestamp, payload string
	if err := row.Scan(&ev.Sequence, &typ, &timestamp, &ev.SessionID, &payload); err != nil {
		return Event{}, err
	}
	ev.Type = EventType(typ)
	t, err := parseTime(timestamp)
	if err != nil {
		return Event{}, err
	}
	ev.Timestamp = t
	var raw any
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return Event{}, err
	}
	ev.Payload = raw
	return ev, nil
}

func (s *sqliteStore) GetEventsSince(ctx context.Context, sessionID string, lastSequence int64, limit int) ([]Event, error) {
	query := `SELECT sequence, type, timestamp, session_id, payload_json FROM events
	          WHERE session_id = ? AND sequence > ? ORDER BY sequence`
	args := []any{sessionID, lastSequence}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Transient("events since", err)
	}
	defer rows.Close()
	return scanEventRows(rows)
}

func (s *sqliteStore) GetEventsSinceGlobal(ctx context.Context, lastSequence int64, limit int) ([]Event, error) {
	query := `SELECT sequence, type, timestamp, session_id, payload_json FROM events
	          WHERE sequence > ? ORDER BY sequence`
	args := []any{lastSequence}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Transient("events since global", err)
	}
	defer rows.Close()
	return scanEventRows(rows)
}

func scanEventRows(rows *sql.Rows) ([]Event, error) {
	out := make([]Event, 0)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, apperr.Transient("scan event", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *sqliteStore) DeleteEventsOlderThan(ctx context.Context, cutoffUnixNano int64) (int64, error) {
	cutoff := time.Unix(0, cutoffUnixNano).UTC()
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE timestamp < ?`, fmtTime(cutoff))
	if err != nil {
		return 0, apperr.Transient("delete old events", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}
