// Package sqlitestore provides a single-file SQLite implementation of
// feedback.Store for deployments without PostgreSQL.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	_ "modernc.org/sqlite"

	"github.com/misha7b/feedback-triage/internal/feedback"
)

var tracer = otel.Tracer("github.com/misha7b/feedback-triage/internal/feedback/sqlitestore")

// Timestamps are stored as unix nanoseconds so range filters and ordering
// compare integers.
const schema = `
CREATE TABLE IF NOT EXISTS feedback_items (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	source        TEXT    NOT NULL CHECK (source IN ('discord', 'twitter', 'github', 'support')),
	source_id     TEXT,
	author        TEXT    NOT NULL DEFAULT '',
	content       TEXT    NOT NULL,
	created_at    INTEGER NOT NULL,
	urgency       TEXT    CHECK (urgency IN ('low', 'medium', 'high', 'critical')),
	sentiment     TEXT    CHECK (sentiment IN ('positive', 'neutral', 'negative')),
	category      TEXT    CHECK (category IN ('bug', 'feature_request', 'question', 'complaint', 'praise', 'other')),
	triage_status TEXT    CHECK (triage_status IN ('escalate', 'backlog', 'duplicate', 'noise')),
	triaged_at    INTEGER,
	resolved_at   INTEGER,
	CHECK ((triage_status IS NULL) = (triaged_at IS NULL)),
	CHECK (resolved_at IS NULL OR triage_status IS NOT NULL)
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_feedback_source_source_id ON feedback_items (source, source_id);
CREATE INDEX IF NOT EXISTS idx_feedback_triage_status ON feedback_items (triage_status);
CREATE INDEX IF NOT EXISTS idx_feedback_source ON feedback_items (source);
CREATE INDEX IF NOT EXISTS idx_feedback_urgency ON feedback_items (urgency);
CREATE INDEX IF NOT EXISTS idx_feedback_created_at ON feedback_items (created_at);
CREATE INDEX IF NOT EXISTS idx_feedback_triaged_at ON feedback_items (triaged_at);
`

const itemColumns = `id, source, source_id, author, content, created_at,
	urgency, sentiment, category, triage_status, triaged_at, resolved_at`

// Store persists feedback items in a SQLite database file.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the database at path and applies the
// schema.
func New(ctx context.Context, path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("missing sqlite path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// one writer; SQLite serialises writes anyway and this avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is usable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) span(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "sqlitestore."+name, trace.WithAttributes(attribute.String("db.system", "sqlite")))
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// Insert stores a new item or returns the existing one for a known
// (source, source_id).
func (s *Store) Insert(ctx context.Context, in *feedback.NewItem) (*feedback.Item, bool, error) {
	ctx, span := s.span(ctx, "Insert")
	defer span.End()

	// created_at is stored as unix nanoseconds.
	if !feedback.ValidCreatedAt(in.CreatedAt) {
		return nil, false, fail(span, fmt.Errorf("created_at %s not representable: %w",
			in.CreatedAt.Format(time.RFC3339), feedback.ErrInvalidInput))
	}

	it, err := scanItem(s.db.QueryRowContext(ctx, `
INSERT INTO feedback_items (source, source_id, author, content, created_at, urgency, sentiment, category)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (source, source_id) DO NOTHING
RETURNING `+itemColumns,
		string(in.Source), nullString(in.SourceID), in.Author, in.Content, in.CreatedAt.UnixNano(),
		nullEnum(in.Urgency), nullEnum(in.Sentiment), nullEnum(in.Category),
	))
	if err != nil {
		return nil, false, fail(span, fmt.Errorf("insert: %w", err))
	}
	if it != nil {
		return it, true, nil
	}

	existing, err := scanItem(s.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM feedback_items WHERE source = ? AND source_id = ?`,
		string(in.Source), nullString(in.SourceID),
	))
	if err != nil {
		return nil, false, fail(span, fmt.Errorf("select existing: %w", err))
	}
	if existing == nil {
		return nil, false, fail(span, errors.New("conflicting row vanished"))
	}
	return existing, false, nil
}

// Get retrieves an item by ID.
func (s *Store) Get(ctx context.Context, id int64) (*feedback.Item, bool, error) {
	ctx, span := s.span(ctx, "Get")
	defer span.End()

	it, err := scanItem(s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM feedback_items WHERE id = ?`, id))
	if err != nil {
		return nil, false, fail(span, err)
	}
	return it, it != nil, nil
}

// NextPending returns the first untriaged item in queue order.
func (s *Store) NextPending(ctx context.Context) (*feedback.Item, bool, error) {
	ctx, span := s.span(ctx, "NextPending")
	defer span.End()

	it, err := scanItem(s.db.QueryRowContext(ctx, `
SELECT `+itemColumns+` FROM feedback_items
WHERE triage_status IS NULL
ORDER BY CASE urgency
	WHEN 'critical' THEN 1 WHEN 'high' THEN 2 WHEN 'medium' THEN 3 WHEN 'low' THEN 4 ELSE 5 END,
	created_at, id
LIMIT 1`))
	if err != nil {
		return nil, false, fail(span, err)
	}
	return it, it != nil, nil
}

// CountPending counts untriaged items.
func (s *Store) CountPending(ctx context.Context) (int, error) {
	ctx, span := s.span(ctx, "CountPending")
	defer span.End()
	return s.count(ctx, span, `SELECT count(*) FROM feedback_items WHERE triage_status IS NULL`)
}

// SetTriage overwrites the disposition and triage time.
func (s *Store) SetTriage(ctx context.Context, id int64, status feedback.Disposition, at time.Time) (*feedback.Item, bool, error) {
	ctx, span := s.span(ctx, "SetTriage")
	defer span.End()

	it, err := scanItem(s.db.QueryRowContext(ctx,
		`UPDATE feedback_items SET triage_status = ?, triaged_at = ? WHERE id = ? RETURNING `+itemColumns,
		string(status), at.UnixNano(), id,
	))
	if err != nil {
		return nil, false, fail(span, fmt.Errorf("set triage: %w", err))
	}
	return it, it != nil, nil
}

// SetResolved sets or clears resolved_at.
func (s *Store) SetResolved(ctx context.Context, id int64, at *time.Time) (*feedback.Item, bool, error) {
	ctx, span := s.span(ctx, "SetResolved")
	defer span.End()

	var v sql.NullInt64
	if at != nil {
		v = sql.NullInt64{Int64: at.UnixNano(), Valid: true}
	}
	it, err := scanItem(s.db.QueryRowContext(ctx,
		`UPDATE feedback_items SET resolved_at = ? WHERE id = ? RETURNING `+itemColumns, v, id,
	))
	if err != nil {
		return nil, false, fail(span, fmt.Errorf("set resolved: %w", err))
	}
	return it, it != nil, nil
}

// SetClassification fills classification fields that are still NULL.
func (s *Store) SetClassification(ctx context.Context, id int64, c feedback.Classification) (*feedback.Item, bool, error) {
	ctx, span := s.span(ctx, "SetClassification")
	defer span.End()

	it, err := scanItem(s.db.QueryRowContext(ctx, `
UPDATE feedback_items SET
	urgency   = COALESCE(urgency, ?),
	sentiment = COALESCE(sentiment, ?),
	category  = COALESCE(category, ?)
WHERE id = ? RETURNING `+itemColumns,
		nullEnum(c.Urgency), nullEnum(c.Sentiment), nullEnum(c.Category), id,
	))
	if err != nil {
		return nil, false, fail(span, fmt.Errorf("set classification: %w", err))
	}
	return it, it != nil, nil
}

// CountTriagedSince counts items triaged at or after since.
func (s *Store) CountTriagedSince(ctx context.Context, since time.Time) (int, error) {
	ctx, span := s.span(ctx, "CountTriagedSince")
	defer span.End()
	return s.count(ctx, span, `SELECT count(*) FROM feedback_items WHERE triaged_at >= ?`, since.UnixNano())
}

// CountByDecision groups triaged items by disposition.
func (s *Store) CountByDecision(ctx context.Context) (map[feedback.Disposition]int, error) {
	ctx, span := s.span(ctx, "CountByDecision")
	defer span.End()

	out, err := groupCounts[feedback.Disposition](ctx, s.db,
		`SELECT triage_status, count(*) FROM feedback_items WHERE triage_status IS NOT NULL GROUP BY triage_status`)
	if err != nil {
		return nil, fail(span, err)
	}
	return out, nil
}

// TopThemes ranks categories over pending and escalated items.
func (s *Store) TopThemes(ctx context.Context, limit int) ([]feedback.CategoryCount, error) {
	ctx, span := s.span(ctx, "TopThemes")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, `
SELECT category, count(*) AS n FROM feedback_items
WHERE category IS NOT NULL AND (triage_status IS NULL OR triage_status = 'escalate')
GROUP BY category
ORDER BY n DESC, category ASC
LIMIT ?`, limit)
	if err != nil {
		return nil, fail(span, fmt.Errorf("query: %w", err))
	}
	defer rows.Close()

	out := make([]feedback.CategoryCount, 0, limit)
	for rows.Next() {
		var (
			cat string
			n   int
		)
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, fail(span, fmt.Errorf("scan: %w", err))
		}
		out = append(out, feedback.CategoryCount{Category: feedback.Category(cat), Count: n})
	}
	if err := rows.Err(); err != nil {
		return nil, fail(span, fmt.Errorf("iterate: %w", err))
	}
	return out, nil
}

// CountPendingBySource groups pending items by source.
func (s *Store) CountPendingBySource(ctx context.Context) (map[feedback.Source]int, error) {
	ctx, span := s.span(ctx, "CountPendingBySource")
	defer span.End()

	out, err := groupCounts[feedback.Source](ctx, s.db,
		`SELECT source, count(*) FROM feedback_items WHERE triage_status IS NULL GROUP BY source`)
	if err != nil {
		return nil, fail(span, err)
	}
	return out, nil
}

// ListTriaged returns triaged items matching f in review order.
func (s *Store) ListTriaged(ctx context.Context, f feedback.TriagedFilter) ([]*feedback.Item, error) {
	ctx, span := s.span(ctx, "ListTriaged")
	defer span.End()

	var b strings.Builder
	b.WriteString(`SELECT ` + itemColumns + ` FROM feedback_items WHERE triage_status IS NOT NULL`)
	var args []any
	if f.Status != nil {
		b.WriteString(` AND triage_status = ?`)
		args = append(args, string(*f.Status))
	}
	if !f.IncludeResolved {
		b.WriteString(` AND resolved_at IS NULL`)
	}
	b.WriteString(` ORDER BY CASE triage_status
	WHEN 'escalate' THEN 1 WHEN 'backlog' THEN 2 WHEN 'duplicate' THEN 3 ELSE 4 END,
	triaged_at DESC, id DESC`)

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fail(span, fmt.Errorf("query: %w", err))
	}
	defer rows.Close()

	out := make([]*feedback.Item, 0)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fail(span, err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fail(span, fmt.Errorf("iterate: %w", err))
	}
	return out, nil
}

func (s *Store) count(ctx context.Context, span trace.Span, query string, args ...any) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fail(span, fmt.Errorf("count: %w", err))
	}
	return n, nil
}

func groupCounts[K ~string](ctx context.Context, db *sql.DB, query string) (map[K]int, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	out := make(map[K]int)
	for rows.Next() {
		var (
			key string
			n   int
		)
		if err := rows.Scan(&key, &n); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out[K(key)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanItem scans one row. Returns (nil, nil) when no row is found.
func scanItem(row scanner) (*feedback.Item, error) {
	var (
		it                                   feedback.Item
		source                               string
		sourceID                             sql.NullString
		created                              int64
		urgency, sentiment, category, status sql.NullString
		triagedAt, resolvedAt                sql.NullInt64
	)
	err := row.Scan(&it.ID, &source, &sourceID, &it.Author, &it.Content, &created,
		&urgency, &sentiment, &category, &status, &triagedAt, &resolvedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan: %w", err)
	}

	it.Source = feedback.Source(source)
	if sourceID.Valid {
		it.SourceID = &sourceID.String
	}
	it.CreatedAt = time.Unix(0, created).UTC()
	it.Urgency = enumPtr[feedback.Urgency](urgency)
	it.Sentiment = enumPtr[feedback.Sentiment](sentiment)
	it.Category = enumPtr[feedback.Category](category)
	it.TriageStatus = enumPtr[feedback.Disposition](status)
	it.TriagedAt = timePtr(triagedAt)
	it.ResolvedAt = timePtr(resolvedAt)
	return &it, nil
}

func enumPtr[T ~string](ns sql.NullString) *T {
	if !ns.Valid {
		return nil
	}
	v := T(ns.String)
	return &v
}

func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(0, n.Int64).UTC()
	return &t
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func nullEnum[T ~string](p *T) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*p), Valid: true}
}
