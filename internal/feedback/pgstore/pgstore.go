// Package pgstore provides a PostgreSQL implementation of feedback.Store.
package pgstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/misha7b/feedback-triage/internal/feedback"
)

var tracer = otel.Tracer("github.com/misha7b/feedback-triage/internal/feedback/pgstore")

//go:embed schema.sql
var schema string

// Store persists feedback items in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema on pool and returns a ready Store. The caller
// owns the pool.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close shuts down the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const itemColumns = `id, source, source_id, author, content, created_at,
	urgency, sentiment, category, triage_status, triaged_at, resolved_at`

const urgencyRank = `CASE urgency
	WHEN 'critical' THEN 1 WHEN 'high' THEN 2 WHEN 'medium' THEN 3 WHEN 'low' THEN 4
	ELSE 5 END`

const dispositionRank = `CASE triage_status
	WHEN 'escalate' THEN 1 WHEN 'backlog' THEN 2 WHEN 'duplicate' THEN 3 WHEN 'noise' THEN 4
	ELSE 5 END`

func startSpan(ctx context.Context, name, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "pgstore."+name, trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", op),
	))
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// Insert stores a new item. When (source, source_id) already exists the
// stored row is returned with created=false.
func (s *Store) Insert(ctx context.Context, in *feedback.NewItem) (*feedback.Item, bool, error) {
	ctx, span := startSpan(ctx, "Insert", "INSERT")
	defer span.End()

	query := `INSERT INTO feedback_items (source, source_id, author, content, created_at, urgency, sentiment, category)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (source, source_id) DO NOTHING
		RETURNING ` + itemColumns
	it, err := scanItem(s.pool.QueryRow(ctx, query,
		string(in.Source), in.SourceID, in.Author, in.Content, in.CreatedAt,
		enumArg(in.Urgency), enumArg(in.Sentiment), enumArg(in.Category),
	))
	if err != nil {
		return nil, false, fail(span, fmt.Errorf("insert: %w", err))
	}
	if it != nil {
		span.SetAttributes(attribute.Int64("feedback.item_id", it.ID))
		return it, true, nil
	}

	// conflict: the row exists already
	existing, err := scanItem(s.pool.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM feedback_items WHERE source = $1 AND source_id = $2`,
		string(in.Source), in.SourceID,
	))
	if err != nil {
		return nil, false, fail(span, fmt.Errorf("select existing: %w", err))
	}
	if existing == nil {
		return nil, false, fail(span, errors.New("conflicting row vanished"))
	}
	span.SetAttributes(attribute.Int64("feedback.item_id", existing.ID), attribute.Bool("feedback.duplicate", true))
	return existing, false, nil
}

// Get retrieves an item by ID.
func (s *Store) Get(ctx context.Context, id int64) (*feedback.Item, bool, error) {
	ctx, span := startSpan(ctx, "Get", "SELECT")
	defer span.End()

	it, err := scanItem(s.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM feedback_items WHERE id = $1`, id))
	if err != nil {
		return nil, false, fail(span, err)
	}
	return it, it != nil, nil
}

// NextPending returns the first untriaged item by urgency rank, then age.
func (s *Store) NextPending(ctx context.Context) (*feedback.Item, bool, error) {
	ctx, span := startSpan(ctx, "NextPending", "SELECT")
	defer span.End()

	query := `SELECT ` + itemColumns + ` FROM feedback_items
		WHERE triage_status IS NULL
		ORDER BY ` + urgencyRank + `, created_at ASC, id ASC
		LIMIT 1`
	it, err := scanItem(s.pool.QueryRow(ctx, query))
	if err != nil {
		return nil, false, fail(span, err)
	}
	return it, it != nil, nil
}

// CountPending counts untriaged items.
func (s *Store) CountPending(ctx context.Context) (int, error) {
	ctx, span := startSpan(ctx, "CountPending", "SELECT")
	defer span.End()

	return s.count(ctx, span, `SELECT count(*) FROM feedback_items WHERE triage_status IS NULL`)
}

// SetTriage overwrites the disposition and triage time.
func (s *Store) SetTriage(ctx context.Context, id int64, status feedback.Disposition, at time.Time) (*feedback.Item, bool, error) {
	ctx, span := startSpan(ctx, "SetTriage", "UPDATE")
	defer span.End()

	query := `UPDATE feedback_items SET triage_status = $2, triaged_at = $3
		WHERE id = $1 RETURNING ` + itemColumns
	it, err := scanItem(s.pool.QueryRow(ctx, query, id, string(status), at))
	if err != nil {
		return nil, false, fail(span, fmt.Errorf("set triage: %w", err))
	}
	return it, it != nil, nil
}

// SetResolved sets or clears resolved_at.
func (s *Store) SetResolved(ctx context.Context, id int64, at *time.Time) (*feedback.Item, bool, error) {
	ctx, span := startSpan(ctx, "SetResolved", "UPDATE")
	defer span.End()

	query := `UPDATE feedback_items SET resolved_at = $2
		WHERE id = $1 RETURNING ` + itemColumns
	it, err := scanItem(s.pool.QueryRow(ctx, query, id, at))
	if err != nil {
		return nil, false, fail(span, fmt.Errorf("set resolved: %w", err))
	}
	return it, it != nil, nil
}

// SetClassification fills classification fields that are still NULL.
func (s *Store) SetClassification(ctx context.Context, id int64, c feedback.Classification) (*feedback.Item, bool, error) {
	ctx, span := startSpan(ctx, "SetClassification", "UPDATE")
	defer span.End()

	query := `UPDATE feedback_items SET
			urgency   = COALESCE(urgency, $2),
			sentiment = COALESCE(sentiment, $3),
			category  = COALESCE(category, $4)
		WHERE id = $1 RETURNING ` + itemColumns
	it, err := scanItem(s.pool.QueryRow(ctx, query, id,
		enumArg(c.Urgency), enumArg(c.Sentiment), enumArg(c.Category),
	))
	if err != nil {
		return nil, false, fail(span, fmt.Errorf("set classification: %w", err))
	}
	return it, it != nil, nil
}

// CountTriagedSince counts items triaged at or after since.
func (s *Store) CountTriagedSince(ctx context.Context, since time.Time) (int, error) {
	ctx, span := startSpan(ctx, "CountTriagedSince", "SELECT")
	defer span.End()

	return s.count(ctx, span, `SELECT count(*) FROM feedback_items WHERE triaged_at >= $1`, since)
}

// CountByDecision groups triaged items by disposition.
func (s *Store) CountByDecision(ctx context.Context) (map[feedback.Disposition]int, error) {
	ctx, span := startSpan(ctx, "CountByDecision", "SELECT")
	defer span.End()

	rows, err := s.pool.Query(ctx, `SELECT triage_status, count(*) FROM feedback_items
		WHERE triage_status IS NOT NULL GROUP BY triage_status`)
	if err != nil {
		return nil, fail(span, fmt.Errorf("query: %w", err))
	}
	out, err := collectCounts[feedback.Disposition](rows)
	if err != nil {
		return nil, fail(span, err)
	}
	return out, nil
}

// TopThemes ranks categories over pending and escalated items.
func (s *Store) TopThemes(ctx context.Context, limit int) ([]feedback.CategoryCount, error) {
	ctx, span := startSpan(ctx, "TopThemes", "SELECT")
	defer span.End()

	rows, err := s.pool.Query(ctx, `SELECT category, count(*) AS n FROM feedback_items
		WHERE category IS NOT NULL AND (triage_status IS NULL OR triage_status = 'escalate')
		GROUP BY category
		ORDER BY n DESC, category ASC
		LIMIT $1`, limit)
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
	ctx, span := startSpan(ctx, "CountPendingBySource", "SELECT")
	defer span.End()

	rows, err := s.pool.Query(ctx, `SELECT source, count(*) FROM feedback_items
		WHERE triage_status IS NULL GROUP BY source`)
	if err != nil {
		return nil, fail(span, fmt.Errorf("query: %w", err))
	}
	out, err := collectCounts[feedback.Source](rows)
	if err != nil {
		return nil, fail(span, err)
	}
	return out, nil
}

// ListTriaged returns triaged items matching f in review order.
func (s *Store) ListTriaged(ctx context.Context, f feedback.TriagedFilter) ([]*feedback.Item, error) {
	ctx, span := startSpan(ctx, "ListTriaged", "SELECT")
	defer span.End()

	var status *string
	if f.Status != nil {
		v := string(*f.Status)
		status = &v
		span.SetAttributes(attribute.String("feedback.status", v))
	}

	query := `SELECT ` + itemColumns + ` FROM feedback_items
		WHERE triage_status IS NOT NULL
		  AND ($1::text IS NULL OR triage_status = $1)
		  AND ($2 OR resolved_at IS NULL)
		ORDER BY ` + dispositionRank + `, triaged_at DESC, id DESC`
	rows, err := s.pool.Query(ctx, query, status, f.IncludeResolved)
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
	span.SetAttributes(attribute.Int("feedback.rows", len(out)))
	return out, nil
}

func (s *Store) count(ctx context.Context, span trace.Span, query string, args ...any) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fail(span, fmt.Errorf("count: %w", err))
	}
	return n, nil
}

func collectCounts[K ~string](rows pgx.Rows) (map[K]int, error) {
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

// scanItem scans one feedback row. Returns (nil, nil) when no row is found.
func scanItem(row pgx.Row) (*feedback.Item, error) {
	var (
		it                                    feedback.Item
		source                                string
		urgency, sentiment, category, triaged *string
	)
	err := row.Scan(
		&it.ID, &source, &it.SourceID, &it.Author, &it.Content, &it.CreatedAt,
		&urgency, &sentiment, &category, &triaged, &it.TriagedAt, &it.ResolvedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan: %w", err)
	}
	it.Source = feedback.Source(source)
	it.Urgency = enumPtr[feedback.Urgency](urgency)
	it.Sentiment = enumPtr[feedback.Sentiment](sentiment)
	it.Category = enumPtr[feedback.Category](category)
	it.TriageStatus = enumPtr[feedback.Disposition](triaged)
	return &it, nil
}

func enumPtr[T ~string](s *string) *T {
	if s == nil {
		return nil
	}
	v := T(*s)
	return &v
}

func enumArg[T ~string](p *T) *string {
	if p == nil {
		return nil
	}
	v := string(*p)
	return &v
}
