// Package feedbackapi exposes the triage workflow over HTTP.
package feedbackapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/misha7b/feedback-triage/internal/feedback"
)

// maxBatch caps the number of items accepted by one ingestion request.
const maxBatch = 500

// FeedbackService defines the business operations feedbackapi needs.
type FeedbackService interface {
	NextPending(ctx context.Context) (*feedback.Item, int, error)
	ApplyDecision(ctx context.Context, id int64, status string) (*feedback.Item, error)
	SetResolved(ctx context.Context, id int64, resolved bool) (*feedback.Item, error)
	Stats(ctx context.Context) (*feedback.Stats, error)
	ListTriaged(ctx context.Context, f feedback.TriagedFilter) ([]*feedback.Item, error)
	Ingest(ctx context.Context, batch []feedback.NewItem) (*feedback.IngestResult, error)
	Get(ctx context.Context, id int64) (*feedback.Item, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger log.Logger
	svc    FeedbackService
}

// New creates a new API handler.
func New(logger log.Logger, svc FeedbackService) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("feedback service is required"))
	}
	return &API{
		logger: logger,
		svc:    svc,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/queue/next", a.handleNextPending)
		r.Get("/stats", a.handleStats)
		r.Get("/triaged", a.handleListTriaged)

		r.Post("/feedback", a.handleIngest)
		r.Route("/feedback/{id}", func(r chi.Router) {
			r.Get("/", a.handleGet)
			r.Post("/decision", a.handleDecision)
			r.Post("/resolution", a.handleResolution)
		})
	})
}

// itemID parses the {id} path parameter and tags the request span with it.
func itemID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, invalidInput("id must be a positive integer, got %q", raw)
	}
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.Int64("feedback.item_id", id))
	return id, nil
}
