package feedbackapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/misha7b/feedback-triage/internal/feedback"
)

// statsResponse is feedback.Stats with every disposition and source
// present, zero when no item has it.
type statsResponse struct {
	TriagedToday   int                          `json:"triaged_today"`
	Pending        int                          `json:"pending"`
	ByDecision     map[feedback.Disposition]int `json:"by_decision"`
	EmergingThemes []feedback.CategoryCount     `json:"emerging_themes"`
	BySource       map[feedback.Source]int      `json:"by_source"`
	ComputedAt     time.Time                    `json:"computed_at"`
}

func newStatsResponse(st *feedback.Stats) statsResponse {
	resp := statsResponse{
		TriagedToday:   st.TriagedToday,
		Pending:        st.Pending,
		ByDecision:     make(map[feedback.Disposition]int, len(feedback.Dispositions)),
		EmergingThemes: st.EmergingThemes,
		BySource:       make(map[feedback.Source]int, len(feedback.Sources)),
		ComputedAt:     st.ComputedAt,
	}
	for _, d := range feedback.Dispositions {
		resp.ByDecision[d] = st.ByDecision[d]
	}
	for _, s := range feedback.Sources {
		resp.BySource[s] = st.BySource[s]
	}
	if resp.EmergingThemes == nil {
		resp.EmergingThemes = []feedback.CategoryCount{}
	}
	return resp
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := a.svc.Stats(r.Context())
	if err != nil {
		a.writeError(w, r, err, "failed to compute stats")
		return
	}
	writeJSON(w, http.StatusOK, newStatsResponse(st))
}

type triagedResponse struct {
	Items []*feedback.Item `json:"items"`
	Count int              `json:"count"`
}

// parseTriagedFilter reads ?status= and ?include_resolved= from the query.
func parseTriagedFilter(r *http.Request) (feedback.TriagedFilter, error) {
	var f feedback.TriagedFilter
	q := r.URL.Query()

	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		d, err := feedback.ParseDisposition(raw)
		if err != nil {
			return f, err
		}
		f.Status = &d
	}
	if raw := strings.TrimSpace(q.Get("include_resolved")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return f, invalidInput("include_resolved must be a boolean, got %q", raw)
		}
		f.IncludeResolved = v
	}
	return f, nil
}

func (a *API) handleListTriaged(w http.ResponseWriter, r *http.Request) {
	f, err := parseTriagedFilter(r)
	if err != nil {
		a.writeError(w, r, err, "")
		return
	}

	items, err := a.svc.ListTriaged(r.Context(), f)
	if err != nil {
		a.writeError(w, r, err, "failed to list triaged items")
		return
	}

	trace.SpanFromContext(r.Context()).SetAttributes(
		attribute.Bool("feedback.include_resolved", f.IncludeResolved),
		attribute.Int("feedback.rows", len(items)),
	)
	writeJSON(w, http.StatusOK, triagedResponse{Items: items, Count: len(items)})
}
