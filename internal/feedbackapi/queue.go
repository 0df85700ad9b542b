package feedbackapi

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/misha7b/feedback-triage/internal/feedback"
)

type nextResponse struct {
	Item      *feedback.Item `json:"item"`
	Remaining int            `json:"remaining"`
}

type decisionRequest struct {
	Status string `json:"status"`
}

type resolutionRequest struct {
	Resolved *bool `json:"resolved"`
}

func (a *API) handleNextPending(w http.ResponseWriter, r *http.Request) {
	item, remaining, err := a.svc.NextPending(r.Context())
	if err != nil {
		a.writeError(w, r, err, "failed to fetch next pending item")
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.Int("feedback.remaining", remaining))
	if item != nil {
		span.SetAttributes(attribute.Int64("feedback.item_id", item.ID))
	}

	writeJSON(w, http.StatusOK, nextResponse{Item: item, Remaining: remaining})
}

func (a *API) handleDecision(w http.ResponseWriter, r *http.Request) {
	id, err := itemID(r)
	if err != nil {
		a.writeError(w, r, err, "")
		return
	}

	var req decisionRequest
	if err := decodeBody(r, &req); err != nil {
		a.writeError(w, r, err, "")
		return
	}
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("feedback.status", req.Status))

	item, err := a.svc.ApplyDecision(r.Context(), id, req.Status)
	if err != nil {
		a.writeError(w, r, err, "failed to apply decision")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (a *API) handleResolution(w http.ResponseWriter, r *http.Request) {
	id, err := itemID(r)
	if err != nil {
		a.writeError(w, r, err, "")
		return
	}

	var req resolutionRequest
	if err := decodeBody(r, &req); err != nil {
		a.writeError(w, r, err, "")
		return
	}
	if req.Resolved == nil {
		a.writeError(w, r, invalidInput("resolved must be a boolean"), "")
		return
	}

	item, err := a.svc.SetResolved(r.Context(), id, *req.Resolved)
	if err != nil {
		a.writeError(w, r, err, "failed to update resolution")
		return
	}
	writeJSON(w, http.StatusOK, item)
}
