package feedbackapi

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/misha7b/feedback-triage/internal/feedback"
)

type ingestItem struct {
	Source    feedback.Source     `json:"source"`
	SourceID  *string             `json:"source_id"`
	Author    string              `json:"author"`
	Content   string              `json:"content"`
	CreatedAt *time.Time          `json:"created_at"`
	Urgency   *feedback.Urgency   `json:"urgency"`
	Sentiment *feedback.Sentiment `json:"sentiment"`
	Category  *feedback.Category  `json:"category"`
}

type ingestRequest struct {
	Items []ingestItem `json:"items"`
}

func (in ingestItem) toNewItem() feedback.NewItem {
	ni := feedback.NewItem{
		Source:   in.Source,
		SourceID: in.SourceID,
		Author:   in.Author,
		Content:  in.Content,
		Classification: feedback.Classification{
			Urgency:   in.Urgency,
			Sentiment: in.Sentiment,
			Category:  in.Category,
		},
	}
	if in.CreatedAt != nil {
		ni.CreatedAt = *in.CreatedAt
	}
	return ni
}

func (a *API) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := decodeBody(r, &req); err != nil {
		a.writeError(w, r, err, "")
		return
	}
	if len(req.Items) > maxBatch {
		a.writeError(w, r, invalidInput("batch of %d items exceeds limit of %d", len(req.Items), maxBatch), "")
		return
	}

	batch := make([]feedback.NewItem, len(req.Items))
	for i, it := range req.Items {
		batch[i] = it.toNewItem()
	}

	res, err := a.svc.Ingest(r.Context(), batch)
	if err != nil {
		a.writeError(w, r, err, "failed to ingest feedback")
		return
	}

	created := 0
	for _, it := range res.Items {
		if it.Created {
			created++
		}
	}
	trace.SpanFromContext(r.Context()).SetAttributes(
		attribute.String("feedback.batch_id", res.BatchID),
		attribute.Int("feedback.created", created),
	)

	status := http.StatusOK
	if created > 0 {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}

func (a *API) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := itemID(r)
	if err != nil {
		a.writeError(w, r, err, "")
		return
	}
	item, err := a.svc.Get(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err, "failed to get item")
		return
	}
	writeJSON(w, http.StatusOK, item)
}
