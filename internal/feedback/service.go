package feedback

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"
	"github.com/oklog/ulid/v2"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/semaphore"
)

const (
	defaultEnrichTimeout     = 30 * time.Second
	defaultEnrichConcurrency = 4
	notifyTimeout            = 15 * time.Second
	statsCacheKey            = "stats"
)

// Classifier is the enrichment provider: it assigns urgency, sentiment and
// category to an item. Any field may come back nil.
type Classifier interface {
	Name() string
	Classify(ctx context.Context, item *Item) (*Classification, error)
}

// Notifier is told about items escalated by a reviewer.
type Notifier interface {
	NotifyEscalation(ctx context.Context, item *Item) error
}

// Options configures optional Service collaborators. The zero value is a
// service with no enrichment, no notifications, no stats cache and no
// metrics.
type Options struct {
	Metrics       *Metrics
	Classifier    Classifier
	Notifier      Notifier
	EnrichTimeout time.Duration
	// EnrichConcurrency caps in-flight Classify calls across all batches.
	// Zero means 4.
	EnrichConcurrency int
	StatsTTL          time.Duration
	Now               func() time.Time
}

// Service is the business boundary for the triage workflow.
type Service struct {
	store         Store
	logger        log.Logger
	metrics       *Metrics
	classifier    Classifier
	notifier      Notifier
	enrichTimeout time.Duration
	enrichSem     *semaphore.Weighted
	statsCache    *cache.Cache
	now           func() time.Time
}

// NewService creates a feedback service over store.
func NewService(store Store, logger log.Logger, opts Options) *Service {
	if store == nil {
		panic(xerrors.New("feedback store is required"))
	}
	if logger == nil {
		logger = log.Nop()
	}
	s := &Service{
		store:         store,
		logger:        logger,
		metrics:       opts.Metrics,
		classifier:    opts.Classifier,
		notifier:      opts.Notifier,
		enrichTimeout: opts.EnrichTimeout,
		now:           opts.Now,
	}
	if s.enrichTimeout <= 0 {
		s.enrichTimeout = defaultEnrichTimeout
	}
	limit := opts.EnrichConcurrency
	if limit <= 0 {
		limit = defaultEnrichConcurrency
	}
	s.enrichSem = semaphore.NewWeighted(int64(limit))
	if s.now == nil {
		s.now = time.Now
	}
	if opts.StatsTTL > 0 {
		s.statsCache = cache.New(opts.StatsTTL, 2*opts.StatsTTL)
	}
	return s
}

// NextPending returns the highest priority pending item, or nil when the
// queue is empty, together with the number of pending items. The item is
// not reserved: concurrent callers may be handed the same one.
func (s *Service) NextPending(ctx context.Context) (*Item, int, error) {
	item, ok, err := s.store.NextPending(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("next pending: %w", err)
	}
	remaining, err := s.store.CountPending(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("count pending: %w", err)
	}
	s.metrics.queueDepth(remaining)
	if !ok {
		return nil, remaining, nil
	}
	return item, remaining, nil
}

// ApplyDecision sets the item's disposition and stamps triaged_at. An
// already triaged item is re-triaged: the last decision wins.
func (s *Service) ApplyDecision(ctx context.Context, id int64, status string) (*Item, error) {
	d, err := ParseDisposition(status)
	if err != nil {
		return nil, err
	}

	item, ok, err := s.store.SetTriage(ctx, id, d, s.now())
	if err != nil {
		return nil, fmt.Errorf("set triage: %w", err)
	}
	if !ok {
		return nil, notFound(id)
	}

	s.metrics.decision(d)
	s.invalidateStats()
	s.logger.Info(ctx, "triage decision applied", "item_id", id, "status", d)

	if d == DispositionEscalate && s.notifier != nil {
		go s.notifyEscalation(context.WithoutCancel(ctx), item.Clone())
	}
	return item, nil
}

// SetResolved marks a triaged item resolved, or clears the mark. A pending
// item cannot be resolved; clearing a pending item is a no-op.
func (s *Service) SetResolved(ctx context.Context, id int64, resolved bool) (*Item, error) {
	current, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if !ok {
		return nil, notFound(id)
	}
	if current.Pending() {
		if resolved {
			return nil, fmt.Errorf("item %d: %w", id, ErrNotTriaged)
		}
		return current, nil
	}

	var at *time.Time
	if resolved {
		now := s.now()
		at = &now
	}
	item, ok, err := s.store.SetResolved(ctx, id, at)
	if err != nil {
		return nil, fmt.Errorf("set resolved: %w", err)
	}
	if !ok {
		return nil, notFound(id)
	}

	s.metrics.resolution(resolved)
	s.invalidateStats()
	s.logger.Info(ctx, "resolution updated", "item_id", id, "resolved", resolved)
	return item, nil
}

// ListTriaged returns triaged items matching f, escalations first and most
// recently triaged first within a disposition.
func (s *Service) ListTriaged(ctx context.Context, f TriagedFilter) ([]*Item, error) {
	if f.Status != nil && !f.Status.Valid() {
		return nil, fmt.Errorf("filter %q: %w", *f.Status, ErrInvalidStatus)
	}
	items, err := s.store.ListTriaged(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list triaged: %w", err)
	}
	if items == nil {
		items = []*Item{}
	}
	return items, nil
}

// Get returns a single item.
func (s *Service) Get(ctx context.Context, id int64) (*Item, error) {
	item, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if !ok {
		return nil, notFound(id)
	}
	return item, nil
}

// IngestedItem is the per-item outcome of an ingestion batch.
type IngestedItem struct {
	Item    *Item `json:"item"`
	Created bool  `json:"created"`
}

// IngestResult is the outcome of an ingestion batch.
type IngestResult struct {
	BatchID string         `json:"batch_id"`
	Items   []IngestedItem `json:"items"`
}

// Ingest validates and stores a batch of feedback items. The whole batch is
// rejected if any item is invalid. Items already known by (source,
// source_id) are returned unchanged with Created=false. New items missing
// any classification field are enriched in the background.
func (s *Service) Ingest(ctx context.Context, batch []NewItem) (*IngestResult, error) {
	if len(batch) == 0 {
		return nil, fmt.Errorf("empty batch: %w", ErrInvalidInput)
	}
	for i := range batch {
		if err := normalizeNewItem(&batch[i], s.now); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
	}

	batchID := ulid.Make().String()
	L := s.logger.With("batch_id", batchID)
	res := &IngestResult{BatchID: batchID, Items: make([]IngestedItem, 0, len(batch))}

	for i := range batch {
		in := &batch[i]
		item, created, err := s.store.Insert(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("insert item %d: %w", i, err)
		}
		s.metrics.ingested(in.Source, created)
		res.Items = append(res.Items, IngestedItem{Item: item, Created: created})

		if created && s.classifier != nil && !in.Classification.Complete() {
			go s.enrich(context.WithoutCancel(ctx), batchID, item.ID)
		}
	}

	s.invalidateStats()
	L.Info(ctx, "ingested feedback", "items", len(res.Items))
	return res, nil
}

func (s *Service) enrich(ctx context.Context, batchID string, id int64) {
	// Queued items wait for a slot; the timeout starts once one is held.
	if err := s.enrichSem.Acquire(ctx, 1); err != nil {
		return
	}
	defer s.enrichSem.Release(1)

	ctx, cancel := context.WithTimeout(ctx, s.enrichTimeout)
	defer cancel()

	L := s.logger.With("batch_id", batchID, "item_id", id, "classifier", s.classifier.Name())

	item, ok, err := s.store.Get(ctx, id)
	if err == nil && !ok {
		err = notFound(id)
	}
	if err != nil {
		L.Error(ctx, err, "failed to fetch item for enrichment")
		s.metrics.enrichment("error", 0)
		return
	}

	start := time.Now()
	c, err := s.classifier.Classify(ctx, item)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		L.Error(ctx, err, "classification failed")
		s.metrics.enrichment("error", elapsed)
		return
	}
	if c == nil || c.Empty() {
		L.Warn(ctx, "classifier returned no fields")
		s.metrics.enrichment("empty", elapsed)
		return
	}

	if _, _, err := s.store.SetClassification(ctx, id, *c); err != nil {
		L.Error(ctx, err, "failed to persist classification")
		s.metrics.enrichment("error", elapsed)
		return
	}
	s.invalidateStats()
	s.metrics.enrichment("ok", elapsed)

	L.Info(ctx, "enrichment complete",
		"urgency", derefString(c.Urgency),
		"sentiment", derefString(c.Sentiment),
		"category", derefString(c.Category),
		"duration", elapsed,
	)
}

func (s *Service) notifyEscalation(ctx context.Context, item *Item) {
	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()

	err := s.notifier.NotifyEscalation(ctx, item)
	s.metrics.notification(err)
	if err != nil {
		s.logger.Error(ctx, err, "escalation notification failed", "item_id", item.ID)
	}
}

func normalizeNewItem(in *NewItem, now func() time.Time) error {
	if !in.Source.Valid() {
		return fmt.Errorf("unknown source %q: %w", in.Source, ErrInvalidInput)
	}
	in.Content = strings.TrimSpace(in.Content)
	if in.Content == "" {
		return fmt.Errorf("content is required: %w", ErrInvalidInput)
	}
	in.Author = strings.TrimSpace(in.Author)
	if in.SourceID != nil {
		sid := strings.TrimSpace(*in.SourceID)
		if sid == "" {
			in.SourceID = nil
		} else {
			in.SourceID = &sid
		}
	}
	if in.Urgency != nil && !in.Urgency.Valid() {
		return fmt.Errorf("unknown urgency %q: %w", *in.Urgency, ErrInvalidInput)
	}
	if in.Sentiment != nil && !in.Sentiment.Valid() {
		return fmt.Errorf("unknown sentiment %q: %w", *in.Sentiment, ErrInvalidInput)
	}
	if in.Category != nil && !in.Category.Valid() {
		return fmt.Errorf("unknown category %q: %w", *in.Category, ErrInvalidInput)
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = now()
	}
	if !ValidCreatedAt(in.CreatedAt) {
		return fmt.Errorf("created_at %s outside %d..%d: %w",
			in.CreatedAt.Format(time.RFC3339), MinCreatedAt.Year(), MaxCreatedAt.Year()-1, ErrInvalidInput)
	}
	return nil
}

func derefString[T ~string](p *T) string {
	if p == nil {
		return ""
	}
	return string(*p)
}
