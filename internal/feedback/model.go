package feedback

import (
	"fmt"
	"time"
)

// Source is the system a feedback item was ingested from.
type Source string

const (
	SourceDiscord Source = "discord"
	SourceTwitter Source = "twitter"
	SourceGitHub  Source = "github"
	SourceSupport Source = "support"
)

// Sources lists every valid Source in display order.
var Sources = []Source{SourceDiscord, SourceTwitter, SourceGitHub, SourceSupport}

// Valid reports whether s is one of the known sources.
func (s Source) Valid() bool {
	switch s {
	case SourceDiscord, SourceTwitter, SourceGitHub, SourceSupport:
		return true
	}
	return false
}

// ParseSource converts a raw string into a Source.
func ParseSource(raw string) (Source, error) {
	s := Source(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown source %q: %w", raw, ErrInvalidInput)
	}
	return s, nil
}

// Urgency is the enrichment-assigned priority of an item.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// Valid reports whether u is one of the known urgency levels.
func (u Urgency) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical:
		return true
	}
	return false
}

// ParseUrgency converts a raw string into an Urgency.
func ParseUrgency(raw string) (Urgency, error) {
	u := Urgency(raw)
	if !u.Valid() {
		return "", fmt.Errorf("unknown urgency %q: %w", raw, ErrInvalidInput)
	}
	return u, nil
}

// Sentiment is the enrichment-assigned tone of an item.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Valid reports whether s is one of the known sentiments.
func (s Sentiment) Valid() bool {
	switch s {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return true
	}
	return false
}

// ParseSentiment converts a raw string into a Sentiment.
func ParseSentiment(raw string) (Sentiment, error) {
	s := Sentiment(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown sentiment %q: %w", raw, ErrInvalidInput)
	}
	return s, nil
}

// Category is the enrichment-assigned kind of an item.
type Category string

const (
	CategoryBug            Category = "bug"
	CategoryFeatureRequest Category = "feature_request"
	CategoryQuestion       Category = "question"
	CategoryComplaint      Category = "complaint"
	CategoryPraise         Category = "praise"
	CategoryOther          Category = "other"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryBug, CategoryFeatureRequest, CategoryQuestion, CategoryComplaint, CategoryPraise, CategoryOther:
		return true
	}
	return false
}

// ParseCategory converts a raw string into a Category.
func ParseCategory(raw string) (Category, error) {
	c := Category(raw)
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q: %w", raw, ErrInvalidInput)
	}
	return c, nil
}

// Disposition is the reviewer's triage decision for an item.
type Disposition string

const (
	DispositionEscalate  Disposition = "escalate"
	DispositionBacklog   Disposition = "backlog"
	DispositionDuplicate Disposition = "duplicate"
	DispositionNoise     Disposition = "noise"
)

// Dispositions lists every valid Disposition in rank order.
var Dispositions = []Disposition{DispositionEscalate, DispositionBacklog, DispositionDuplicate, DispositionNoise}

// Valid reports whether d is one of the four dispositions.
func (d Disposition) Valid() bool {
	return d.Rank() != 0
}

// Rank is the listing order of a disposition, 1 for escalate through 4
// for noise. Unknown values rank 0.
func (d Disposition) Rank() int {
	switch d {
	case DispositionEscalate:
		return 1
	case DispositionBacklog:
		return 2
	case DispositionDuplicate:
		return 3
	case DispositionNoise:
		return 4
	}
	return 0
}

// ParseDisposition converts a raw string into a Disposition.
func ParseDisposition(raw string) (Disposition, error) {
	d := Disposition(raw)
	if !d.Valid() {
		return "", fmt.Errorf("unknown disposition %q: %w", raw, ErrInvalidStatus)
	}
	return d, nil
}

// Item is a single piece of customer feedback and its triage state.
type Item struct {
	ID        int64     `json:"id"`
	Source    Source    `json:"source"`
	SourceID  *string   `json:"source_id"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`

	Urgency   *Urgency   `json:"urgency"`
	Sentiment *Sentiment `json:"sentiment"`
	Category  *Category  `json:"category"`

	TriageStatus *Disposition `json:"triage_status"`
	TriagedAt    *time.Time   `json:"triaged_at"`
	ResolvedAt   *time.Time   `json:"resolved_at"`
}

// Pending reports whether the item has not been triaged yet.
func (it *Item) Pending() bool {
	return it.TriageStatus == nil
}

// Resolved reports whether the item is marked resolved.
func (it *Item) Resolved() bool {
	return it.ResolvedAt != nil
}

// Clone returns a deep copy of the item.
func (it *Item) Clone() *Item {
	cp := *it
	cp.SourceID = clonePtr(it.SourceID)
	cp.Urgency = clonePtr(it.Urgency)
	cp.Sentiment = clonePtr(it.Sentiment)
	cp.Category = clonePtr(it.Category)
	cp.TriageStatus = clonePtr(it.TriageStatus)
	cp.TriagedAt = clonePtr(it.TriagedAt)
	cp.ResolvedAt = clonePtr(it.ResolvedAt)
	return &cp
}

// Classification is the output of an enrichment pass. Nil fields are
// unknown.
type Classification struct {
	Urgency   *Urgency   `json:"urgency"`
	Sentiment *Sentiment `json:"sentiment"`
	Category  *Category  `json:"category"`
}

// Complete reports whether every field is set.
func (c Classification) Complete() bool {
	return c.Urgency != nil && c.Sentiment != nil && c.Category != nil
}

// Empty reports whether no field is set.
func (c Classification) Empty() bool {
	return c.Urgency == nil && c.Sentiment == nil && c.Category == nil
}

// CreatedAt values outside [MinCreatedAt, MaxCreatedAt) are rejected at
// ingestion. Every store can represent the range at nanosecond precision.
var (
	MinCreatedAt = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
	MaxCreatedAt = time.Date(2200, 1, 1, 0, 0, 0, 0, time.UTC)
)

// ValidCreatedAt reports whether t is within the accepted creation range.
func ValidCreatedAt(t time.Time) bool {
	return !t.Before(MinCreatedAt) && t.Before(MaxCreatedAt)
}

// NewItem is the ingestion payload for a feedback item.
type NewItem struct {
	Source    Source
	SourceID  *string
	Author    string
	Content   string
	CreatedAt time.Time
	Classification
}

// TriagedFilter selects triaged items for review.
type TriagedFilter struct {
	Status          *Disposition
	IncludeResolved bool
}

// Match reports whether a triaged item passes the filter.
func (f TriagedFilter) Match(it *Item) bool {
	if it.TriageStatus == nil {
		return false
	}
	if f.Status != nil && *it.TriageStatus != *f.Status {
		return false
	}
	if !f.IncludeResolved && it.ResolvedAt != nil {
		return false
	}
	return true
}

// CategoryCount is one row of the emerging themes ranking.
type CategoryCount struct {
	Category Category `json:"category"`
	Count    int      `json:"count"`
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
