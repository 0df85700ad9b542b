// Package memstore provides an in-memory implementation of feedback.Store.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/misha7b/feedback-triage/internal/feedback"
)

// Store holds feedback items in memory. Suitable for dev/testing.
type Store struct {
	mu     sync.RWMutex
	nextID int64
	items  map[int64]*feedback.Item // item ID -> item
	seen   map[dedupKey]int64       // (source, source_id) -> item ID
}

type dedupKey struct {
	source   feedback.Source
	sourceID string
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		items: make(map[int64]*feedback.Item),
		seen:  make(map[dedupKey]int64),
	}
}

// Insert stores a new item, or returns the existing one for a known
// (source, source_id).
func (s *Store) Insert(_ context.Context, in *feedback.NewItem) (*feedback.Item, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var key dedupKey
	if in.SourceID != nil {
		key = dedupKey{source: in.Source, sourceID: *in.SourceID}
		if id, ok := s.seen[key]; ok {
			return s.items[id].Clone(), false, nil
		}
	}

	s.nextID++
	it := &feedback.Item{
		ID:        s.nextID,
		Source:    in.Source,
		SourceID:  in.SourceID,
		Author:    in.Author,
		Content:   in.Content,
		CreatedAt: in.CreatedAt,
		Urgency:   in.Urgency,
		Sentiment: in.Sentiment,
		Category:  in.Category,
	}
	it = it.Clone()
	s.items[it.ID] = it
	if in.SourceID != nil {
		s.seen[key] = it.ID
	}
	return it.Clone(), true, nil
}

// Get retrieves an item by ID. Returns a copy.
func (s *Store) Get(_ context.Context, id int64) (*feedback.Item, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[id]
	if !ok {
		return nil, false, nil
	}
	return it.Clone(), true, nil
}

// NextPending returns a copy of the first pending item in queue order.
func (s *Store) NextPending(_ context.Context) (*feedback.Item, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *feedback.Item
	for _, it := range s.items {
		if !it.Pending() {
			continue
		}
		if best == nil || feedback.QueueLess(it, best) {
			best = it
		}
	}
	if best == nil {
		return nil, false, nil
	}
	return best.Clone(), true, nil
}

// CountPending counts untriaged items.
func (s *Store) CountPending(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, it := range s.items {
		if it.Pending() {
			n++
		}
	}
	return n, nil
}

// SetTriage overwrites the disposition and triage time.
func (s *Store) SetTriage(_ context.Context, id int64, status feedback.Disposition, at time.Time) (*feedback.Item, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return nil, false, nil
	}
	it.TriageStatus = &status
	it.TriagedAt = &at
	return it.Clone(), true, nil
}

// SetResolved sets or clears the resolution time.
func (s *Store) SetResolved(_ context.Context, id int64, at *time.Time) (*feedback.Item, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return nil, false, nil
	}
	if at == nil {
		it.ResolvedAt = nil
	} else {
		t := *at
		it.ResolvedAt = &t
	}
	return it.Clone(), true, nil
}

// SetClassification fills classification fields that are still nil.
func (s *Store) SetClassification(_ context.Context, id int64, c feedback.Classification) (*feedback.Item, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return nil, false, nil
	}
	if it.Urgency == nil && c.Urgency != nil {
		u := *c.Urgency
		it.Urgency = &u
	}
	if it.Sentiment == nil && c.Sentiment != nil {
		v := *c.Sentiment
		it.Sentiment = &v
	}
	if it.Category == nil && c.Category != nil {
		v := *c.Category
		it.Category = &v
	}
	return it.Clone(), true, nil
}

// CountTriagedSince counts items triaged at or after since.
func (s *Store) CountTriagedSince(_ context.Context, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, it := range s.items {
		if it.TriagedAt != nil && !it.TriagedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// CountByDecision groups triaged items by disposition.
func (s *Store) CountByDecision(_ context.Context) (map[feedback.Disposition]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[feedback.Disposition]int)
	for _, it := range s.items {
		if it.TriageStatus != nil {
			out[*it.TriageStatus]++
		}
	}
	return out, nil
}

// TopThemes ranks categories over pending and escalated items.
func (s *Store) TopThemes(_ context.Context, limit int) ([]feedback.CategoryCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[feedback.Category]int)
	for _, it := range s.items {
		if feedback.CountsTowardThemes(it) {
			counts[*it.Category]++
		}
	}
	return feedback.TopCategories(counts, limit), nil
}

// CountPendingBySource groups pending items by source.
func (s *Store) CountPendingBySource(_ context.Context) (map[feedback.Source]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[feedback.Source]int)
	for _, it := range s.items {
		if it.Pending() {
			out[it.Source]++
		}
	}
	return out, nil
}

// ListTriaged returns copies of triaged items matching f in review order.
func (s *Store) ListTriaged(_ context.Context, f feedback.TriagedFilter) ([]*feedback.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*feedback.Item, 0)
	for _, it := range s.items {
		if f.Match(it) {
			out = append(out, it.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return feedback.TriagedLess(out[i], out[j])
	})
	return out, nil
}
