package feedback

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/patrickmn/go-cache"
)

// Stats is a dashboard snapshot. Sub-counts come from independent queries
// and may reflect different moments when writes race with the computation.
type Stats struct {
	TriagedToday   int                 `json:"triaged_today"`
	Pending        int                 `json:"pending"`
	ByDecision     map[Disposition]int `json:"by_decision"`
	EmergingThemes []CategoryCount     `json:"emerging_themes"`
	BySource       map[Source]int      `json:"by_source"`
	ComputedAt     time.Time           `json:"computed_at"`
}

// TotalTriaged sums ByDecision.
func (st *Stats) TotalTriaged() int {
	total := 0
	for _, n := range st.ByDecision {
		total += n
	}
	return total
}

func (st *Stats) clone() *Stats {
	cp := *st
	cp.ByDecision = maps.Clone(st.ByDecision)
	cp.BySource = maps.Clone(st.BySource)
	cp.EmergingThemes = slices.Clone(st.EmergingThemes)
	return &cp
}

// Stats computes the dashboard snapshot. When a stats TTL is configured a
// recent snapshot may be served instead.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	if s.statsCache != nil {
		if v, ok := s.statsCache.Get(statsCacheKey); ok {
			s.metrics.statsCache(true)
			return v.(*Stats).clone(), nil
		}
		s.metrics.statsCache(false)
	}

	start := time.Now()
	st, err := s.computeStats(ctx)
	if err != nil {
		return nil, err
	}
	s.metrics.statsComputed(time.Since(start).Seconds())

	if s.statsCache != nil {
		s.statsCache.Set(statsCacheKey, st.clone(), cache.DefaultExpiration)
	}
	return st, nil
}

func (s *Service) computeStats(ctx context.Context) (*Stats, error) {
	now := s.now()
	st := &Stats{ComputedAt: now}

	var err error
	if st.TriagedToday, err = s.store.CountTriagedSince(ctx, StartOfDay(now)); err != nil {
		return nil, fmt.Errorf("count triaged today: %w", err)
	}
	if st.Pending, err = s.store.CountPending(ctx); err != nil {
		return nil, fmt.Errorf("count pending: %w", err)
	}
	if st.ByDecision, err = s.store.CountByDecision(ctx); err != nil {
		return nil, fmt.Errorf("count by decision: %w", err)
	}
	if st.EmergingThemes, err = s.store.TopThemes(ctx, EmergingThemesLimit); err != nil {
		return nil, fmt.Errorf("top themes: %w", err)
	}
	if st.BySource, err = s.store.CountPendingBySource(ctx); err != nil {
		return nil, fmt.Errorf("count pending by source: %w", err)
	}

	if st.ByDecision == nil {
		st.ByDecision = map[Disposition]int{}
	}
	if st.BySource == nil {
		st.BySource = map[Source]int{}
	}
	if st.EmergingThemes == nil {
		st.EmergingThemes = []CategoryCount{}
	}
	return st, nil
}

func (s *Service) invalidateStats() {
	if s.statsCache != nil {
		s.statsCache.Delete(statsCacheKey)
	}
}
