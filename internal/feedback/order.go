package feedback

import (
	"sort"
	"time"
)

// UnclassifiedRank is the urgency rank of an item with no urgency.
const UnclassifiedRank = 5

// EmergingThemesLimit is how many categories Stats reports as emerging.
const EmergingThemesLimit = 5

// UrgencyRank orders urgency for the review queue: critical=1, high=2,
// medium=3, low=4, unclassified last.
func UrgencyRank(u *Urgency) int {
	if u == nil {
		return UnclassifiedRank
	}
	switch *u {
	case UrgencyCritical:
		return 1
	case UrgencyHigh:
		return 2
	case UrgencyMedium:
		return 3
	case UrgencyLow:
		return 4
	}
	return UnclassifiedRank
}

// QueueLess reports whether a should be reviewed before b: higher urgency
// first, then oldest first, then lowest id.
func QueueLess(a, b *Item) bool {
	ra, rb := UrgencyRank(a.Urgency), UrgencyRank(b.Urgency)
	if ra != rb {
		return ra < rb
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// TriagedLess orders the review list: disposition rank, then most recently
// triaged first, then highest id.
func TriagedLess(a, b *Item) bool {
	ra, rb := dispositionRank(a.TriageStatus), dispositionRank(b.TriageStatus)
	if ra != rb {
		return ra < rb
	}
	ta, tb := timeOrZero(a.TriagedAt), timeOrZero(b.TriagedAt)
	if !ta.Equal(tb) {
		return ta.After(tb)
	}
	return a.ID > b.ID
}

// TopCategories ranks category counts by count descending, name ascending,
// and keeps at most limit entries.
func TopCategories(counts map[Category]int, limit int) []CategoryCount {
	out := make([]CategoryCount, 0, len(counts))
	for c, n := range counts {
		if n <= 0 {
			continue
		}
		out = append(out, CategoryCount{Category: c, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Category < out[j].Category
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// CountsTowardThemes reports whether an item is still unaddressed: pending
// or escalated, with a known category.
func CountsTowardThemes(it *Item) bool {
	if it.Category == nil {
		return false
	}
	return it.TriageStatus == nil || *it.TriageStatus == DispositionEscalate
}

// StartOfDay returns local midnight of t's day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func dispositionRank(d *Disposition) int {
	if d == nil {
		return 0
	}
	return d.Rank()
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
