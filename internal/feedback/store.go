package feedback

import (
	"context"
	"time"
)

// Store is the persistence interface for feedback items. Every method is a
// single logical read or write; none of them are transactional with each
// other.
type Store interface {
	// Insert creates an item. When SourceID is set and an item with the same
	// (Source, SourceID) exists, the existing item is returned with
	// created=false and nothing is written.
	Insert(ctx context.Context, in *NewItem) (item *Item, created bool, err error)
	Get(ctx context.Context, id int64) (*Item, bool, error)

	// NextPending returns the pending item that QueueLess orders first.
	NextPending(ctx context.Context) (*Item, bool, error)
	CountPending(ctx context.Context) (int, error)

	// SetTriage overwrites triage_status and triaged_at unconditionally.
	SetTriage(ctx context.Context, id int64, status Disposition, at time.Time) (*Item, bool, error)
	// SetResolved sets resolved_at to at, or clears it when at is nil.
	SetResolved(ctx context.Context, id int64, at *time.Time) (*Item, bool, error)
	// SetClassification fills classification columns that are still nil.
	SetClassification(ctx context.Context, id int64, c Classification) (*Item, bool, error)

	CountTriagedSince(ctx context.Context, since time.Time) (int, error)
	CountByDecision(ctx context.Context) (map[Disposition]int, error)
	TopThemes(ctx context.Context, limit int) ([]CategoryCount, error)
	CountPendingBySource(ctx context.Context) (map[Source]int, error)

	// ListTriaged returns triaged items matching f in TriagedLess order.
	ListTriaged(ctx context.Context, f TriagedFilter) ([]*Item, error)
}
