package feedback

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the referenced item id does not exist.
	ErrNotFound = errors.New("feedback item not found")

	// ErrInvalidStatus means a disposition value is outside the closed set.
	ErrInvalidStatus = errors.New("invalid triage status")

	// ErrInvalidInput means a request field is missing or malformed.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotTriaged means a resolution was requested for a pending item.
	ErrNotTriaged = fmt.Errorf("item has not been triaged: %w", ErrInvalidInput)
)

func notFound(id int64) error {
	return fmt.Errorf("item %d: %w", id, ErrNotFound)
}
