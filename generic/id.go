package generic

import "github.com/google/uuid"

// NewID returns prefix followed by a time-ordered UUIDv7, so ids of the same
// kind sort by creation time.
func NewID(prefix string) string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return prefix + id.String()
}
