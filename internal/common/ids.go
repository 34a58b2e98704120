package common

import (
	"github.com/oklog/ulid/v2"
)

// NewULID returns a lexicographically sortable id. ulid.Make draws from a
// process-wide monotonic entropy source, so ids minted within the same
// millisecond still sort in creation order.
func NewULID() string {
	return ulid.Make().String()
}
