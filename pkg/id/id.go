package id

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var mu sync.Mutex

// New returns a ULID string (time-sortable identifier).
//
// Trade records are keyed by these so the log stays lexicographically
// ordered by creation time, which keeps SQLite index scans cheap.
func New() string {
	mu.Lock()
	defer mu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now().UTC()), ulid.DefaultEntropy()).String()
}
