package orders

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// QueuedOrder is a pending intent to trade at the next open. Intents
// accumulate between cycles (an external layer or the CLI enqueues
// them) and the control loop drains the whole queue when it runs.
type QueuedOrder struct {
	ID       string          `json:"id"`
	Ticker   string          `json:"ticker"`
	Side     string          `json:"side"`
	Shares   decimal.Decimal `json:"shares"`
	AllocPct decimal.Decimal `json:"alloc_pct,omitempty"`
	StopLoss decimal.Decimal `json:"stop_loss,omitempty"`
	Reason   string          `json:"reason,omitempty"`
	Created  time.Time       `json:"created"`
}

// Decision converts the intent into an executable decision.
func (o QueuedOrder) Decision() Decision {
	return Decision{
		Ticker:   o.Ticker,
		Side:     o.Side,
		Shares:   o.Shares,
		AllocPct: o.AllocPct,
		StopLoss: o.StopLoss,
		Reason:   o.Reason,
	}
}

// Queue persists pending orders as a JSON file. Writes go through a
// temp file and rename so a crash never leaves a torn queue.
type Queue struct {
	mu   sync.Mutex
	path string
}

func NewQueue(path string) *Queue {
	return &Queue{path: path}
}

// Load returns the pending orders. A missing file is an empty queue.
func (q *Queue) Load() ([]QueuedOrder, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.loadLocked()
}

// Add appends an intent, coalescing it with any pending intent for the
// same ticker and side: explicit share counts sum, the newest stop and
// allocation win.
func (q *Queue) Add(o QueuedOrder) error {
	if o.Ticker == "" || o.Side == "" {
		return fmt.Errorf("queue order needs ticker and side")
	}
	if o.Created.IsZero() {
		o.Created = time.Now().UTC()
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	pending, err := q.loadLocked()
	if err != nil {
		return err
	}

	merged := false
	for i := range pending {
		if pending[i].Ticker != o.Ticker || pending[i].Side != o.Side {
			continue
		}
		pending[i].Shares = pending[i].Shares.Add(o.Shares)
		if o.AllocPct.IsPositive() {
			pending[i].AllocPct = o.AllocPct
		}
		if o.StopLoss.IsPositive() {
			pending[i].StopLoss = o.StopLoss
		}
		pending[i].ID = orderID(pending[i])
		merged = true
		break
	}
	if !merged {
		o.ID = orderID(o)
		pending = append(pending, o)
	}

	sort.Slice(pending, func(i, j int) bool {
		if pending[i].Ticker != pending[j].Ticker {
			return pending[i].Ticker < pending[j].Ticker
		}
		return pending[i].Side < pending[j].Side
	})

	return q.saveLocked(pending)
}

// Drain returns all pending orders and empties the queue. The caller
// owns them from here; a failed decision is reported in the cycle
// result, not re-queued.
func (q *Queue) Drain() ([]QueuedOrder, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	pending, err := q.loadLocked()
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, nil
	}

	if err := q.saveLocked(nil); err != nil {
		return nil, err
	}
	return pending, nil
}

func (q *Queue) loadLocked() ([]QueuedOrder, error) {
	data, err := os.ReadFile(q.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var pending []QueuedOrder
	if err := json.Unmarshal(data, &pending); err != nil {
		return nil, fmt.Errorf("parse order queue %s: %w", q.path, err)
	}
	return pending, nil
}

func (q *Queue) saveLocked(pending []QueuedOrder) error {
	if pending == nil {
		pending = []QueuedOrder{}
	}

	data, err := json.MarshalIndent(pending, "", "  ")
	if err != nil {
		return err
	}

	if dir := filepath.Dir(q.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	tmp := q.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, q.path)
}

// orderID derives a compact deterministic id from the fields that make
// an intent distinct.
func orderID(o QueuedOrder) string {
	sum := sha256.Sum256([]byte(o.Ticker + "|" + o.Side + "|" + o.Shares.String() + "|" + o.AllocPct.String()))
	return hex.EncodeToString(sum[:])[:16]
}
