/*
feed.go - Ordered change feed over the keyed-record store

PURPOSE:
  Every committed mutation on a backend produces a Change (INSERT, MODIFY or
  REMOVE) on the feed. A single consumer loop groups queued changes into
  batches and hands them, in commit order, to a handler - this is the sole
  ordering source for a record's lifecycle transitions.

DELIVERY CONTRACT:
  - Changes for one record arrive in commit order (INSERT before MODIFY
    before the terminating MODIFY/REMOVE). Backends publish while still
    holding their write lock, so queue order is commit order.
  - Records inside a batch are processed sequentially by the handler;
    there is no parallel fan-out inside a batch.
  - No ordering is guaranteed across batches for unrelated records.
  - Publish NEVER blocks. The handler's own store writes publish follow-on
    changes into the same feed; a bounded channel here would deadlock the
    consumer against itself, so the queue grows instead and the follow-on
    changes land in a later batch.

SEE ALSO:
  - store.go: backends publish here after each committed write
  - vacation/reactor.go: the consumer driving the lifecycle state machine
*/
package tenant

import (
	"context"
	"sync"
)

// EventKind tags a change-feed record.
type EventKind string

const (
	EventInsert EventKind = "INSERT"
	EventModify EventKind = "MODIFY"
	EventRemove EventKind = "REMOVE"
)

// Change is one committed mutation. Keys are the fully workspace-prefixed
// storage keys; consumers recover the owning workspace from them.
// NewImage carries the full record attributes after the write (nil for REMOVE).
type Change struct {
	Kind     EventKind
	PK       string
	SK       string
	NewImage map[string]string
}

// maxBatch bounds how many changes are delivered to the handler at once.
const maxBatch = 25

// Feed is a strictly-ordered change queue with one consumer. The queue is
// unbounded so producers (including the consumer's own handler) never block.
type Feed struct {
	mu    sync.Mutex
	queue []Change
	wake  chan struct{}
}

// NewFeed creates a feed. buffer sizes the initial queue capacity.
func NewFeed(buffer int) *Feed {
	if buffer < 1 {
		buffer = 1
	}
	return &Feed{
		queue: make([]Change, 0, buffer),
		wake:  make(chan struct{}, 1),
	}
}

// Publish appends one change to the feed. It never blocks: the lifecycle
// handler publishes follow-on changes into the feed it is itself draining,
// and blocking here would wedge the consumer against its own writes.
func (f *Feed) Publish(c Change) {
	f.mu.Lock()
	f.queue = append(f.queue, c)
	f.mu.Unlock()

	select {
	case f.wake <- struct{}{}:
	default:
	}
}

// take removes up to maxBatch changes from the head of the queue.
func (f *Feed) take() []Change {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := len(f.queue)
	if n == 0 {
		return nil
	}
	if n > maxBatch {
		n = maxBatch
	}
	batch := make([]Change, n)
	copy(batch, f.queue[:n])
	rest := copy(f.queue, f.queue[n:])
	f.queue = f.queue[:rest]
	return batch
}

// Run delivers batches to handler until ctx is cancelled. It drains the
// queue batch by batch; changes published while a batch is in flight are
// picked up on the next pass. The handler owns all per-record failure
// isolation; Run never inspects its outcome.
func (f *Feed) Run(ctx context.Context, handler func(context.Context, []Change)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-f.wake:
		}

		for {
			if ctx.Err() != nil {
				return
			}
			batch := f.take()
			if batch == nil {
				break
			}
			handler(ctx, batch)
		}
	}
}
