package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hylla/atelier/internal/domain"
)

// DefaultMaxPending bounds the queue when no capacity is configured.
const DefaultMaxPending = 1000

// Queue is the durable FIFO of pending mutations. Every mutating call writes the
// whole sequence through to the store. When a write fails, memory stays
// authoritative and the queue is rewritten on the next mutating call or Flush.
type Queue struct {
	mu         sync.Mutex
	store      QueueStore
	idGen      IDGenerator
	clock      Clock
	maxPending int
	pending    []domain.Record
	dirty      bool
}

// NewQueue constructs an empty queue. Call Load to restore persisted records.
func NewQueue(store QueueStore, idGen IDGenerator, clock Clock, maxPending int) *Queue {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	if maxPending <= 0 {
		maxPending = DefaultMaxPending
	}
	return &Queue{
		store:      store,
		idGen:      idGen,
		clock:      clock,
		maxPending: maxPending,
	}
}

// Load replaces in-memory state with the persisted sequence. A dirty queue is
// not replaced: its records are written through instead, since the store
// never accepted them.
func (q *Queue) Load(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.dirty {
		if err := q.persistLocked(ctx); err != nil {
			return fmt.Errorf("load pending queue: unflushed records kept in memory: %w", err)
		}
		return nil
	}
	records, err := q.store.LoadPending(ctx)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("load pending queue: %w", err)
	}
	q.pending = make([]domain.Record, 0, len(records))
	for _, rec := range records {
		q.pending = append(q.pending, rec.Clone())
	}
	q.dirty = false
	return nil
}

// Enqueue validates m, stamps it with a fresh id and time, and appends it.
// On ErrStorageWriteFailed the record is still queued in memory.
func (q *Queue) Enqueue(ctx context.Context, m domain.Mutation) (domain.Record, error) {
	rec, err := domain.NewRecord(q.idGen(), m, q.clock())
	if err != nil {
		return domain.Record{}, err
	}
	return q.EnqueueRecord(ctx, rec)
}

// EnqueueRecord appends an already stamped record, keeping its id.
func (q *Queue) EnqueueRecord(ctx context.Context, rec domain.Record) (domain.Record, error) {
	if rec.ID == "" {
		return domain.Record{}, domain.ErrInvalidID
	}
	if rec.Mutation == nil {
		return domain.Record{}, domain.ErrInvalidPayload
	}
	if err := rec.Mutation.Validate(); err != nil {
		return domain.Record{}, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) >= q.maxPending {
		return domain.Record{}, fmt.Errorf("%w: %d pending", ErrQueueFull, len(q.pending))
	}
	q.pending = append(q.pending, rec.Clone())
	return rec.Clone(), q.persistLocked(ctx)
}

// Peek returns a copy of the head record.
func (q *Queue) Peek() (domain.Record, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return domain.Record{}, ErrQueueEmpty
	}
	return q.pending[0].Clone(), nil
}

// Dequeue removes and returns the head record.
// On ErrStorageWriteFailed the record is still removed from memory.
func (q *Queue) Dequeue(ctx context.Context) (domain.Record, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return domain.Record{}, ErrQueueEmpty
	}
	head := q.pending[0]
	q.pending[0] = domain.Record{}
	q.pending = q.pending[1:]
	return head, q.persistLocked(ctx)
}

// Size returns the number of pending records.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Capacity returns the configured bound.
func (q *Queue) Capacity() int {
	return q.maxPending
}

// Dirty reports whether memory holds changes the store has not accepted.
func (q *Queue) Dirty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dirty
}

// Pending returns copies of every record in replay order.
func (q *Queue) Pending() []domain.Record {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]domain.Record, 0, len(q.pending))
	for _, rec := range q.pending {
		out = append(out, rec.Clone())
	}
	return out
}

// Flush writes the current sequence to the store.
func (q *Queue) Flush(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.persistLocked(ctx)
}

// persistLocked writes the sequence and tracks the dirty flag. Caller holds q.mu.
func (q *Queue) persistLocked(ctx context.Context) error {
	snapshot := make([]domain.Record, len(q.pending))
	copy(snapshot, q.pending)
	if err := q.store.SavePending(ctx, snapshot); err != nil {
		q.dirty = true
		return fmt.Errorf("%w: %v", ErrStorageWriteFailed, err)
	}
	q.dirty = false
	return nil
}
