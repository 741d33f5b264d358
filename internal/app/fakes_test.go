package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hylla/atelier/internal/domain"
)

// memStore implements every persistence port in memory.
type memStore struct {
	mu        sync.Mutex
	pending   []domain.Record
	saves     int
	failSaves bool
	snapshots map[string]domain.ProjectSnapshot
	history   []DrainReport
}

func newMemStore() *memStore {
	return &memStore{snapshots: map[string]domain.ProjectSnapshot{}}
}

func (m *memStore) LoadPending(context.Context) ([]domain.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Record, 0, len(m.pending))
	for _, rec := range m.pending {
		out = append(out, rec.Clone())
	}
	return out, nil
}

func (m *memStore) SavePending(_ context.Context, records []domain.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSaves {
		return errors.New("disk full")
	}
	m.saves++
	m.pending = make([]domain.Record, 0, len(records))
	for _, rec := range records {
		m.pending = append(m.pending, rec.Clone())
	}
	return nil
}

func (m *memStore) setFailSaves(fail bool) {
	m.mu.Lock()
	m.failSaves = fail
	m.mu.Unlock()
}

func (m *memStore) storedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return pendingIDs(m.pending)
}

func (m *memStore) GetSnapshot(_ context.Context, projectID string) (domain.ProjectSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snapshots[projectID]
	if !ok {
		return domain.ProjectSnapshot{}, ErrNotFound
	}
	return snap, nil
}

func (m *memStore) PutSnapshot(_ context.Context, snap domain.ProjectSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[snap.State.ProjectID] = snap
	return nil
}

func (m *memStore) ListSnapshotIDs(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.snapshots))
	for id := range m.snapshots {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (m *memStore) DeleteSnapshot(_ context.Context, projectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.snapshots[projectID]; !ok {
		return ErrNotFound
	}
	delete(m.snapshots, projectID)
	return nil
}

func (m *memStore) AppendDrainReport(_ context.Context, report DrainReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, report)
	return nil
}

func (m *memStore) ListDrainReports(_ context.Context, limit int) ([]DrainReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]DrainReport, 0, limit)
	for i := len(m.history) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.history[i])
	}
	return out, nil
}

// fakeRemote records applied ids and fails on scripted record ids.
type fakeRemote struct {
	mu       sync.Mutex
	applied  []string
	calls    int
	failWith map[string]error
	failAll  error
	gate     chan struct{}
	entered  chan struct{}
	projects map[string]domain.ProjectState
	fetchErr error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{failWith: map[string]error{}, projects: map[string]domain.ProjectState{}}
}

func (f *fakeRemote) Apply(ctx context.Context, rec domain.Record) (domain.Ack, error) {
	f.mu.Lock()
	f.calls++
	gate, entered := f.gate, f.entered
	err := f.failAll
	if e, ok := f.failWith[rec.ID]; ok {
		err = e
	}
	f.mu.Unlock()

	if entered != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return domain.Ack{}, ctx.Err()
		}
	}
	if err != nil {
		return domain.Ack{}, err
	}
	f.mu.Lock()
	f.applied = append(f.applied, rec.ID)
	f.mu.Unlock()
	return domain.Ack{RecordID: rec.ID, RemoteID: "remote-" + rec.ID, AppliedAt: time.Now()}, nil
}

func (f *fakeRemote) FetchProject(_ context.Context, projectID string) (domain.ProjectState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return domain.ProjectState{}, f.fetchErr
	}
	state, ok := f.projects[projectID]
	if !ok {
		return domain.ProjectState{}, ErrNotFound
	}
	return state, nil
}

func (f *fakeRemote) Ping(context.Context) error { return nil }

func (f *fakeRemote) appliedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.applied...)
}

func (f *fakeRemote) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeRemote) setFailAll(err error) {
	f.mu.Lock()
	f.failAll = err
	f.mu.Unlock()
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// seqIDs returns ordered, readable ids.
func seqIDs(prefix string) IDGenerator {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("%s-%04d", prefix, n.Add(1))
	}
}

func lampCreate() domain.Mutation {
	return domain.CreateItem{Item: domain.Item{ID: "lamp-1", ProjectID: "p1", Name: "Lamp", UnitCostCents: 12900}}
}

func lampOrdered() domain.Mutation {
	status := domain.StatusOrdered
	return domain.UpdateItem{ProjectID: "p1", ItemID: "lamp-1", ItemPatch: domain.ItemPatch{Status: &status}}
}

func deleteItem(id string) domain.Mutation {
	return domain.DeleteItem{ProjectID: "p1", ItemID: id}
}
