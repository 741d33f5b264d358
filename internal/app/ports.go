package app

import (
	"context"
	"time"

	"github.com/hylla/atelier/internal/domain"
)

// PendingQueueKey is the storage key holding the serialized pending queue.
const PendingQueueKey = "offline.pending_mutations"

// SnapshotKeyPrefix prefixes every cached project snapshot key.
const SnapshotKeyPrefix = "snapshot.project."

// SnapshotKey returns the storage key for one project's cached snapshot.
func SnapshotKey(projectID string) string {
	return SnapshotKeyPrefix + projectID
}

// QueueStore persists the full ordered pending sequence.
type QueueStore interface {
	LoadPending(context.Context) ([]domain.Record, error)
	SavePending(context.Context, []domain.Record) error
}

// SnapshotStore persists last-known-good project state. GetSnapshot and
// DeleteSnapshot return ErrNotFound when absent.
type SnapshotStore interface {
	GetSnapshot(context.Context, string) (domain.ProjectSnapshot, error)
	PutSnapshot(context.Context, domain.ProjectSnapshot) error
	ListSnapshotIDs(context.Context) ([]string, error)
	DeleteSnapshot(context.Context, string) error
}

// DrainHistoryStore keeps finished drain reports, newest first on read.
type DrainHistoryStore interface {
	AppendDrainReport(context.Context, DrainReport) error
	ListDrainReports(context.Context, int) ([]DrainReport, error)
}

// RemoteClient replays records against the remote service.
//
// Apply errors must wrap ErrRemoteApplyFailed for network or server-side
// failures and ErrRemoteApplyRejected when the remote declined the request.
type RemoteClient interface {
	Apply(context.Context, domain.Record) (domain.Ack, error)
	FetchProject(context.Context, string) (domain.ProjectState, error)
	Ping(context.Context) error
}

// Logger is the structured logging surface the app layer writes to.
type Logger interface {
	Debug(msg any, keyvals ...any)
	Info(msg any, keyvals ...any)
	Warn(msg any, keyvals ...any)
	Error(msg any, keyvals ...any)
}

// IDGenerator returns unique identifiers for new records.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// nopLogger discards every entry.
type nopLogger struct{}

func (nopLogger) Debug(any, ...any) {}
func (nopLogger) Info(any, ...any)  {}
func (nopLogger) Warn(any, ...any)  {}
func (nopLogger) Error(any, ...any) {}
