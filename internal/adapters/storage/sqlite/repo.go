package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hylla/atelier/internal/app"
	"github.com/hylla/atelier/internal/domain"
	_ "modernc.org/sqlite"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// Repository stores the pending queue, project snapshots, and drain history.
type Repository struct {
	db    *sql.DB
	clock func() time.Time
}

// Open opens the database at path, creating parent directories and schema as needed.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return newRepository(db)
}

// OpenInMemory opens a private in-memory database. Each call gets its own.
func OpenInMemory() (*Repository, error) {
	db, err := sql.Open(driverName, "file:atelier-"+uuid.NewString()+"?mode=memory&cache=shared")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	return newRepository(db)
}

func newRepository(db *sql.DB) (*Repository, error) {
	db.SetMaxOpenConns(1)
	repo := &Repository{db: db, clock: time.Now}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the underlying database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// migrate creates the schema.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA busy_timeout = 5000;`,
		`CREATE TABLE IF NOT EXISTS kv_entries (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS drain_runs (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL DEFAULT '',
			trigger_name TEXT NOT NULL DEFAULT '',
			outcome TEXT NOT NULL,
			stopped_offline INTEGER NOT NULL DEFAULT 0,
			applied_json TEXT NOT NULL DEFAULT '[]',
			remaining INTEGER NOT NULL DEFAULT 0,
			failed_record_id TEXT NOT NULL DEFAULT '',
			failure_kind TEXT NOT NULL DEFAULT '',
			error_text TEXT NOT NULL DEFAULT '',
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_drain_runs_finished ON drain_runs(finished_at);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// GetValue returns the raw value stored under key.
func (r *Repository) GetValue(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx, `SELECT value FROM kv_entries WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, app.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// PutValue replaces the value stored under key.
func (r *Repository) PutValue(ctx context.Context, key string, value []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO kv_entries(key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, ts(r.clock()))
	return err
}

// DeleteValue removes key.
func (r *Repository) DeleteValue(ctx context.Context, key string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = ?`, key)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// ListKeys lists stored keys with the given prefix.
func (r *Repository) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key FROM kv_entries WHERE substr(key, 1, ?) = ? ORDER BY key`, len(prefix), prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]string, 0)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		out = append(out, key)
	}
	return out, rows.Err()
}

// LoadPending decodes the persisted queue. A missing key is an empty queue.
func (r *Repository) LoadPending(ctx context.Context) ([]domain.Record, error) {
	raw, err := r.GetValue(ctx, app.PendingQueueKey)
	if errors.Is(err, app.ErrNotFound) {
		return []domain.Record{}, nil
	}
	if err != nil {
		return nil, err
	}
	var records []domain.Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", app.PendingQueueKey, err)
	}
	if records == nil {
		records = []domain.Record{}
	}
	return records, nil
}

// SavePending replaces the persisted queue with records.
func (r *Repository) SavePending(ctx context.Context, records []domain.Record) error {
	if records == nil {
		records = []domain.Record{}
	}
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode %s: %w", app.PendingQueueKey, err)
	}
	return r.PutValue(ctx, app.PendingQueueKey, raw)
}

// GetSnapshot returns the cached snapshot for projectID.
func (r *Repository) GetSnapshot(ctx context.Context, projectID string) (domain.ProjectSnapshot, error) {
	raw, err := r.GetValue(ctx, app.SnapshotKey(projectID))
	if err != nil {
		return domain.ProjectSnapshot{}, err
	}
	var snap domain.ProjectSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return domain.ProjectSnapshot{}, fmt.Errorf("decode snapshot %q: %w", projectID, err)
	}
	snap.FetchedAt = snap.FetchedAt.UTC()
	return snap, nil
}

// PutSnapshot overwrites the cached snapshot for its project.
func (r *Repository) PutSnapshot(ctx context.Context, snap domain.ProjectSnapshot) error {
	if strings.TrimSpace(snap.State.ProjectID) == "" {
		return domain.ErrInvalidID
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot %q: %w", snap.State.ProjectID, err)
	}
	return r.PutValue(ctx, app.SnapshotKey(snap.State.ProjectID), raw)
}

// ListSnapshotIDs lists the project ids with a cached snapshot, sorted.
func (r *Repository) ListSnapshotIDs(ctx context.Context) ([]string, error) {
	keys, err := r.ListKeys(ctx, app.SnapshotKeyPrefix)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		ids = append(ids, strings.TrimPrefix(key, app.SnapshotKeyPrefix))
	}
	return ids, nil
}

// DeleteSnapshot drops the cached snapshot for projectID.
func (r *Repository) DeleteSnapshot(ctx context.Context, projectID string) error {
	if strings.TrimSpace(projectID) == "" {
		return domain.ErrInvalidID
	}
	return r.DeleteValue(ctx, app.SnapshotKey(projectID))
}

// AppendDrainReport stores one finished drain cycle.
func (r *Repository) AppendDrainReport(ctx context.Context, report app.DrainReport) error {
	applied := report.Applied
	if applied == nil {
		applied = []string{}
	}
	appliedJSON, err := json.Marshal(applied)
	if err != nil {
		return fmt.Errorf("encode drain_runs.applied_json: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO drain_runs(
			id, trigger_name, outcome, stopped_offline, applied_json, remaining,
			failed_record_id, failure_kind, error_text, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.ID,
		string(report.Trigger),
		string(report.Outcome),
		boolToInt(report.StoppedOffline),
		string(appliedJSON),
		report.Remaining,
		report.FailedRecordID,
		report.FailureKind,
		report.Error,
		ts(report.StartedAt),
		ts(report.FinishedAt),
	)
	return err
}

// ListDrainReports lists the most recent drain cycles, newest first.
func (r *Repository) ListDrainReports(ctx context.Context, limit int) ([]app.DrainReport, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, trigger_name, outcome, stopped_offline, applied_json, remaining,
			failed_record_id, failure_kind, error_text, started_at, finished_at
		FROM drain_runs
		ORDER BY seq DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]app.DrainReport, 0)
	for rows.Next() {
		var (
			report      app.DrainReport
			trigger     string
			outcome     string
			offline     int
			appliedRaw  string
			startedRaw  string
			finishedRaw string
		)
		if err := rows.Scan(
			&report.ID, &trigger, &outcome, &offline, &appliedRaw, &report.Remaining,
			&report.FailedRecordID, &report.FailureKind, &report.Error, &startedRaw, &finishedRaw,
		); err != nil {
			return nil, err
		}
		report.Trigger = app.DrainTrigger(trigger)
		report.Outcome = app.DrainOutcome(outcome)
		report.StoppedOffline = offline != 0
		report.StartedAt = parseTS(startedRaw)
		report.FinishedAt = parseTS(finishedRaw)
		if err := json.Unmarshal([]byte(appliedRaw), &report.Applied); err != nil {
			return nil, fmt.Errorf("decode drain_runs.applied_json: %w", err)
		}
		if report.Applied == nil {
			report.Applied = []string{}
		}
		out = append(out, report)
	}
	return out, rows.Err()
}

// translateNoRows handles translate no rows.
func translateNoRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return app.ErrNotFound
	}
	return nil
}

// ts handles ts.
func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTS parses input into a normalized form.
func parseTS(v string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
