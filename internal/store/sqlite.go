package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/reactormap/reactorsync/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	source       TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	processed    INTEGER NOT NULL DEFAULT 0,
	matched      INTEGER NOT NULL DEFAULT 0,
	updated      INTEGER NOT NULL DEFAULT 0,
	unmatched    INTEGER NOT NULL DEFAULT 0,
	error        TEXT,
	started_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at DATETIME
);

CREATE TABLE IF NOT EXISTS changes (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	reactor    TEXT NOT NULL,
	country    TEXT NOT NULL,
	field      TEXT NOT NULL,
	old_value  TEXT NOT NULL,
	new_value  TEXT NOT NULL,
	changed_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS candidates (
	id           TEXT PRIMARY KEY,
	run_id       TEXT NOT NULL REFERENCES runs(id),
	name         TEXT NOT NULL,
	country      TEXT NOT NULL,
	country_code TEXT,
	capacity     INTEGER,
	status       TEXT,
	source       TEXT NOT NULL,
	seen_at      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_source ON runs(source);
CREATE INDEX IF NOT EXISTS idx_changes_run_id ON changes(run_id);
CREATE INDEX IF NOT EXISTS idx_candidates_run_id ON candidates(run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, source string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, source, status, started_at) VALUES (?, ?, ?, ?)`,
		id, source, string(model.RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Source:    source,
		Status:    model.RunStatusRunning,
		StartedAt: now,
	}, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, stats model.RunStats) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, processed = ?, matched = ?, updated = ?, unmatched = ?, completed_at = ? WHERE id = ?`,
		string(model.RunStatusComplete), stats.Processed, stats.Matched, stats.Updated, stats.Unmatched,
		time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, stats model.RunStats, runErr string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, processed = ?, matched = ?, updated = ?, unmatched = ?, error = ?, completed_at = ? WHERE id = ?`,
		string(model.RunStatusFailed), stats.Processed, stats.Matched, stats.Updated, stats.Unmatched,
		runErr, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source, status, processed, matched, updated, unmatched, error, started_at, completed_at
		 FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, source, status, processed, matched, updated, unmatched, error, started_at, completed_at
	          FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Source != "" {
		query += ` AND source = ?`
		args = append(args, filter.Source)
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) AppendChanges(ctx context.Context, runID string, changes []model.ChangeRecord) error {
	if len(changes) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin append changes")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO changes (id, run_id, reactor, country, field, old_value, new_value, changed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare append changes")
	}
	defer stmt.Close() //nolint:errcheck

	for _, ch := range changes {
		if _, err := stmt.ExecContext(ctx,
			uuid.New().String(), runID, ch.Reactor, ch.Country, ch.Field,
			ch.OldValue, ch.NewValue, ch.ChangedAt.UTC(),
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert change for run %s", runID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit append changes")
}

func (s *SQLiteStore) ListChanges(ctx context.Context, runID string) ([]model.ChangeRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT reactor, country, field, old_value, new_value, changed_at
		 FROM changes WHERE run_id = ? ORDER BY changed_at, reactor, field`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list changes for run %s", runID)
	}
	defer rows.Close()

	var changes []model.ChangeRecord
	for rows.Next() {
		var ch model.ChangeRecord
		if err := rows.Scan(&ch.Reactor, &ch.Country, &ch.Field, &ch.OldValue, &ch.NewValue, &ch.ChangedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan change")
		}
		changes = append(changes, ch)
	}
	return changes, eris.Wrap(rows.Err(), "sqlite: list changes iterate")
}

func (s *SQLiteStore) AddCandidates(ctx context.Context, runID string, candidates []model.Candidate) error {
	if len(candidates) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin add candidates")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO candidates (id, run_id, name, country, country_code, capacity, status, source, seen_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare add candidates")
	}
	defer stmt.Close() //nolint:errcheck

	for _, c := range candidates {
		var capacity any
		if c.Capacity != nil {
			capacity = *c.Capacity
		}
		if _, err := stmt.ExecContext(ctx,
			uuid.New().String(), runID, c.Name, c.Country, c.CountryCode,
			capacity, string(c.Status), c.Source, c.SeenAt.UTC(),
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert candidate for run %s", runID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit add candidates")
}

func (s *SQLiteStore) ListCandidates(ctx context.Context, runID string) ([]model.Candidate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, country, country_code, capacity, status, source, seen_at
		 FROM candidates WHERE run_id = ? ORDER BY country, name`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list candidates for run %s", runID)
	}
	defer rows.Close()

	var candidates []model.Candidate
	for rows.Next() {
		var c model.Candidate
		var capacity sql.NullInt64
		var status string
		if err := rows.Scan(&c.Name, &c.Country, &c.CountryCode, &capacity, &status, &c.Source, &c.SeenAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan candidate")
		}
		if capacity.Valid {
			v := int(capacity.Int64)
			c.Capacity = &v
		}
		c.Status = model.Status(status)
		candidates = append(candidates, c)
	}
	return candidates, eris.Wrap(rows.Err(), "sqlite: list candidates iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var errMsg sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(&r.ID, &r.Source, &r.Status,
		&r.Stats.Processed, &r.Stats.Matched, &r.Stats.Updated, &r.Stats.Unmatched,
		&errMsg, &r.StartedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if errMsg.Valid {
		r.Error = errMsg.String
	}
	if completedAt.Valid {
		t := completedAt.Time
		r.CompletedAt = &t
	}
	return &r, nil
}
