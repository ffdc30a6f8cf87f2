package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/reactormap/reactorsync/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. Tests substitute a
// pgxmock pool.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	source       TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	processed    INTEGER NOT NULL DEFAULT 0,
	matched      INTEGER NOT NULL DEFAULT 0,
	updated      INTEGER NOT NULL DEFAULT 0,
	unmatched    INTEGER NOT NULL DEFAULT 0,
	error        TEXT,
	started_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS changes (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	reactor    TEXT NOT NULL,
	country    TEXT NOT NULL,
	field      TEXT NOT NULL,
	old_value  TEXT NOT NULL,
	new_value  TEXT NOT NULL,
	changed_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS candidates (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	run_id       TEXT NOT NULL REFERENCES runs(id),
	name         TEXT NOT NULL,
	country      TEXT NOT NULL,
	country_code TEXT,
	capacity     INTEGER,
	status       TEXT,
	source       TEXT NOT NULL,
	seen_at      TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_source ON runs(source);
CREATE INDEX IF NOT EXISTS idx_changes_run_id ON changes(run_id);
CREATE INDEX IF NOT EXISTS idx_candidates_run_id ON candidates(run_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, source string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, source, status, started_at) VALUES ($1, $2, $3, $4)`,
		id, source, string(model.RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Source:    source,
		Status:    model.RunStatusRunning,
		StartedAt: now,
	}, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, stats model.RunStats) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, processed = $2, matched = $3, updated = $4, unmatched = $5, completed_at = $6 WHERE id = $7`,
		string(model.RunStatusComplete), stats.Processed, stats.Matched, stats.Updated, stats.Unmatched,
		time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, stats model.RunStats, runErr string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, processed = $2, matched = $3, updated = $4, unmatched = $5, error = $6, completed_at = $7 WHERE id = $8`,
		string(model.RunStatusFailed), stats.Processed, stats.Matched, stats.Updated, stats.Unmatched,
		runErr, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var r model.Run
	var errMsg *string
	var completedAt *time.Time

	err := s.pool.QueryRow(ctx,
		`SELECT id, source, status, processed, matched, updated, unmatched, error, started_at, completed_at
		 FROM runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &r.Source, &r.Status,
		&r.Stats.Processed, &r.Stats.Matched, &r.Stats.Updated, &r.Stats.Unmatched,
		&errMsg, &r.StartedAt, &completedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}

	if errMsg != nil {
		r.Error = *errMsg
	}
	r.CompletedAt = completedAt
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, source, status, processed, matched, updated, unmatched, error, started_at, completed_at
	          FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Source != "" {
		query += fmt.Sprintf(` AND source = $%d`, argIdx)
		args = append(args, filter.Source)
		argIdx++
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var errMsg *string
		var completedAt *time.Time

		if err := rows.Scan(&r.ID, &r.Source, &r.Status,
			&r.Stats.Processed, &r.Stats.Matched, &r.Stats.Updated, &r.Stats.Unmatched,
			&errMsg, &r.StartedAt, &completedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if errMsg != nil {
			r.Error = *errMsg
		}
		r.CompletedAt = completedAt
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) AppendChanges(ctx context.Context, runID string, changes []model.ChangeRecord) error {
	for _, ch := range changes {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO changes (id, run_id, reactor, country, field, old_value, new_value, changed_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			uuid.New().String(), runID, ch.Reactor, ch.Country, ch.Field,
			ch.OldValue, ch.NewValue, ch.ChangedAt.UTC(),
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert change for run %s", runID)
		}
	}
	return nil
}

func (s *PostgresStore) ListChanges(ctx context.Context, runID string) ([]model.ChangeRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT reactor, country, field, old_value, new_value, changed_at
		 FROM changes WHERE run_id = $1 ORDER BY changed_at, reactor, field`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list changes for run %s", runID)
	}
	defer rows.Close()

	var changes []model.ChangeRecord
	for rows.Next() {
		var ch model.ChangeRecord
		if err := rows.Scan(&ch.Reactor, &ch.Country, &ch.Field, &ch.OldValue, &ch.NewValue, &ch.ChangedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan change")
		}
		changes = append(changes, ch)
	}
	return changes, eris.Wrap(rows.Err(), "postgres: list changes iterate")
}

func (s *PostgresStore) AddCandidates(ctx context.Context, runID string, candidates []model.Candidate) error {
	for _, c := range candidates {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO candidates (id, run_id, name, country, country_code, capacity, status, source, seen_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			uuid.New().String(), runID, c.Name, c.Country, c.CountryCode,
			c.Capacity, string(c.Status), c.Source, c.SeenAt.UTC(),
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert candidate for run %s", runID)
		}
	}
	return nil
}

func (s *PostgresStore) ListCandidates(ctx context.Context, runID string) ([]model.Candidate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT name, country, country_code, capacity, status, source, seen_at
		 FROM candidates WHERE run_id = $1 ORDER BY country, name`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list candidates for run %s", runID)
	}
	defer rows.Close()

	var candidates []model.Candidate
	for rows.Next() {
		var c model.Candidate
		var status string
		if err := rows.Scan(&c.Name, &c.Country, &c.CountryCode, &c.Capacity, &status, &c.Source, &c.SeenAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan candidate")
		}
		c.Status = model.Status(status)
		candidates = append(candidates, c)
	}
	return candidates, eris.Wrap(rows.Err(), "postgres: list candidates iterate")
}
