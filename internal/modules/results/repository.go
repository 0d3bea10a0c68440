package results

import (
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/factorlab/internal/sweep"
)

const schema = `
CREATE TABLE IF NOT EXISTS sweep_runs (
	id         TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL,
	seed       INTEGER NOT NULL,
	convention TEXT NOT NULL,
	reducer    TEXT NOT NULL,
	status     TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS sweep_entries (
	run_id        TEXT NOT NULL REFERENCES sweep_runs(id),
	grid_index    INTEGER NOT NULL,
	n_factors     INTEGER NOT NULL,
	lambda        REAL NOT NULL,
	mean_sharpe   REAL,
	std_sharpe    REAL,
	mean_return   REAL,
	std_return    REAL,
	days_used     INTEGER NOT NULL,
	days_skipped  INTEGER NOT NULL,
	undefined     INTEGER NOT NULL,
	daily_returns BLOB NOT NULL,
	PRIMARY KEY (run_id, grid_index)
);
`

// Repository handles sweep run persistence.
// Database: results.db (sweep_runs, sweep_entries tables).
// Undefined statistics are stored as NULL, never as zero, and read back as
// NaN; per-day return series are msgpack blobs.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a results repository and ensures the schema exists.
func NewRepository(db *sql.DB, log zerolog.Logger) (*Repository, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create results schema: %w", err)
	}
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "results").Logger(),
	}, nil
}

// SaveRun persists a completed sweep result table under the given run ID.
func (r *Repository) SaveRun(id string, createdAt time.Time, result *sweep.Result) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		"INSERT INTO sweep_runs (id, created_at, seed, convention, reducer, status) VALUES (?, ?, ?, ?, ?, ?)",
		id, createdAt.Unix(), result.Seed, string(result.Convention), result.Reducer, "completed",
	)
	if err != nil {
		return fmt.Errorf("failed to insert sweep run: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO sweep_entries
		(run_id, grid_index, n_factors, lambda, mean_sharpe, std_sharpe, mean_return, std_return, days_used, days_skipped, undefined, daily_returns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare entry insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range result.Entries {
		blob, err := msgpack.Marshal(e.DailyReturns)
		if err != nil {
			return fmt.Errorf("failed to encode daily returns: %w", err)
		}
		undefined := 0
		if e.Undefined {
			undefined = 1
		}
		_, err = stmt.Exec(
			id, i, e.NFactors, e.Lambda,
			nullable(e.MeanSharpe), nullable(e.StdSharpe),
			nullable(e.MeanReturn), nullable(e.StdReturn),
			e.DaysUsed, e.DaysSkipped, undefined, blob,
		)
		if err != nil {
			return fmt.Errorf("failed to insert sweep entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sweep run: %w", err)
	}

	r.log.Info().Str("run_id", id).Int("entries", len(result.Entries)).Msg("Sweep run saved")
	return nil
}

// ListRuns returns all runs, newest first.
func (r *Repository) ListRuns() ([]Run, error) {
	rows, err := r.db.Query(`
		SELECT r.id, r.created_at, r.seed, r.convention, r.reducer, r.status,
		       (SELECT COUNT(*) FROM sweep_entries e WHERE e.run_id = r.id)
		FROM sweep_runs r
		ORDER BY r.created_at DESC, r.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sweep runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var createdAt int64
		if err := rows.Scan(&run.ID, &createdAt, &run.Seed, &run.Convention, &run.Reducer, &run.Status, &run.Entries); err != nil {
			return nil, fmt.Errorf("failed to scan sweep run: %w", err)
		}
		run.CreatedAt = time.Unix(createdAt, 0).UTC()
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sweep runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one run with its full result table in grid order.
func (r *Repository) GetRun(id string) (*RunDetail, error) {
	var run Run
	var createdAt int64
	err := r.db.QueryRow(
		"SELECT id, created_at, seed, convention, reducer, status FROM sweep_runs WHERE id = ?", id,
	).Scan(&run.ID, &createdAt, &run.Seed, &run.Convention, &run.Reducer, &run.Status)
	if err != nil {
		return nil, fmt.Errorf("failed to load sweep run %s: %w", id, err)
	}
	run.CreatedAt = time.Unix(createdAt, 0).UTC()

	rows, err := r.db.Query(`
		SELECT n_factors, lambda, mean_sharpe, std_sharpe, mean_return, std_return, days_used, days_skipped, undefined, daily_returns
		FROM sweep_entries WHERE run_id = ? ORDER BY grid_index`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query sweep entries: %w", err)
	}
	defer rows.Close()

	var entries []sweep.Entry
	for rows.Next() {
		var e sweep.Entry
		var meanSharpe, stdSharpe, meanReturn, stdReturn sql.NullFloat64
		var undefined int
		var blob []byte
		if err := rows.Scan(&e.NFactors, &e.Lambda, &meanSharpe, &stdSharpe, &meanReturn, &stdReturn, &e.DaysUsed, &e.DaysSkipped, &undefined, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan sweep entry: %w", err)
		}
		e.MeanSharpe = fromNullable(meanSharpe)
		e.StdSharpe = fromNullable(stdSharpe)
		e.MeanReturn = fromNullable(meanReturn)
		e.StdReturn = fromNullable(stdReturn)
		e.Undefined = undefined != 0
		if err := msgpack.Unmarshal(blob, &e.DailyReturns); err != nil {
			return nil, fmt.Errorf("failed to decode daily returns: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sweep entries: %w", err)
	}

	run.Entries = len(entries)
	return &RunDetail{Run: run, Entries: entries}, nil
}

// nullable maps NaN to NULL for storage.
func nullable(v float64) interface{} {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

func fromNullable(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
