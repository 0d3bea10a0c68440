package panel

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/factorlab/internal/domain"
)

const storeSchema = `
CREATE TABLE IF NOT EXISTS panel_rows (
	trading_day TEXT NOT NULL,
	asset_id    TEXT NOT NULL,
	ret         REAL NOT NULL,
	next_ret    REAL NOT NULL,
	factors     BLOB NOT NULL,
	PRIMARY KEY (trading_day, asset_id)
);
CREATE INDEX IF NOT EXISTS idx_panel_rows_day ON panel_rows (trading_day);
`

// Store persists the cleaned panel between preprocessing and sweeps. Factor
// vectors are msgpack-encoded blobs so the factor dimension stays flexible.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewStore creates a panel store on an existing connection and ensures the
// schema exists.
func NewStore(db *sql.DB, log zerolog.Logger) (*Store, error) {
	if _, err := db.Exec(storeSchema); err != nil {
		return nil, fmt.Errorf("failed to create panel schema: %w", err)
	}
	return &Store{
		db:  db,
		log: log.With().Str("component", "panel_store").Logger(),
	}, nil
}

// OpenStore opens (creating if needed) a panel database at path.
func OpenStore(path string, log zerolog.Logger) (*Store, *sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open panel database: %w", err)
	}
	store, err := NewStore(db, log)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return store, db, nil
}

// ReplaceRows replaces the stored panel with the given rows in one
// transaction.
func (s *Store) ReplaceRows(rows []domain.PanelRow) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM panel_rows"); err != nil {
		return fmt.Errorf("failed to clear panel rows: %w", err)
	}

	stmt, err := tx.Prepare("INSERT INTO panel_rows (trading_day, asset_id, ret, next_ret, factors) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		blob, err := msgpack.Marshal(r.Factors)
		if err != nil {
			return fmt.Errorf("failed to encode factors for %s/%s: %w", domain.DayKey(r.Day), r.AssetID, err)
		}
		if _, err := stmt.Exec(domain.DayKey(r.Day), r.AssetID, r.Return, r.NextReturn, blob); err != nil {
			return fmt.Errorf("failed to insert panel row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit panel rows: %w", err)
	}

	s.log.Info().Int("rows", len(rows)).Msg("Panel replaced")
	return nil
}

// LoadRows returns all stored panel rows ordered by (day, asset).
func (s *Store) LoadRows() ([]domain.PanelRow, error) {
	rows, err := s.db.Query("SELECT trading_day, asset_id, ret, next_ret, factors FROM panel_rows ORDER BY trading_day, asset_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query panel rows: %w", err)
	}
	defer rows.Close()

	var out []domain.PanelRow
	for rows.Next() {
		var dayStr string
		var r domain.PanelRow
		var blob []byte
		if err := rows.Scan(&dayStr, &r.AssetID, &r.Return, &r.NextReturn, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan panel row: %w", err)
		}
		day, err := time.Parse("2006-01-02", dayStr)
		if err != nil {
			return nil, fmt.Errorf("bad trading day %q in panel store: %w", dayStr, err)
		}
		r.Day = day
		if err := msgpack.Unmarshal(blob, &r.Factors); err != nil {
			return nil, fmt.Errorf("failed to decode factors for %s/%s: %w", dayStr, r.AssetID, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating panel rows: %w", err)
	}
	return out, nil
}

// LoadSlices loads the stored panel and materializes daily slices.
func (s *Store) LoadSlices() ([]DailySlice, error) {
	rows, err := s.LoadRows()
	if err != nil {
		return nil, err
	}
	return SlicesFromRows(rows)
}
