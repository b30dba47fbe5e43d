package position

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"ictengine/internal/core"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists the position book to a local SQLite file in WAL
// mode, satisfying Store for durability across restarts (§6 Database
// contract).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if necessary) the database at path and
// ensures the positions table exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec(createPositionsTable); err != nil {
		return nil, fmt.Errorf("create positions table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

const createPositionsTable = `
CREATE TABLE IF NOT EXISTS positions (
	id TEXT PRIMARY KEY,
	symbol TEXT NOT NULL,
	status INTEGER NOT NULL,
	data TEXT NOT NULL,
	updated_at INTEGER NOT NULL
)`

// SavePosition upserts the position's full JSON encoding, satisfying Store.
func (s *SQLiteStore) SavePosition(ctx context.Context, p core.Position) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal position: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO positions (id, symbol, status, data, updated_at) VALUES (?, ?, ?, ?, unixepoch())
		 ON CONFLICT(id) DO UPDATE SET symbol=excluded.symbol, status=excluded.status, data=excluded.data, updated_at=excluded.updated_at`,
		p.ID, p.Symbol, int(p.Status), string(data))
	if err != nil {
		return fmt.Errorf("save position: %w", err)
	}
	return nil
}

// LoadOpenPositions returns every position persisted with status OPEN,
// used to seed the Manager on restart.
func (s *SQLiteStore) LoadOpenPositions(ctx context.Context) ([]core.Position, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM positions WHERE status = ?`, int(core.PositionOpen))
	if err != nil {
		return nil, fmt.Errorf("load open positions: %w", err)
	}
	defer rows.Close()

	var out []core.Position
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan position row: %w", err)
		}
		var p core.Position
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, fmt.Errorf("unmarshal position: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
