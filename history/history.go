// Package history persists completed searches so past lead batches can be
// reloaded and re-exported without scraping again.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mapforge/mapleads/dbopen"
	"github.com/mapforge/mapleads/leads"
)

// Schema is applied on Open. created_at is unix milliseconds.
const Schema = `
CREATE TABLE IF NOT EXISTS search_history (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    keyword     TEXT NOT NULL,
    city        TEXT NOT NULL,
    country     TEXT NOT NULL,
    leads_count INTEGER NOT NULL DEFAULT 0,
    leads_json  TEXT NOT NULL DEFAULT '[]',
    created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_search_history_time ON search_history(created_at DESC);
`

// Search is one saved search without its lead payload.
type Search struct {
	ID        int64  `json:"id"`
	Keyword   string `json:"keyword"`
	City      string `json:"city"`
	Country   string `json:"country"`
	LeadCount int    `json:"leads_count"`
	CreatedAt int64  `json:"created_at"`
}

// SearchDetail is a saved search with its leads decoded.
type SearchDetail struct {
	Search
	Leads []leads.Lead `json:"leads"`
}

// Store wraps the history database.
type Store struct {
	DB *sql.DB
}

// NewStore creates a Store from an already-opened database connection.
// The caller is responsible for having applied Schema.
func NewStore(db *sql.DB) *Store {
	return &Store{DB: db}
}

// Open opens (or creates) the history database at path and applies Schema.
func Open(path string) (*Store, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(Schema))
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return &Store{DB: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.DB.Close()
}

// Save records a completed search and returns its ID.
func (s *Store) Save(ctx context.Context, keyword, city, country string, batch []leads.Lead) (int64, error) {
	if batch == nil {
		batch = []leads.Lead{}
	}
	payload, err := json.Marshal(batch)
	if err != nil {
		return 0, fmt.Errorf("history: encode leads: %w", err)
	}

	var id int64
	err = dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO search_history (keyword, city, country, leads_count, leads_json, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			keyword, city, country, len(batch), string(payload), time.Now().UnixMilli(),
		)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("history: save search: %w", err)
	}
	return id, nil
}

// Recent returns the newest saved searches, newest first, without lead
// payloads. limit <= 0 defaults to 20.
func (s *Store) Recent(ctx context.Context, limit int) ([]*Search, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, keyword, city, country, leads_count, created_at
		FROM search_history ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Search
	for rows.Next() {
		var se Search
		if err := rows.Scan(&se.ID, &se.Keyword, &se.City, &se.Country, &se.LeadCount, &se.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &se)
	}
	return out, rows.Err()
}

// Get loads a saved search with its leads. Returns (nil, nil) when the ID
// does not exist.
func (s *Store) Get(ctx context.Context, id int64) (*SearchDetail, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, keyword, city, country, leads_count, leads_json, created_at
		FROM search_history WHERE id = ?`, id)

	var d SearchDetail
	var payload string
	err := row.Scan(&d.ID, &d.Keyword, &d.City, &d.Country, &d.LeadCount, &payload, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &d.Leads); err != nil {
			return nil, fmt.Errorf("history: decode leads for search %d: %w", id, err)
		}
	}
	if d.Leads == nil {
		d.Leads = []leads.Lead{}
	}
	return &d, nil
}

// Delete removes a saved search. Deleting a missing ID is not an error.
func (s *Store) Delete(ctx context.Context, id int64) error {
	_, err := dbopen.Exec(ctx, s.DB, `DELETE FROM search_history WHERE id = ?`, id)
	return err
}
