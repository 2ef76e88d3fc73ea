// Copyright 2025 James Ross
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/arjaygg/ado-flow-metrics/internal/azuredevops"
	_ "github.com/mattn/go-sqlite3"
)

// HistoryCache persists per-item revision history to a local SQLite
// database keyed by work item ID. The ingestion engine and the `calculate`
// command do not read from or write to it.
type HistoryCache struct {
	db *sql.DB
}

// OpenHistoryCache opens (creating if necessary) the SQLite database at
// <dataDir>/history_cache.db.
func OpenHistoryCache(dataDir string) (*HistoryCache, error) {
	path := filepath.Join(dataDir, "history_cache.db")
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open history cache: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS history (
			work_item_id INTEGER PRIMARY KEY,
			entries_json TEXT NOT NULL,
			cached_at TIMESTAMP NOT NULL
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create history table: %w", err)
	}
	return &HistoryCache{db: db}, nil
}

// Close releases the underlying database handle.
func (c *HistoryCache) Close() error { return c.db.Close() }

// Put stores the history entries for id, overwriting any prior entry.
func (c *HistoryCache) Put(id int64, entries []azuredevops.HistoryEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal history for %d: %w", id, err)
	}
	_, err = c.db.Exec(
		`INSERT INTO history (work_item_id, entries_json, cached_at) VALUES (?, ?, ?)
		 ON CONFLICT(work_item_id) DO UPDATE SET entries_json = excluded.entries_json, cached_at = excluded.cached_at`,
		id, string(data), time.Now().UTC(),
	)
	return err
}

// Get returns the cached history for id, ok=false if absent.
func (c *HistoryCache) Get(id int64) ([]azuredevops.HistoryEntry, bool, error) {
	var data string
	err := c.db.QueryRow(`SELECT entries_json FROM history WHERE work_item_id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var entries []azuredevops.HistoryEntry
	if err := json.Unmarshal([]byte(data), &entries); err != nil {
		return nil, false, fmt.Errorf("unmarshal history for %d: %w", id, err)
	}
	return entries, true, nil
}
