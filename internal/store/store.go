// Copyright 2025 James Ross
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/arjaygg/ado-flow-metrics/internal/workitem"
)

const (
	WorkItemsFile  = "work_items.json"
	ReportFile     = "flow_metrics_report.json"
	DashboardFile  = "dashboard_data.json"
)

// Store persists the on-disk artifacts under a data directory. All writes
// are atomic: write to a temp file in the same directory, then rename,
// so a reader never observes a partially-written file.
type Store struct {
	dataDir string
}

// New builds a Store rooted at dataDir, creating it if necessary.
func New(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{dataDir: dataDir}, nil
}

func (s *Store) path(name string) string { return filepath.Join(s.dataDir, name) }

// WriteWorkItems atomically writes the canonical item list.
func (s *Store) WriteWorkItems(items []workitem.WorkItem) error {
	return writeJSONAtomic(s.path(WorkItemsFile), items)
}

// ReadWorkItems loads the canonical item list, or (nil, os.ErrNotExist) if
// no ingestion has run yet.
func (s *Store) ReadWorkItems() ([]workitem.WorkItem, error) {
	var items []workitem.WorkItem
	if err := readJSON(s.path(WorkItemsFile), &items); err != nil {
		return nil, err
	}
	return items, nil
}

// WriteReport writes the full report and then its dashboard projection,
// each file atomically. The pair is not written as one unit: if the
// dashboard write fails, the report file has already been replaced. Both
// arguments are marshaled as-is; the store
// itself is agnostic to their concrete types.
func (s *Store) WriteReport(report interface{}, dashboard interface{}) error {
	if err := writeJSONAtomic(s.path(ReportFile), report); err != nil {
		return err
	}
	return writeJSONAtomic(s.path(DashboardFile), dashboard)
}

// ReadReportBytes returns the raw serialized report, for handlers that
// serve it directly without re-marshaling.
func (s *Store) ReadReportBytes() ([]byte, error) {
	return os.ReadFile(s.path(ReportFile))
}

func writeJSONAtomic(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
