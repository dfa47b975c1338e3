// Package syncstate persists the orchestrator's local housekeeping record.
// The file lives in the tbd directory but is never staged on the sync
// branch: each clone tracks its own last successful sync.
package syncstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const FileName = "sync_state.json"

// State is the persisted sync metadata, read at sync start and written only
// after a sync completes.
type State struct {
	LastSyncAt        time.Time `json:"last_sync_at"`
	LastSyncBranch    string    `json:"last_sync_branch,omitempty"`
	ConflictsResolved int       `json:"conflicts_resolved,omitempty"`
}

// Store reads and writes the state file for one tbd directory.
type Store struct {
	path string
}

func NewStore(tbdDir string) *Store {
	return &Store{path: filepath.Join(tbdDir, FileName)}
}

// Read loads the state. A missing file is a zero State, not an error: a
// clone that has never synced has nothing to report.
func (s *Store) Read() (State, error) {
	data, err := os.ReadFile(s.path) // #nosec G304 - controlled path
	if os.IsNotExist(err) {
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("reading sync state: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("parsing sync state: %w", err)
	}
	return st, nil
}

// Write persists the state atomically.
func (s *Store) Write(st State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling sync state: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, FileName+".tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp sync state: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("writing sync state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp sync state: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replacing sync state: %w", err)
	}
	return nil
}

// ReadLastSyncAt returns the last successful sync time, zero if never synced.
func (s *Store) ReadLastSyncAt() (time.Time, error) {
	st, err := s.Read()
	if err != nil {
		return time.Time{}, err
	}
	return st.LastSyncAt, nil
}

// WriteLastSyncAt updates only the timestamp, preserving other fields.
func (s *Store) WriteLastSyncAt(t time.Time) error {
	st, err := s.Read()
	if err != nil {
		return err
	}
	st.LastSyncAt = t
	return s.Write(st)
}
