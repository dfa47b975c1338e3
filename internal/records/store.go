// Package records reads and writes issue records, one JSON file per record.
//
// The store enforces the local optimistic-concurrency guard: every Save must
// present the version it loaded, and the stored version advances by exactly
// one. Anything beyond that single-writer guard (merging divergent clones)
// is the sync engine's job, not the store's.
package records

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tbd-tracker/tbd/internal/types"
)

// NotFoundError indicates no record exists with the requested id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("record %s not found", e.ID)
}

// StaleWriteError indicates an optimistic-concurrency violation: the record
// being saved was loaded at a version that is no longer current. The caller
// must reload and retry.
type StaleWriteError struct {
	ID     string
	Stored int // version currently on disk
	Loaded int // version the caller's record was loaded at
}

func (e *StaleWriteError) Error() string {
	return fmt.Sprintf("stale write for record %s: loaded at version %d but stored version is %d (reload and retry)",
		e.ID, e.Loaded, e.Stored)
}

// Store is a directory of record files, one per record, named <id>.json.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir (typically .tbd/records).
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the directory holding the record files.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Load reads one record by internal id.
func (s *Store) Load(id string) (*types.Record, error) {
	data, err := os.ReadFile(s.path(id)) // #nosec G304 - path derived from record id under the store dir
	if os.IsNotExist(err) {
		return nil, &NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("reading record %s: %w", id, err)
	}
	return Decode(data)
}

// Decode parses a single serialized record.
func Decode(data []byte) (*types.Record, error) {
	var rec types.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parsing record: %w", err)
	}
	return &rec, nil
}

// Encode serializes a record the way the store writes it: indented JSON
// with a trailing newline, so record files diff cleanly in git.
func Encode(rec *types.Record) ([]byte, error) {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling record %s: %w", rec.ID, err)
	}
	return append(data, '\n'), nil
}

// Save writes rec, advancing its version by exactly 1.
//
// rec.Version must equal the version currently on disk (or 0 for a record
// that does not exist yet); otherwise Save fails with *StaleWriteError and
// writes nothing. On success rec.Version holds the new stored version.
func (s *Store) Save(rec *types.Record) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("saving record: %w", err)
	}

	current, err := s.Load(rec.ID)
	var nf *NotFoundError
	switch {
	case err == nil:
		if rec.Version != current.Version {
			return &StaleWriteError{ID: rec.ID, Stored: current.Version, Loaded: rec.Version}
		}
	case errors.As(err, &nf):
		if rec.Version != 0 {
			return &StaleWriteError{ID: rec.ID, Stored: 0, Loaded: rec.Version}
		}
	default:
		return err
	}

	rec.Version++
	if err := s.write(rec); err != nil {
		rec.Version--
		return err
	}
	return nil
}

// Put writes rec at exactly the version it carries, skipping the stale-write
// guard. Only the sync engine uses this: merged versions come from merge
// arithmetic over committed history, not from a load/modify/save cycle.
func (s *Store) Put(rec *types.Record) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("writing merged record: %w", err)
	}
	return s.write(rec)
}

// write performs an atomic temp-file-and-rename write of one record.
func (s *Store) write(rec *types.Record) error {
	if err := os.MkdirAll(s.dir, 0750); err != nil {
		return fmt.Errorf("creating records directory: %w", err)
	}

	data, err := Encode(rec)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, rec.ID+".tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file for record %s: %w", rec.ID, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("writing record %s: %w", rec.ID, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file for record %s: %w", rec.ID, err)
	}
	if err := os.Rename(tmpPath, s.path(rec.ID)); err != nil {
		return fmt.Errorf("replacing record %s: %w", rec.ID, err)
	}
	return nil
}

// List returns every record in the store, ordered by internal id. Internal
// ids are time-sortable, so this is creation order.
func (s *Store) List() ([]*types.Record, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}

	var recs []*types.Record
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") || strings.Contains(name, ".tmp.") {
			continue
		}
		rec, err := s.Load(strings.TrimSuffix(name, ".json"))
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}

	sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
	return recs, nil
}

// FindByShortID resolves a human-facing id to its record.
func (s *Store) FindByShortID(shortID string) (*types.Record, error) {
	recs, err := s.List()
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		if rec.ShortID == shortID {
			return rec, nil
		}
	}
	return nil, &NotFoundError{ID: shortID}
}

// StageLocalChange is the CLI's write path ahead of a sync: a plain
// version-guarded Save. The name matches the interface the sync engine's
// collaborators program against.
func (s *Store) StageLocalChange(rec *types.Record) error {
	return s.Save(rec)
}
