// Package attic maintains the append-only audit ledger of values discarded
// during conflict resolution. The attic.jsonl file records every losing
// value before the merged record is written, so a merge can never silently
// destroy data. Entries are never updated or deleted; there is no API for
// either.
package attic

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Entry is one discarded value, written exactly once at merge time.
type Entry struct {
	EntityID     string          `json:"entity_id"`
	Timestamp    time.Time       `json:"ts"`
	Field        string          `json:"field"`
	LostValue    json.RawMessage `json:"lost_value"`
	WinnerSource string          `json:"winner_source"`
	LoserSource  string          `json:"loser_source"`
	Context      string          `json:"context,omitempty"`
}

// key returns the dedup identity of an entry: the full serialized form.
// Two clones that resolved the same conflict produce byte-identical entries.
func (e Entry) key() string {
	data, err := json.Marshal(e)
	if err != nil {
		// Entry fields are all marshalable types; this cannot happen.
		return fmt.Sprintf("%s|%s|%s", e.EntityID, e.Timestamp.Format(time.RFC3339Nano), e.Field)
	}
	return string(data)
}

// Ledger is an append-only JSONL file of attic entries.
type Ledger struct {
	path string
	mu   sync.Mutex
}

// NewLedger returns a ledger backed by path (typically .tbd/attic.jsonl).
func NewLedger(path string) *Ledger {
	return &Ledger{path: path}
}

// Path returns the ledger file location.
func (l *Ledger) Path() string {
	return l.path
}

// Append writes one entry to the end of the ledger. It fails only on I/O
// error. Appends within a sync run are additionally serialized by the
// orchestrator; the mutex here guards incidental concurrent callers.
func (l *Ledger) Append(e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0750); err != nil {
		return fmt.Errorf("creating attic directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644) // #nosec G304 - controlled path
	if err != nil {
		return fmt.Errorf("opening attic ledger for append: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshaling attic entry for %s: %w", e.EntityID, err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("appending attic entry for %s: %w", e.EntityID, err)
	}
	return nil
}

// ListFor returns a lazy, restartable sequence of the entries for one
// entity, ordered by timestamp. Each range over the sequence re-reads the
// file, so the sequence observes entries appended since the last pass.
func (l *Ledger) ListFor(entityID string) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		entries, err := l.ReadAll()
		if err != nil {
			yield(Entry{}, err)
			return
		}
		for _, e := range entries {
			if e.EntityID != entityID {
				continue
			}
			if !yield(e, nil) {
				return
			}
		}
	}
}

// ReadAll loads the whole ledger ordered by timestamp. A missing file is an
// empty ledger.
func (l *Ledger) ReadAll() ([]Entry, error) {
	f, err := os.Open(l.path) // #nosec G304 - controlled path
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening attic ledger: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	// Lost values can be large (whole label lists, long titles).
	scanner.Buffer(make([]byte, 0, 1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("attic ledger line %d corrupt: %w", lineNo, err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading attic ledger: %w", err)
	}

	sortEntries(entries)
	return entries, nil
}

// Parse decodes JSONL ledger content, e.g. the ledger file at a specific
// commit. Entries come back in file order, not sorted.
func Parse(data []byte) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("attic ledger line %d corrupt: %w", lineNo, err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading attic ledger content: %w", err)
	}
	return entries, nil
}

// Count returns the number of entries in the ledger.
func (l *Ledger) Count() (int, error) {
	entries, err := l.ReadAll()
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Merge computes the deduplicated union of two ledgers' entries, ordered by
// timestamp. Both sides of a sync carry the ledger on the sync branch; a
// textual git merge could drop or duplicate lines, so the sync engine
// rebuilds the merged ledger with this instead.
func Merge(local, remote []Entry) []Entry {
	seen := make(map[string]bool, len(local)+len(remote))
	merged := make([]Entry, 0, len(local)+len(remote))
	for _, e := range local {
		if k := e.key(); !seen[k] {
			seen[k] = true
			merged = append(merged, e)
		}
	}
	for _, e := range remote {
		if k := e.key(); !seen[k] {
			seen[k] = true
			merged = append(merged, e)
		}
	}
	sortEntries(merged)
	return merged
}

// WriteAll atomically replaces the ledger with the given entries. Only the
// sync engine calls this, and only with a Merge result that is a superset of
// the current file; the append-only guarantee holds across the rewrite.
func (l *Ledger) WriteAll(entries []Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("creating attic directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(l.path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp attic file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshaling attic entry for %s: %w", e.EntityID, err)
		}
		if _, err := tmp.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("writing attic entry for %s: %w", e.EntityID, err)
		}
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp attic file: %w", err)
	}
	if err := os.Rename(tmpPath, l.path); err != nil {
		return fmt.Errorf("replacing attic ledger: %w", err)
	}
	return nil
}

// sortEntries orders by timestamp, then entity id and field for a stable
// order when timestamps tie.
func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].Timestamp.Before(entries[j].Timestamp)
		}
		if entries[i].EntityID != entries[j].EntityID {
			return entries[i].EntityID < entries[j].EntityID
		}
		return entries[i].Field < entries[j].Field
	})
}

// DefaultPath returns the ledger location under the tbd data directory.
func DefaultPath(tbdDir string) string {
	return filepath.Join(tbdDir, "attic.jsonl")
}
