package records

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tbd-tracker/tbd/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "records"))
}

func testRecord(id string) *types.Record {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	return &types.Record{
		ID:        id,
		ShortID:   "tbd-" + id,
		Title:     "record " + id,
		Status:    types.StatusOpen,
		Kind:      types.KindTask,
		Priority:  2,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestSaveAssignsVersionOne(t *testing.T) {
	s := newTestStore(t)
	rec := testRecord("r1")

	if err := s.Save(rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if rec.Version != 1 {
		t.Errorf("Version = %d, want 1", rec.Version)
	}

	loaded, err := s.Load("r1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Version != 1 {
		t.Errorf("stored Version = %d, want 1", loaded.Version)
	}
}

// Version monotonicity: each save advances the stored version by exactly 1.
func TestVersionMonotonicity(t *testing.T) {
	s := newTestStore(t)
	rec := testRecord("r1")
	if err := s.Save(rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	for i := 0; i < 10; i++ {
		loaded, err := s.Load("r1")
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		prev := loaded.Version
		loaded.Title = "edited"
		if err := s.Save(loaded); err != nil {
			t.Fatalf("Save %d: %v", i, err)
		}
		if loaded.Version != prev+1 {
			t.Fatalf("save %d: version went %d -> %d, want +1", i, prev, loaded.Version)
		}
	}
}

func TestSaveStaleWriteFails(t *testing.T) {
	s := newTestStore(t)
	rec := testRecord("r1")
	if err := s.Save(rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Two loads of the same version; the second save must fail.
	a, _ := s.Load("r1")
	b, _ := s.Load("r1")

	a.Title = "first writer"
	if err := s.Save(a); err != nil {
		t.Fatalf("first Save: %v", err)
	}

	b.Title = "second writer"
	err := s.Save(b)
	var stale *StaleWriteError
	if !errors.As(err, &stale) {
		t.Fatalf("second Save error = %v, want StaleWriteError", err)
	}
	if stale.Stored != 2 || stale.Loaded != 1 {
		t.Errorf("StaleWriteError = stored %d / loaded %d, want 2 / 1", stale.Stored, stale.Loaded)
	}

	// Nothing was clobbered.
	loaded, _ := s.Load("r1")
	if loaded.Title != "first writer" {
		t.Errorf("stale write clobbered data: Title = %q", loaded.Title)
	}
}

func TestSaveNewRecordRequiresVersionZero(t *testing.T) {
	s := newTestStore(t)
	rec := testRecord("r1")
	rec.Version = 5

	err := s.Save(rec)
	var stale *StaleWriteError
	if !errors.As(err, &stale) {
		t.Fatalf("Save error = %v, want StaleWriteError", err)
	}
}

func TestLoadNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Load("missing")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("Load error = %v, want NotFoundError", err)
	}
}

func TestRoundTripPreservesExtensionMap(t *testing.T) {
	s := newTestStore(t)
	rec := testRecord("r1")
	rec.Extra = map[string]json.RawMessage{
		"new_feature": json.RawMessage(`{"enabled":true}`),
	}
	if err := s.Save(rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := s.Load("r1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(loaded.Extra["new_feature"]) != `{"enabled":true}` {
		t.Errorf("extension map lost: %v", loaded.Extra)
	}
}

func TestListOrderedAndSkipsTempFiles(t *testing.T) {
	s := newTestStore(t)
	for _, id := range []string{"b2", "a1", "c3"} {
		if err := s.Save(testRecord(id)); err != nil {
			t.Fatalf("Save %s: %v", id, err)
		}
	}

	// A leftover temp file from a crashed write must not surface.
	if err := os.WriteFile(filepath.Join(s.Dir(), "a1.tmp.123"), []byte("junk"), 0644); err != nil {
		t.Fatal(err)
	}

	recs, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("List returned %d records, want 3", len(recs))
	}
	for i, want := range []string{"a1", "b2", "c3"} {
		if recs[i].ID != want {
			t.Errorf("List[%d].ID = %s, want %s", i, recs[i].ID, want)
		}
	}
}

func TestListEmptyStore(t *testing.T) {
	s := newTestStore(t)
	recs, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("List on missing dir = %d records, want 0", len(recs))
	}
}

func TestFindByShortID(t *testing.T) {
	s := newTestStore(t)
	if err := s.Save(testRecord("r1")); err != nil {
		t.Fatal(err)
	}

	rec, err := s.FindByShortID("tbd-r1")
	if err != nil {
		t.Fatalf("FindByShortID: %v", err)
	}
	if rec.ID != "r1" {
		t.Errorf("FindByShortID returned %s, want r1", rec.ID)
	}

	if _, err := s.FindByShortID("tbd-nope"); err == nil {
		t.Error("FindByShortID should fail for unknown short id")
	}
}

func TestPutSkipsStaleGuard(t *testing.T) {
	s := newTestStore(t)
	rec := testRecord("r1")
	if err := s.Save(rec); err != nil {
		t.Fatal(err)
	}

	merged := rec.Clone()
	merged.Version = 7 // merge arithmetic, not load/modify/save
	merged.Title = "merged"
	if err := s.Put(merged); err != nil {
		t.Fatalf("Put: %v", err)
	}

	loaded, _ := s.Load("r1")
	if loaded.Version != 7 || loaded.Title != "merged" {
		t.Errorf("Put result = v%d %q, want v7 \"merged\"", loaded.Version, loaded.Title)
	}
}
