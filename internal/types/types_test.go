package types

import (
	"encoding/json"
	"reflect"
	"sort"
	"strings"
	"testing"
	"time"
)

// TestKnownRecordKeysMatchTags guards against field drift: every tagged
// field must appear in knownRecordKeys and vice versa, or extension-map
// passthrough silently swallows a real field.
func TestKnownRecordKeysMatchTags(t *testing.T) {
	var tagged []string
	rt := reflect.TypeOf(Record{})
	for i := 0; i < rt.NumField(); i++ {
		tag := rt.Field(i).Tag.Get("json")
		if tag == "" || tag == "-" {
			continue
		}
		name := strings.Split(tag, ",")[0]
		tagged = append(tagged, name)
	}

	want := append([]string(nil), tagged...)
	got := append([]string(nil), knownRecordKeys...)
	sort.Strings(want)
	sort.Strings(got)

	if !reflect.DeepEqual(got, want) {
		t.Errorf("knownRecordKeys out of sync with struct tags:\n got %v\nwant %v", got, want)
	}
}

func TestRecordRoundTripPreservesUnknownKeys(t *testing.T) {
	in := `{"id":"rec-1","short_id":"tbd-a1b","title":"Fix the widget","status":"open","priority":2,"created_at":"2026-01-02T03:04:05Z","updated_at":"2026-01-02T03:04:05Z","version":3,"future_field":{"nested":true},"another":"keep me"}`

	var rec Record
	if err := json.Unmarshal([]byte(in), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if rec.Title != "Fix the widget" {
		t.Errorf("Title = %q, want %q", rec.Title, "Fix the widget")
	}
	if rec.Version != 3 {
		t.Errorf("Version = %d, want 3", rec.Version)
	}
	if len(rec.Extra) != 2 {
		t.Fatalf("Extra = %v, want 2 unknown keys", rec.Extra)
	}
	if string(rec.Extra["another"]) != `"keep me"` {
		t.Errorf("Extra[another] = %s", rec.Extra["another"])
	}

	out, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back Record
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("re-unmarshal: %v", err)
	}
	if string(back.Extra["future_field"]) != `{"nested":true}` {
		t.Errorf("future_field lost in round trip: %s", back.Extra["future_field"])
	}
	if back.Title != rec.Title || back.Version != rec.Version || back.Status != rec.Status {
		t.Errorf("known fields drifted in round trip: %+v vs %+v", back, rec)
	}
}

func TestRecordExtraNeverShadowsKnownFields(t *testing.T) {
	rec := Record{
		ID:        "rec-1",
		ShortID:   "tbd-x",
		Title:     "real title",
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Extra: map[string]json.RawMessage{
			"title": json.RawMessage(`"impostor"`),
		},
	}

	out, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Record
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Title != "real title" {
		t.Errorf("Title = %q, extension key shadowed a known field", back.Title)
	}
}

func TestCloneIsDeep(t *testing.T) {
	due := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rec := &Record{
		ID:        "rec-1",
		Title:     "original",
		Labels:    []string{"a", "b"},
		DependsOn: []string{"rec-2"},
		DueAt:     &due,
		Extra:     map[string]json.RawMessage{"k": json.RawMessage(`1`)},
	}

	c := rec.Clone()
	c.Labels[0] = "mutated"
	*c.DueAt = c.DueAt.AddDate(1, 0, 0)
	c.Extra["k"] = json.RawMessage(`2`)

	if rec.Labels[0] != "a" {
		t.Error("Clone shares Labels backing array")
	}
	if !rec.DueAt.Equal(due) {
		t.Error("Clone shares DueAt pointer")
	}
	if string(rec.Extra["k"]) != "1" {
		t.Error("Clone shares Extra map")
	}
}

func TestValidate(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name    string
		rec     Record
		wantErr bool
	}{
		{"valid", Record{ID: "r1", Title: "t", Status: StatusOpen, Kind: KindBug, CreatedAt: now, UpdatedAt: now}, false},
		{"missing id", Record{Title: "t"}, true},
		{"missing title", Record{ID: "r1"}, true},
		{"bad status", Record{ID: "r1", Title: "t", Status: "nope"}, true},
		{"bad kind", Record{ID: "r1", Title: "t", Kind: "gadget"}, true},
		{"negative version", Record{ID: "r1", Title: "t", Version: -1}, true},
		{"empty status ok", Record{ID: "r1", Title: "t"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rec.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
