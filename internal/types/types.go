// Package types defines core data structures for the tbd issue tracker.
package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status is the lifecycle state of a record
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusBlocked    Status = "blocked"
	StatusClosed     Status = "closed"
)

// ValidStatus checks whether s is a known status value
func ValidStatus(s Status) bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusBlocked, StatusClosed:
		return true
	}
	return false
}

// Kind categorizes a record
type Kind string

const (
	KindTask    Kind = "task"
	KindBug     Kind = "bug"
	KindFeature Kind = "feature"
	KindChore   Kind = "chore"
	KindEpic    Kind = "epic"
)

// ValidKind checks whether k is a known kind value
func ValidKind(k Kind) bool {
	switch k {
	case KindTask, KindBug, KindFeature, KindChore, KindEpic:
		return true
	}
	return false
}

// Record represents a trackable work item.
//
// ID is assigned once at creation and never changes or gets reused; it is
// time-sortable so records list in creation order without a secondary index.
// Version increments by exactly 1 on every saved field change and drives
// optimistic-concurrency checks during merge.
//
// Unknown JSON keys survive a load/save round trip via Extra, so records
// written by newer versions of tbd pass through older clones unchanged.
type Record struct {
	ID          string     `json:"id"`
	ShortID     string     `json:"short_id"`
	Title       string     `json:"title"`
	Kind        Kind       `json:"kind,omitempty"`
	Status      Status     `json:"status,omitempty"`
	Priority    int        `json:"priority"` // No omitempty: 0 is valid (P0/critical)
	Assignee    string     `json:"assignee,omitempty"`
	Labels      []string   `json:"labels,omitempty"`
	DependsOn   []string   `json:"depends_on,omitempty"`
	Parent      string     `json:"parent,omitempty"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	DeferUntil  *time.Time `json:"defer_until,omitempty"`
	CreatedBy   string     `json:"created_by,omitempty"`
	SourceRepo  string     `json:"source_repo,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
	CloseReason string     `json:"close_reason,omitempty"`
	Version     int        `json:"version"`

	// Extra holds extension fields this version of tbd does not know about.
	// Keys never collide with the tagged fields above; UnmarshalJSON strips
	// the known keys before capturing the remainder.
	Extra map[string]json.RawMessage `json:"-"`
}

// recordAlias avoids infinite recursion in the custom JSON methods
type recordAlias Record

// knownRecordKeys lists the JSON keys owned by the tagged Record fields.
// types_test.go verifies this stays in sync with the struct tags.
var knownRecordKeys = []string{
	"id", "short_id", "title", "kind", "status", "priority", "assignee",
	"labels", "depends_on", "parent", "due_at", "defer_until", "created_by",
	"source_repo", "created_at", "updated_at", "closed_at", "close_reason",
	"version",
}

// UnmarshalJSON decodes a record, capturing unknown keys into Extra.
func (r *Record) UnmarshalJSON(data []byte) error {
	var known recordAlias
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, k := range knownRecordKeys {
		delete(raw, k)
	}
	if len(raw) > 0 {
		known.Extra = raw
	}

	*r = Record(known)
	return nil
}

// MarshalJSON encodes a record, re-emitting Extra keys alongside the known
// fields. Known fields always win on a key collision.
func (r Record) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(recordAlias(r))
	if err != nil {
		return nil, err
	}
	if len(r.Extra) == 0 {
		return data, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for k, v := range r.Extra {
		if _, owned := merged[k]; !owned {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// Clone returns a deep copy of the record
func (r *Record) Clone() *Record {
	c := *r
	if r.Labels != nil {
		c.Labels = append([]string(nil), r.Labels...)
	}
	if r.DependsOn != nil {
		c.DependsOn = append([]string(nil), r.DependsOn...)
	}
	c.DueAt = cloneTimePtr(r.DueAt)
	c.DeferUntil = cloneTimePtr(r.DeferUntil)
	c.ClosedAt = cloneTimePtr(r.ClosedAt)
	if r.Extra != nil {
		c.Extra = make(map[string]json.RawMessage, len(r.Extra))
		for k, v := range r.Extra {
			c.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return &c
}

func cloneTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Validate checks the invariants every stored record must satisfy
func (r *Record) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("record missing id")
	}
	if r.Title == "" {
		return fmt.Errorf("record %s: missing title", r.ID)
	}
	if r.Status != "" && !ValidStatus(r.Status) {
		return fmt.Errorf("record %s: invalid status %q", r.ID, r.Status)
	}
	if r.Kind != "" && !ValidKind(r.Kind) {
		return fmt.Errorf("record %s: invalid kind %q", r.ID, r.Kind)
	}
	if r.Version < 0 {
		return fmt.Errorf("record %s: negative version %d", r.ID, r.Version)
	}
	return nil
}

// IsClosed reports whether the record has been closed
func (r *Record) IsClosed() bool {
	return r.Status == StatusClosed
}
