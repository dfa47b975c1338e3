// Package resolve computes field-level merges of divergent record versions.
//
// Git's textual merge cannot see record structure, so the sync engine never
// trusts merge markers: both sides plus their common ancestor are
// deserialized and diffed attribute by attribute. The resolver is pure
// computation over record content; it writes nothing. Callers persist the
// merged record and the attic entries it returns.
package resolve

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/tbd-tracker/tbd/internal/attic"
	"github.com/tbd-tracker/tbd/internal/types"
)

// metaKeys are excluded from the per-field diff. Identity fields are
// immutable and identical on both sides; version and updated_at are computed
// for the merged record rather than resolved.
var metaKeys = map[string]bool{
	"id":         true,
	"short_id":   true,
	"created_at": true,
	"created_by": true,
	"version":    true,
	"updated_at": true,
}

// Input is one record's divergence: the local and remote versions and their
// nearest common ancestor. Ancestor is nil when the record has no common
// history. LocalSource and RemoteSource identify the two merged tips (commit
// hashes); both clones of a repository see the same pair, so tie-breaks on
// them reproduce identically everywhere.
type Input struct {
	Ancestor     *types.Record
	Local        *types.Record
	Remote       *types.Record
	LocalSource  string
	RemoteSource string

	// ResolvedAt stamps the attic entries. The orchestrator fixes one value
	// per sync run so a re-reconciliation after a push race regenerates
	// byte-identical entries and the ledger union deduplicates them.
	ResolvedAt time.Time
}

// Result is the merged record plus the audit trail of every value the merge
// discarded. Entries is empty when the two sides touched disjoint fields.
type Result struct {
	Merged  *types.Record
	Entries []attic.Entry
}

// Merge three-way-merges one record. For each field: a side that matches the
// ancestor yields to the other side; when both sides changed the same field
// to different values, the winner is chosen deterministically and the losing
// value goes to the attic. List-valued fields are compared as whole values.
// Never fails on record content, only on serialization.
func Merge(in Input) (Result, error) {
	if in.Local == nil || in.Remote == nil {
		return Result{}, fmt.Errorf("resolve: both sides required (one-sided records are fast-forwarded, not merged)")
	}

	localMap, err := toFieldMap(in.Local)
	if err != nil {
		return Result{}, fmt.Errorf("resolve %s: local side: %w", in.Local.ID, err)
	}
	remoteMap, err := toFieldMap(in.Remote)
	if err != nil {
		return Result{}, fmt.Errorf("resolve %s: remote side: %w", in.Local.ID, err)
	}
	ancestorMap := map[string]json.RawMessage{}
	if in.Ancestor != nil {
		ancestorMap, err = toFieldMap(in.Ancestor)
		if err != nil {
			return Result{}, fmt.Errorf("resolve %s: ancestor: %w", in.Local.ID, err)
		}
	}

	localWins, rule := pickWinner(in)

	merged := make(map[string]json.RawMessage, len(localMap))
	var entries []attic.Entry

	for _, field := range fieldUnion(ancestorMap, localMap, remoteMap) {
		if metaKeys[field] {
			continue
		}
		aVal, inA := ancestorMap[field]
		lVal, inL := localMap[field]
		rVal, inR := remoteMap[field]

		localChanged := rawDiffers(aVal, inA, lVal, inL)
		remoteChanged := rawDiffers(aVal, inA, rVal, inR)
		sidesAgree := !rawDiffers(lVal, inL, rVal, inR)

		switch {
		case sidesAgree:
			if inL {
				merged[field] = lVal
			}
		case !remoteChanged:
			if inL {
				merged[field] = lVal
			}
		case !localChanged:
			if inR {
				merged[field] = rVal
			}
		default:
			// Both sides changed the field to different values.
			winVal, winIn := rVal, inR
			lostVal, lostIn := lVal, inL
			winnerSource, loserSource := in.RemoteSource, in.LocalSource
			if localWins {
				winVal, winIn = lVal, inL
				lostVal, lostIn = rVal, inR
				winnerSource, loserSource = in.LocalSource, in.RemoteSource
			}
			if winIn {
				merged[field] = winVal
			}
			if !lostIn {
				lostVal = json.RawMessage("null")
			}
			entries = append(entries, attic.Entry{
				EntityID:     in.Local.ID,
				Timestamp:    in.ResolvedAt,
				Field:        field,
				LostValue:    append(json.RawMessage(nil), lostVal...),
				WinnerSource: winnerSource,
				LoserSource:  loserSource,
				Context:      fmt.Sprintf("both modified %s since common ancestor; kept %s side (%s)", field, sideName(localWins), rule),
			})
		}
	}

	// Identity fields carry over unchanged from either side.
	for _, field := range []string{"id", "short_id", "created_at", "created_by"} {
		if v, ok := localMap[field]; ok {
			merged[field] = v
		}
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return Result{}, fmt.Errorf("resolve %s: encoding merged record: %w", in.Local.ID, err)
	}
	var rec types.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Result{}, fmt.Errorf("resolve %s: decoding merged record: %w", in.Local.ID, err)
	}

	rec.Version = max(in.Local.Version, in.Remote.Version) + 1
	rec.UpdatedAt = laterOf(in.Local.UpdatedAt, in.Remote.UpdatedAt)

	return Result{Merged: &rec, Entries: entries}, nil
}

// pickWinner applies the conflict precedence once per record pair: strictly
// higher version, then later updated_at, then the side whose tip hash sorts
// first. The last rule is the only one reproducible across clones with clock
// skew, so it is the authoritative final tie-break.
func pickWinner(in Input) (localWins bool, rule string) {
	switch {
	case in.Local.Version != in.Remote.Version:
		return in.Local.Version > in.Remote.Version, "higher version wins"
	case !in.Local.UpdatedAt.Equal(in.Remote.UpdatedAt):
		return in.Local.UpdatedAt.After(in.Remote.UpdatedAt), "later updated_at wins"
	default:
		return in.LocalSource < in.RemoteSource, "lexically first source wins"
	}
}

func sideName(localWins bool) string {
	if localWins {
		return "local"
	}
	return "remote"
}

// toFieldMap flattens a record to its JSON field map. Extension-map keys
// appear alongside the tagged fields, so unknown attributes get the same
// per-field treatment as known ones.
func toFieldMap(r *types.Record) (map[string]json.RawMessage, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// rawDiffers reports whether two optional raw values differ. An absent field
// differs from any present one.
func rawDiffers(a json.RawMessage, inA bool, b json.RawMessage, inB bool) bool {
	if inA != inB {
		return true
	}
	if !inA {
		return false
	}
	return !bytes.Equal(a, b)
}

// fieldUnion returns the sorted union of all field names, so conflicted
// fields resolve and emit attic entries in a stable order.
func fieldUnion(maps ...map[string]json.RawMessage) []string {
	seen := make(map[string]bool)
	var fields []string
	for _, m := range maps {
		for k := range m {
			if !seen[k] {
				seen[k] = true
				fields = append(fields, k)
			}
		}
	}
	sort.Strings(fields)
	return fields
}

func laterOf(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
