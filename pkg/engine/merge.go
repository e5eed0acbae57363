// Package engine holds the pure reconciliation computations: merging a set
// of library templates into a remote collection, and removing addons from
// one. Nothing here does I/O; protection and absence are outcomes recorded
// as data, never errors.
package engine

import (
	"fmt"

	"github.com/DrZacharySmith/stremio-account-manager/pkg/addon"
	"github.com/DrZacharySmith/stremio-account-manager/pkg/library"
)

// Merge strategies.
const (
	StrategyReplaceMatching = "replace-matching"
	StrategyAddOnly         = "add-only"
)

// AddonRef identifies one addon in a merge outcome log.
type AddonRef struct {
	AddonID string `json:"addonId"`
	Name    string `json:"name"`
}

// MergeResult is the per-addon outcome log for a single merge.
type MergeResult struct {
	Added     []AddonRef `json:"added"`
	Updated   []AddonRef `json:"updated"`
	Skipped   []AddonRef `json:"skipped"`
	Protected []AddonRef `json:"protected"`
}

// Changed reports whether the merge altered the collection at all.
func (r MergeResult) Changed() bool {
	return len(r.Added) > 0 || len(r.Updated) > 0
}

// AppliedIDs returns the manifest ids of templates that were actually
// applied (added or updated), in outcome order.
func (r MergeResult) AppliedIDs() []string {
	ids := make([]string, 0, len(r.Added)+len(r.Updated))
	for _, ref := range r.Added {
		ids = append(ids, ref.AddonID)
	}
	for _, ref := range r.Updated {
		ids = append(ids, ref.AddonID)
	}
	return ids
}

// Merge computes the collection that results from applying templates to
// current under the given strategy. Templates are visited in slice order.
// A template matching an existing addon by manifest id is replaced in
// place under replace-matching (original index kept) or skipped under
// add-only; unmatched templates are appended at the tail in template
// order. Protected collection entries are never replaced; colliding
// templates are recorded under Protected and the entry left untouched.
//
// The input collection is never mutated. An unknown strategy is the only
// error condition.
func Merge(current []addon.Descriptor, templates []library.SavedAddon, strategy string) ([]addon.Descriptor, MergeResult, error) {
	if strategy != StrategyReplaceMatching && strategy != StrategyAddOnly {
		return nil, MergeResult{}, fmt.Errorf("unknown merge strategy %q", strategy)
	}

	out := addon.CloneCollection(current)
	var result MergeResult

	for _, tpl := range templates {
		ref := AddonRef{AddonID: tpl.Manifest.ID, Name: tpl.Name}
		idx := addon.IndexByID(out, tpl.Manifest.ID)
		switch {
		case idx < 0:
			out = append(out, descriptorFromTemplate(tpl))
			result.Added = append(result.Added, ref)
		case out[idx].IsProtected():
			result.Protected = append(result.Protected, ref)
		case strategy == StrategyAddOnly:
			result.Skipped = append(result.Skipped, ref)
		default:
			out[idx] = descriptorFromTemplate(tpl)
			result.Updated = append(result.Updated, ref)
		}
	}

	return out, result, nil
}

// descriptorFromTemplate builds the descriptor installed for a template.
// Flags are never carried over; the remote service owns them.
func descriptorFromTemplate(tpl library.SavedAddon) addon.Descriptor {
	return addon.Descriptor{
		TransportURL: tpl.InstallURL,
		Manifest:     tpl.Manifest,
	}
}
