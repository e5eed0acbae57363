package engine

import "github.com/DrZacharySmith/stremio-account-manager/pkg/addon"

// Remove computes the collection with the requested manifest ids dropped.
// Protected matches stay in place and their ids are returned separately so
// callers can report them as skipped rather than failed. Ids that don't
// appear in the collection are ignored. The input is never mutated.
func Remove(current []addon.Descriptor, addonIDs []string) ([]addon.Descriptor, []string) {
	requested := make(map[string]bool, len(addonIDs))
	for _, id := range addonIDs {
		requested[id] = true
	}

	out := make([]addon.Descriptor, 0, len(current))
	var protected []string
	for _, d := range current {
		if !requested[d.Manifest.ID] {
			out = append(out, d)
			continue
		}
		if d.IsProtected() {
			protected = append(protected, d.Manifest.ID)
			out = append(out, d)
			continue
		}
	}
	return out, protected
}
