// Package library manages the local collection of reusable addon
// templates and their tags.
package library

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/DrZacharySmith/stremio-account-manager/pkg/addon"
)

// ErrNotFound is returned when a saved addon id is unknown.
var ErrNotFound = errors.New("saved addon not found")

// Library holds the saved-addon templates in memory. It is not safe for
// concurrent mutation; orchestration is strictly sequential and the caller
// persists after each successful change.
type Library struct {
	addons map[string]SavedAddon
}

// New wraps an existing map of saved addons, typically loaded from
// storage. A nil map starts an empty library.
func New(addons map[string]SavedAddon) *Library {
	if addons == nil {
		addons = make(map[string]SavedAddon)
	}
	return &Library{addons: addons}
}

// Len returns the number of saved addons.
func (l *Library) Len() int { return len(l.addons) }

// Get returns the saved addon with the given id.
func (l *Library) Get(id string) (SavedAddon, error) {
	saved, ok := l.addons[id]
	if !ok {
		return SavedAddon{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return saved, nil
}

// All returns every saved addon sorted by name, then id for stability.
func (l *Library) All() []SavedAddon {
	out := make([]SavedAddon, 0, len(l.addons))
	for _, saved := range l.addons {
		out = append(out, saved)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Snapshot returns a copy of the underlying map, keyed by id.
func (l *Library) Snapshot() map[string]SavedAddon {
	out := make(map[string]SavedAddon, len(l.addons))
	for id, saved := range l.addons {
		out[id] = saved
	}
	return out
}

// Create adds a new saved addon and returns it.
func (l *Library) Create(name, installURL string, manifest addon.Manifest, tags []string, sourceType, sourceAccountID string, now time.Time) SavedAddon {
	if name == "" {
		name = manifest.Name
	}
	saved := SavedAddon{
		ID:              uuid.NewString(),
		Name:            name,
		InstallURL:      installURL,
		Manifest:        manifest,
		Tags:            NormalizeTags(tags),
		CreatedAt:       now,
		UpdatedAt:       now,
		SourceType:      sourceType,
		SourceAccountID: sourceAccountID,
	}
	l.addons[saved.ID] = saved
	return saved
}

// Update replaces an existing saved addon, stamping UpdatedAt. The id
// must already exist.
func (l *Library) Update(saved SavedAddon, now time.Time) error {
	existing, ok := l.addons[saved.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, saved.ID)
	}
	saved.CreatedAt = existing.CreatedAt
	saved.Tags = NormalizeTags(saved.Tags)
	saved.UpdatedAt = now
	l.addons[saved.ID] = saved
	return nil
}

// Delete removes a saved addon. Accounts it was applied to are not
// touched; provenance links elsewhere simply go stale.
func (l *Library) Delete(id string) error {
	if _, ok := l.addons[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(l.addons, id)
	return nil
}

// ByTag returns all saved addons holding tag, in All() order.
func (l *Library) ByTag(tag string) []SavedAddon {
	var out []SavedAddon
	for _, saved := range l.All() {
		if saved.HasTag(tag) {
			out = append(out, saved)
		}
	}
	return out
}

// Tags returns the sorted set of normalized tags across the library.
func (l *Library) Tags() []string {
	seen := make(map[string]bool)
	var out []string
	for _, saved := range l.addons {
		for _, t := range saved.Tags {
			norm := addon.NormalizeTag(t)
			if norm == "" || seen[norm] {
				continue
			}
			seen[norm] = true
			out = append(out, norm)
		}
	}
	sort.Strings(out)
	return out
}

// RenameTag renames a tag across every template holding it and returns
// how many templates were touched.
func (l *Library) RenameTag(oldTag, newTag string, now time.Time) int {
	oldNorm := addon.NormalizeTag(oldTag)
	count := 0
	for id, saved := range l.addons {
		changed := false
		for i, t := range saved.Tags {
			if addon.NormalizeTag(t) == oldNorm {
				saved.Tags[i] = newTag
				changed = true
			}
		}
		if changed {
			saved.Tags = NormalizeTags(saved.Tags)
			saved.UpdatedAt = now
			l.addons[id] = saved
			count++
		}
	}
	return count
}

// FindByInstallURL returns the first saved addon whose install URL
// exactly matches url. Comparison is raw string equality; see Sync's
// auto-link contract.
func (l *Library) FindByInstallURL(url string) (SavedAddon, bool) {
	for _, saved := range l.All() {
		if saved.InstallURL == url {
			return saved, true
		}
	}
	return SavedAddon{}, false
}

// TouchLastUsed stamps lastUsed on each listed template. Unknown ids are
// ignored; the caller derives the list from merge outcomes.
func (l *Library) TouchLastUsed(ids []string, now time.Time) {
	for _, id := range ids {
		saved, ok := l.addons[id]
		if !ok {
			continue
		}
		t := now
		saved.LastUsed = &t
		l.addons[id] = saved
	}
}

// SetHealth records a health-check result on a saved addon.
func (l *Library) SetHealth(id string, isOnline bool, now time.Time) {
	saved, ok := l.addons[id]
	if !ok {
		return
	}
	saved.Health = &Health{IsOnline: isOnline, LastChecked: now}
	l.addons[id] = saved
}

// NormalizeTags trims, drops empties, and deduplicates tags while keeping
// first-seen order and casing.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range tags {
		trimmed := strings.TrimSpace(t)
		if trimmed == "" {
			continue
		}
		norm := addon.NormalizeTag(trimmed)
		if seen[norm] {
			continue
		}
		seen[norm] = true
		out = append(out, trimmed)
	}
	return out
}
