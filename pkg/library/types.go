package library

import (
	"time"

	"github.com/DrZacharySmith/stremio-account-manager/pkg/addon"
)

// Source types for a saved addon.
const (
	SourceManual = "manual"
	SourceCloned = "cloned-from-account"
)

// Health is the last known liveness of a saved addon's transport URL.
type Health struct {
	IsOnline    bool      `json:"isOnline"`
	LastChecked time.Time `json:"lastChecked"`
}

// SavedAddon is a reusable addon template kept in the local library.
// Deleting one never retroactively affects accounts it was applied to;
// provenance links are advisory only.
type SavedAddon struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	InstallURL      string         `json:"installUrl"`
	Manifest        addon.Manifest `json:"manifest"`
	Tags            []string       `json:"tags,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
	LastUsed        *time.Time     `json:"lastUsed,omitempty"`
	SourceType      string         `json:"sourceType"`
	SourceAccountID string         `json:"sourceAccountId,omitempty"`
	Health          *Health        `json:"health,omitempty"`
}

// HasTag reports whether the saved addon carries tag, compared after
// normalization.
func (s SavedAddon) HasTag(tag string) bool {
	want := addon.NormalizeTag(tag)
	for _, t := range s.Tags {
		if addon.NormalizeTag(t) == want {
			return true
		}
	}
	return false
}
