package syncer

import (
	"reflect"
	"testing"
	"time"

	"github.com/DrZacharySmith/stremio-account-manager/pkg/addon"
	"github.com/DrZacharySmith/stremio-account-manager/pkg/library"
)

var clock = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func liveAddon(id, url string) addon.Descriptor {
	return addon.Descriptor{
		TransportURL: url,
		Manifest:     addon.Manifest{ID: id, Name: id, Version: "1.0.0"},
	}
}

func TestSyncAutoLinksByInstallURL(t *testing.T) {
	lib := map[string]library.SavedAddon{
		"saved-1": {
			ID:         "saved-1",
			Name:       "cinemeta",
			InstallURL: "https://addons.example.com/cinemeta/manifest.json",
			Tags:       []string{"meta", "core"},
		},
	}
	live := []addon.Descriptor{liveAddon("com.example.cinemeta", "https://addons.example.com/cinemeta/manifest.json")}

	state := Sync("acc-1", live, nil, lib, clock)

	if len(state.Installed) != 1 {
		t.Fatalf("expected 1 installed entry, got %d", len(state.Installed))
	}
	entry := state.Installed[0]
	if entry.SavedAddonID != "saved-1" {
		t.Fatalf("expected auto-link to saved-1, got %q", entry.SavedAddonID)
	}
	if entry.InstalledVia != ViaSavedAddon {
		t.Fatalf("expected installedVia=%s, got %s", ViaSavedAddon, entry.InstalledVia)
	}
	if !reflect.DeepEqual(entry.AppliedTags, []string{"meta", "core"}) {
		t.Fatalf("expected tags carried from library, got %v", entry.AppliedTags)
	}
}

func TestSyncUnlinkedIsManual(t *testing.T) {
	live := []addon.Descriptor{liveAddon("com.example.x", "https://x.example.com/manifest.json")}
	state := Sync("acc-1", live, nil, nil, clock)
	entry := state.Installed[0]
	if entry.SavedAddonID != "" || entry.InstalledVia != ViaManual {
		t.Fatalf("expected manual provenance, got %+v", entry)
	}
}

func TestSyncCarriesProvenanceForward(t *testing.T) {
	installedAt := clock.Add(-24 * time.Hour)
	previous := &AccountState{
		AccountID: "acc-1",
		Installed: []InstalledAddon{{
			SavedAddonID: "saved-1",
			AddonID:      "com.example.x",
			InstallURL:   "https://old.example.com/manifest.json",
			InstalledAt:  installedAt,
			InstalledVia: ViaSavedAddon,
			AppliedTags:  []string{"core"},
		}},
		LastSync: installedAt,
	}
	// Reinstalled with the same id under a new URL.
	live := []addon.Descriptor{liveAddon("com.example.x", "https://new.example.com/manifest.json")}

	state := Sync("acc-1", live, previous, nil, clock)
	entry := state.Installed[0]
	if entry.SavedAddonID != "saved-1" || !entry.InstalledAt.Equal(installedAt) {
		t.Fatalf("provenance not carried forward: %+v", entry)
	}
	if entry.InstallURL != "https://new.example.com/manifest.json" {
		t.Fatalf("install URL not refreshed: %s", entry.InstallURL)
	}
}

func TestSyncDropsStaleEntries(t *testing.T) {
	previous := &AccountState{
		AccountID: "acc-1",
		Installed: []InstalledAddon{
			{AddonID: "gone", InstallURL: "https://gone.example.com", InstalledVia: ViaManual},
			{AddonID: "kept", InstallURL: "https://kept.example.com", InstalledVia: ViaManual},
		},
	}
	live := []addon.Descriptor{liveAddon("kept", "https://kept.example.com")}

	state := Sync("acc-1", live, previous, nil, clock)
	if len(state.Installed) != 1 || state.Installed[0].AddonID != "kept" {
		t.Fatalf("expected only kept entry, got %+v", state.Installed)
	}
}

func TestSyncIdempotent(t *testing.T) {
	lib := map[string]library.SavedAddon{
		"saved-1": {ID: "saved-1", InstallURL: "https://a.example.com/manifest.json"},
	}
	live := []addon.Descriptor{
		liveAddon("a", "https://a.example.com/manifest.json"),
		liveAddon("b", "https://b.example.com/manifest.json"),
	}

	first := Sync("acc-1", live, nil, lib, clock)
	second := Sync("acc-1", live, &first, lib, clock)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("sync must be idempotent:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}
