// Package syncer rebuilds per-account provenance ledgers from live remote
// collections.
package syncer

import (
	"time"

	"github.com/DrZacharySmith/stremio-account-manager/pkg/addon"
	"github.com/DrZacharySmith/stremio-account-manager/pkg/library"
)

// Install origins.
const (
	ViaSavedAddon = "saved-addon"
	ViaManual     = "manual"
)

// InstalledAddon links one remotely installed addon back to the library
// entry it came from, when known. SavedAddonID is empty for manual
// installs; the link is advisory and never enforced.
type InstalledAddon struct {
	SavedAddonID string    `json:"savedAddonId,omitempty"`
	AddonID      string    `json:"addonId"`
	InstallURL   string    `json:"installUrl"`
	InstalledAt  time.Time `json:"installedAt"`
	InstalledVia string    `json:"installedVia"`
	AppliedTags  []string  `json:"appliedTags,omitempty"`
}

// AccountState is the per-account provenance ledger, rebuilt on every sync
// by diffing the live collection against the previous ledger.
type AccountState struct {
	AccountID string           `json:"accountId"`
	Installed []InstalledAddon `json:"installedAddons"`
	LastSync  time.Time        `json:"lastSync"`
}

// Sync reconciles a live collection snapshot with the previous ledger.
// Entries whose addon id is still live carry their provenance forward with
// the install URL refreshed; new live addons are auto-linked to a library
// entry by exact install URL match, else recorded as manual. Entries no
// longer live are dropped without tombstones. Given the same inputs and
// clock the output is identical, so running it twice is a no-op.
func Sync(accountID string, live []addon.Descriptor, previous *AccountState, lib map[string]library.SavedAddon, now time.Time) AccountState {
	prevByID := make(map[string]InstalledAddon)
	if previous != nil {
		for _, entry := range previous.Installed {
			prevByID[entry.AddonID] = entry
		}
	}

	installed := make([]InstalledAddon, 0, len(live))
	for _, d := range live {
		if prev, ok := prevByID[d.Manifest.ID]; ok {
			// Reinstall with the same id keeps provenance, URL refreshed.
			prev.InstallURL = d.TransportURL
			installed = append(installed, prev)
			continue
		}
		installed = append(installed, newEntry(d, lib, now))
	}

	return AccountState{
		AccountID: accountID,
		Installed: installed,
		LastSync:  now,
	}
}

func newEntry(d addon.Descriptor, lib map[string]library.SavedAddon, now time.Time) InstalledAddon {
	entry := InstalledAddon{
		AddonID:      d.Manifest.ID,
		InstallURL:   d.TransportURL,
		InstalledAt:  now,
		InstalledVia: ViaManual,
	}
	for _, saved := range lib {
		if saved.InstallURL == d.TransportURL {
			entry.SavedAddonID = saved.ID
			entry.InstalledVia = ViaSavedAddon
			entry.AppliedTags = append([]string(nil), saved.Tags...)
			break
		}
	}
	return entry
}
