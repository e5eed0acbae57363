package bulk

import (
	"context"
	"fmt"

	"github.com/DrZacharySmith/stremio-account-manager/pkg/addon"
)

// ReinstallReport describes the outcome of a remove-and-reinstall cycle.
type ReinstallReport struct {
	AddonID         string `json:"addonId"`
	NoOp            bool   `json:"noOp"`
	NoOpReason      string `json:"noOpReason,omitempty"`
	PreviousVersion string `json:"previousVersion,omitempty"`
	NewVersion      string `json:"newVersion,omitempty"`
	Reordered       bool   `json:"reordered"`
}

// Reinstall forces the remote service to refetch one addon's manifest by
// removing it and re-adding it from its transport URL, restoring its
// original collection position afterwards.
//
// The cycle is not atomic: a failure after the removal write leaves the
// account without the addon. Every error is annotated so callers can tell
// at which step the account was left.
func (o *Orchestrator) Reinstall(ctx context.Context, acc Account, addonID string) (ReinstallReport, error) {
	report := ReinstallReport{AddonID: addonID}

	authKey, err := o.creds.Decrypt(acc.AuthKeySealed)
	if err != nil {
		return report, fmt.Errorf("decrypt credential: %w", err)
	}
	key := string(authKey)

	collection, err := o.client.GetCollection(ctx, key)
	if err != nil {
		return report, fmt.Errorf("fetch collection: %w", err)
	}

	idx := addon.IndexByID(collection, addonID)
	if idx < 0 {
		report.NoOp = true
		report.NoOpReason = "addon not installed"
		return report, nil
	}
	target := collection[idx]
	if target.IsProtected() {
		report.NoOp = true
		report.NoOpReason = "addon is protected"
		return report, nil
	}
	report.PreviousVersion = target.Manifest.Version

	// Step 1: write the collection without the target. From here on a
	// failure leaves the account without the addon.
	without := append(addon.CloneCollection(collection[:idx]), collection[idx+1:]...)
	if err := o.client.SetCollection(ctx, key, without); err != nil {
		return report, fmt.Errorf("remove before reinstall: %w", err)
	}

	// Step 2: re-add from the original transport URL with a freshly
	// fetched manifest.
	freshManifest, err := o.client.FetchManifest(ctx, target.TransportURL)
	if err != nil {
		return report, fmt.Errorf("addon removed but manifest refetch failed, re-add %s manually: %w", target.TransportURL, err)
	}
	readded := target
	readded.Manifest = freshManifest
	withReadded := append(addon.CloneCollection(without), readded)
	if err := o.client.SetCollection(ctx, key, withReadded); err != nil {
		return report, fmt.Errorf("addon removed but re-add failed, re-add %s manually: %w", target.TransportURL, err)
	}

	// Step 3: restore the original position unless it already landed
	// there.
	if idx != len(withReadded)-1 {
		reordered := make([]addon.Descriptor, 0, len(withReadded))
		reordered = append(reordered, withReadded[:idx]...)
		reordered = append(reordered, readded)
		reordered = append(reordered, withReadded[idx:len(withReadded)-1]...)
		if err := o.client.SetCollection(ctx, key, reordered); err != nil {
			return report, fmt.Errorf("reinstalled but reorder failed: %w", err)
		}
		report.Reordered = true
	}

	// Step 4: re-read as ground truth.
	final, err := o.client.GetCollection(ctx, key)
	if err != nil {
		return report, fmt.Errorf("reinstalled but final read failed: %w", err)
	}
	if finalIdx := addon.IndexByID(final, addonID); finalIdx >= 0 {
		report.NewVersion = final[finalIdx].Manifest.Version
	}
	o.syncLedger(acc.ID, final)

	return report, nil
}
