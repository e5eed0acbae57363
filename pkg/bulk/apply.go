package bulk

import (
	"context"
	"fmt"

	"github.com/DrZacharySmith/stremio-account-manager/pkg/addon"
	"github.com/DrZacharySmith/stremio-account-manager/pkg/engine"
	"github.com/DrZacharySmith/stremio-account-manager/pkg/library"
	"github.com/DrZacharySmith/stremio-account-manager/pkg/syncer"
)

// Apply merges templates into every account sequentially under strategy.
// Each account is an independent unit of work: credential decryption,
// collection fetch, merge, write-back, then ledger sync. A failure at any
// step is recorded and the loop continues with the next account.
//
// Templates actually applied anywhere get a single lastUsed stamp after
// the loop, however many accounts they reached.
func (o *Orchestrator) Apply(ctx context.Context, templates []library.SavedAddon, accounts []Account, strategy string) (Result, error) {
	// Strategy problems are structural misuse; fail before touching
	// anything remote.
	if _, _, err := engine.Merge(nil, nil, strategy); err != nil {
		return Result{}, err
	}

	var result Result
	applied := make(map[string]bool) // template library ids applied somewhere

	for _, acc := range accounts {
		detail, appliedHere, err := o.applyOne(ctx, templates, acc, strategy)
		if err != nil {
			o.log.Warnf("apply failed for account %s: %v", acc.ID, err)
			result.Failed++
			result.Errors = append(result.Errors, AccountError{AccountID: acc.ID, Err: err})
			o.notify(acc.ID, engine.MergeResult{}, err)
			continue
		}
		result.Success++
		result.Details = append(result.Details, detail)
		for id := range appliedHere {
			applied[id] = true
		}
		o.notify(acc.ID, detail.Result, nil)
	}

	if len(applied) > 0 {
		ids := make([]string, 0, len(applied))
		for id := range applied {
			ids = append(ids, id)
		}
		o.lib.TouchLastUsed(ids, o.clock())
	}
	return result, nil
}

// applyOne runs the full unit of work for one account. appliedHere maps
// the library ids of templates that were added or updated.
func (o *Orchestrator) applyOne(ctx context.Context, templates []library.SavedAddon, acc Account, strategy string) (AccountDetail, map[string]bool, error) {
	authKey, err := o.creds.Decrypt(acc.AuthKeySealed)
	if err != nil {
		return AccountDetail{}, nil, fmt.Errorf("decrypt credential: %w", err)
	}

	collection, err := o.client.GetCollection(ctx, string(authKey))
	if err != nil {
		return AccountDetail{}, nil, fmt.Errorf("fetch collection: %w", err)
	}

	newCollection, mergeResult, err := engine.Merge(collection, templates, strategy)
	if err != nil {
		return AccountDetail{}, nil, err
	}

	if err := o.client.SetCollection(ctx, string(authKey), newCollection); err != nil {
		return AccountDetail{}, nil, fmt.Errorf("write collection: %w", err)
	}

	o.syncLedger(acc.ID, newCollection)

	appliedHere := make(map[string]bool)
	appliedManifestIDs := make(map[string]bool)
	for _, id := range mergeResult.AppliedIDs() {
		appliedManifestIDs[id] = true
	}
	for _, tpl := range templates {
		if appliedManifestIDs[tpl.Manifest.ID] {
			appliedHere[tpl.ID] = true
		}
	}

	return AccountDetail{AccountID: acc.ID, Result: mergeResult}, appliedHere, nil
}

// ApplyTag resolves tag to its library members and applies them. An empty
// resolution is an explicit error so a typoed tag can't silently no-op.
func (o *Orchestrator) ApplyTag(ctx context.Context, tag string, accounts []Account, strategy string) (Result, error) {
	templates := o.lib.ByTag(tag)
	if len(templates) == 0 {
		return Result{}, fmt.Errorf("no addons found for tag %q", tag)
	}
	return o.Apply(ctx, templates, accounts, strategy)
}

// syncLedger rebuilds the account's provenance ledger after a successful
// remote write.
func (o *Orchestrator) syncLedger(accountID string, collection []addon.Descriptor) {
	var previous *syncer.AccountState
	if prev, ok := o.states[accountID]; ok {
		previous = &prev
	}
	o.states[accountID] = syncer.Sync(accountID, collection, previous, o.lib.Snapshot(), o.clock())
}

func (o *Orchestrator) notify(accountID string, result engine.MergeResult, err error) {
	if o.onDone != nil {
		o.onDone(accountID, result, err)
	}
}
