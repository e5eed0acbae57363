package bulk

import (
	"context"
	"fmt"

	"github.com/DrZacharySmith/stremio-account-manager/pkg/engine"
)

// Remove drops the given addon ids from every account sequentially.
// Protected matches are skipped per account and reported in the detail's
// Protected list, never as failures.
func (o *Orchestrator) Remove(ctx context.Context, addonIDs []string, accounts []Account) Result {
	var result Result
	for _, acc := range accounts {
		detail, err := o.removeOne(ctx, addonIDs, acc)
		if err != nil {
			o.log.Warnf("remove failed for account %s: %v", acc.ID, err)
			result.Failed++
			result.Errors = append(result.Errors, AccountError{AccountID: acc.ID, Err: err})
			o.notify(acc.ID, engine.MergeResult{}, err)
			continue
		}
		result.Success++
		result.Details = append(result.Details, detail)
		o.notify(acc.ID, detail.Result, nil)
	}
	return result
}

func (o *Orchestrator) removeOne(ctx context.Context, addonIDs []string, acc Account) (AccountDetail, error) {
	authKey, err := o.creds.Decrypt(acc.AuthKeySealed)
	if err != nil {
		return AccountDetail{}, fmt.Errorf("decrypt credential: %w", err)
	}

	collection, err := o.client.GetCollection(ctx, string(authKey))
	if err != nil {
		return AccountDetail{}, fmt.Errorf("fetch collection: %w", err)
	}

	newCollection, protectedIDs := engine.Remove(collection, addonIDs)

	if err := o.client.SetCollection(ctx, string(authKey), newCollection); err != nil {
		return AccountDetail{}, fmt.Errorf("write collection: %w", err)
	}

	o.syncLedger(acc.ID, newCollection)

	detail := AccountDetail{AccountID: acc.ID}
	for _, id := range protectedIDs {
		detail.Result.Protected = append(detail.Result.Protected, engine.AddonRef{AddonID: id})
	}
	return detail, nil
}

// RemoveByTag resolves tag to the manifest ids of its library members and
// removes those from the accounts. Fails fast when the tag resolves to
// nothing.
func (o *Orchestrator) RemoveByTag(ctx context.Context, tag string, accounts []Account) (Result, error) {
	templates := o.lib.ByTag(tag)
	if len(templates) == 0 {
		return Result{}, fmt.Errorf("no addons found for tag %q", tag)
	}
	ids := make([]string, 0, len(templates))
	for _, tpl := range templates {
		ids = append(ids, tpl.Manifest.ID)
	}
	return o.Remove(ctx, ids, accounts), nil
}
