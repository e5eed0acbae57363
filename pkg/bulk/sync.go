package bulk

import (
	"context"
	"fmt"

	"github.com/DrZacharySmith/stremio-account-manager/pkg/syncer"
)

// SyncAccount refreshes one account's provenance ledger from its live
// collection. Single-unit operation: failures propagate to the caller.
func (o *Orchestrator) SyncAccount(ctx context.Context, acc Account) (syncer.AccountState, error) {
	authKey, err := o.creds.Decrypt(acc.AuthKeySealed)
	if err != nil {
		return syncer.AccountState{}, fmt.Errorf("decrypt credential: %w", err)
	}
	collection, err := o.client.GetCollection(ctx, string(authKey))
	if err != nil {
		return syncer.AccountState{}, fmt.Errorf("fetch collection: %w", err)
	}
	o.syncLedger(acc.ID, collection)
	return o.states[acc.ID], nil
}

// SyncAll refreshes every account's ledger sequentially with per-account
// failure isolation.
func (o *Orchestrator) SyncAll(ctx context.Context, accounts []Account) Result {
	var result Result
	for _, acc := range accounts {
		if _, err := o.SyncAccount(ctx, acc); err != nil {
			o.log.Warnf("sync failed for account %s: %v", acc.ID, err)
			result.Failed++
			result.Errors = append(result.Errors, AccountError{AccountID: acc.ID, Err: err})
			continue
		}
		result.Success++
		result.Details = append(result.Details, AccountDetail{AccountID: acc.ID})
	}
	return result
}
