// Package stremio implements the remote service API used to read and write
// per-account addon collections, plus direct probes against addon
// transport URLs.
package stremio

import (
	"context"

	"github.com/DrZacharySmith/stremio-account-manager/pkg/addon"
)

// Client is the remote collaborator surface consumed by the orchestration
// layers. Implementations must be safe for sequential reuse; callers never
// invoke them in parallel across accounts.
type Client interface {
	// Login exchanges credentials for an authKey.
	Login(ctx context.Context, email, password string) (string, error)

	// GetCollection returns the account's ordered addon collection.
	// Fails with ErrUnauthorized on a bad or expired authKey.
	GetCollection(ctx context.Context, authKey string) ([]addon.Descriptor, error)

	// SetCollection replaces the account's addon collection. Order is
	// preserved by the remote service and is user-visible priority.
	SetCollection(ctx context.Context, authKey string, collection []addon.Descriptor) error

	// FetchManifest fetches the live manifest behind a transport URL.
	// 404 fails immediately with ErrNotFound; network and parse failures
	// are retried a bounded number of times with linear backoff.
	FetchManifest(ctx context.Context, url string) (addon.Manifest, error)

	// CheckReachable probes a transport URL. It never returns an error;
	// anything that answers HTTP counts as reachable.
	CheckReachable(ctx context.Context, url string) bool
}
