// Package updates probes live addon manifests for new versions and
// endpoint reachability. Addons are checked strictly one at a time to
// bound load on remote hosts; the two probes for a single addon run
// concurrently since they are independent round-trips.
package updates

import (
	"context"
	"sync"

	"github.com/DrZacharySmith/stremio-account-manager/pkg/addon"
	"github.com/DrZacharySmith/stremio-account-manager/pkg/library"
	"github.com/DrZacharySmith/stremio-account-manager/pkg/stremio"
)

// Logger abstracts logging so callers can use logrus, stdlib log, or any
// other logger that satisfies this interface.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// Target is one addon to check. SavedAddonID carries library provenance
// so callers can persist health results; it is not used for checking.
type Target struct {
	AddonID          string
	Name             string
	TransportURL     string
	InstalledVersion string
	Protected        bool
	Official         bool
	SavedAddonID     string
}

// UpdateInfo is the outcome for one checkable addon. HasUpdate compares
// version strings for exact inequality; no semver parsing happens.
type UpdateInfo struct {
	AddonID          string `json:"addonId"`
	Name             string `json:"name"`
	TransportURL     string `json:"transportUrl"`
	InstalledVersion string `json:"installedVersion"`
	LatestVersion    string `json:"latestVersion"`
	HasUpdate        bool   `json:"hasUpdate"`
	IsOnline         bool   `json:"isOnline"`
	SavedAddonID     string `json:"savedAddonId,omitempty"`
}

// Poller checks addon versions and health against live endpoints.
type Poller struct {
	client stremio.Client
	log    Logger
}

func New(client stremio.Client, log Logger) *Poller {
	if log == nil {
		log = nopLogger{}
	}
	return &Poller{client: client, log: log}
}

// CheckUpdates probes every checkable target. Protected and official
// addons are excluded; an addon whose manifest fetch fails is logged and
// omitted from the result so callers can treat it as unknown rather than
// failed.
func (p *Poller) CheckUpdates(ctx context.Context, targets []Target) []UpdateInfo {
	var out []UpdateInfo
	for _, t := range targets {
		if t.Protected || t.Official {
			p.log.Debugf("skipping %s: protected or official", t.AddonID)
			continue
		}

		info, ok := p.checkOne(ctx, t)
		if !ok {
			continue
		}
		out = append(out, info)
	}
	return out
}

// checkOne runs the manifest fetch and the reachability probe for a
// single addon concurrently and combines their results.
func (p *Poller) checkOne(ctx context.Context, t Target) (UpdateInfo, bool) {
	var (
		wg       sync.WaitGroup
		manifest addon.Manifest
		fetchErr error
		online   bool
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		manifest, fetchErr = p.client.FetchManifest(ctx, t.TransportURL)
	}()
	go func() {
		defer wg.Done()
		online = p.client.CheckReachable(ctx, t.TransportURL)
	}()
	wg.Wait()

	if fetchErr != nil {
		p.log.Warnf("manifest fetch failed for %s: %v", t.AddonID, fetchErr)
		return UpdateInfo{}, false
	}

	return UpdateInfo{
		AddonID:          t.AddonID,
		Name:             t.Name,
		TransportURL:     t.TransportURL,
		InstalledVersion: t.InstalledVersion,
		LatestVersion:    manifest.Version,
		HasUpdate:        manifest.Version != t.InstalledVersion,
		IsOnline:         online,
		SavedAddonID:     t.SavedAddonID,
	}, true
}

// TargetsFromCollection builds check targets from a remote collection.
func TargetsFromCollection(collection []addon.Descriptor) []Target {
	out := make([]Target, 0, len(collection))
	for _, d := range collection {
		out = append(out, Target{
			AddonID:          d.Manifest.ID,
			Name:             d.Manifest.Name,
			TransportURL:     d.TransportURL,
			InstalledVersion: d.Manifest.Version,
			Protected:        d.IsProtected(),
			Official:         d.IsOfficial(),
		})
	}
	return out
}

// TargetsFromLibrary builds check targets from saved addons so their
// health can be refreshed.
func TargetsFromLibrary(saved []library.SavedAddon) []Target {
	out := make([]Target, 0, len(saved))
	for _, s := range saved {
		out = append(out, Target{
			AddonID:          s.Manifest.ID,
			Name:             s.Name,
			TransportURL:     s.InstallURL,
			InstalledVersion: s.Manifest.Version,
			SavedAddonID:     s.ID,
		})
	}
	return out
}
