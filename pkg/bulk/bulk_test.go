package bulk

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/DrZacharySmith/stremio-account-manager/pkg/addon"
	"github.com/DrZacharySmith/stremio-account-manager/pkg/engine"
	"github.com/DrZacharySmith/stremio-account-manager/pkg/library"
	"github.com/DrZacharySmith/stremio-account-manager/pkg/syncer"
	"github.com/DrZacharySmith/stremio-account-manager/pkg/vault"
)

var clock = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeClient keeps per-authKey collections in memory.
type fakeClient struct {
	collections map[string][]addon.Descriptor
	manifests   map[string]addon.Manifest
	failGet     map[string]error
	failSet     map[string]error
	reachable   map[string]bool
	setWrites   int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		collections: make(map[string][]addon.Descriptor),
		manifests:   make(map[string]addon.Manifest),
		failGet:     make(map[string]error),
		failSet:     make(map[string]error),
		reachable:   make(map[string]bool),
	}
}

func (f *fakeClient) Login(ctx context.Context, email, password string) (string, error) {
	return "key-" + email, nil
}

func (f *fakeClient) GetCollection(ctx context.Context, authKey string) ([]addon.Descriptor, error) {
	if err := f.failGet[authKey]; err != nil {
		return nil, err
	}
	return addon.CloneCollection(f.collections[authKey]), nil
}

func (f *fakeClient) SetCollection(ctx context.Context, authKey string, collection []addon.Descriptor) error {
	if err := f.failSet[authKey]; err != nil {
		return err
	}
	f.collections[authKey] = addon.CloneCollection(collection)
	f.setWrites++
	return nil
}

func (f *fakeClient) FetchManifest(ctx context.Context, url string) (addon.Manifest, error) {
	m, ok := f.manifests[url]
	if !ok {
		return addon.Manifest{}, fmt.Errorf("no manifest at %s", url)
	}
	return m, nil
}

func (f *fakeClient) CheckReachable(ctx context.Context, url string) bool {
	return f.reachable[url]
}

// plainCreds passes ciphertext through untouched.
type plainCreds struct{}

func (plainCreds) Decrypt(ciphertext []byte) ([]byte, error) { return ciphertext, nil }

// lockedCreds simulates a locked vault.
type lockedCreds struct{}

func (lockedCreds) Decrypt([]byte) ([]byte, error) { return nil, vault.ErrLocked }

func account(id string) Account {
	return Account{ID: id, Name: id, AuthKeySealed: []byte("key-" + id)}
}

func desc(id, version string, protected bool) addon.Descriptor {
	d := addon.Descriptor{
		TransportURL: "https://addons.example.com/" + id + "/manifest.json",
		Manifest:     addon.Manifest{ID: id, Name: id, Version: version},
	}
	if protected {
		d.Flags = &addon.Flags{Protected: true}
	}
	return d
}

func newOrchestrator(client *fakeClient, lib *library.Library) *Orchestrator {
	return New(Config{
		Client:  client,
		Creds:   plainCreds{},
		Library: lib,
		Clock:   func() time.Time { return clock },
	})
}

func seededTemplate(lib *library.Library, id, version string, tags ...string) library.SavedAddon {
	return lib.Create(id, "https://addons.example.com/"+id+"/manifest.json",
		addon.Manifest{ID: id, Name: id, Version: version}, tags, library.SourceManual, "", clock)
}

func TestApplyIsolatesFailures(t *testing.T) {
	client := newFakeClient()
	client.collections["key-a1"] = []addon.Descriptor{desc("x", "1", false)}
	client.failGet["key-a2"] = errors.New("connection reset")
	client.collections["key-a3"] = nil

	lib := library.New(nil)
	tpl := seededTemplate(lib, "new", "1.0.0")
	o := newOrchestrator(client, lib)

	accounts := []Account{account("a1"), account("a2"), account("a3")}
	result, err := o.Apply(context.Background(), []library.SavedAddon{tpl}, accounts, engine.StrategyReplaceMatching)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if result.Success+result.Failed != len(accounts) {
		t.Fatalf("success+failed must equal account count: %+v", result)
	}
	if result.Success != 2 || result.Failed != 1 {
		t.Fatalf("expected 2 success / 1 failed, got %+v", result)
	}
	if len(result.Errors) != 1 || result.Errors[0].AccountID != "a2" {
		t.Fatalf("expected error for a2, got %+v", result.Errors)
	}
	// a3 came after the failure and must still have been processed.
	if got := client.collections["key-a3"]; len(got) != 1 || got[0].Manifest.ID != "new" {
		t.Fatalf("a3 was not processed after a2 failed: %+v", got)
	}
}

func TestApplyStampsLastUsedOnce(t *testing.T) {
	client := newFakeClient()
	client.collections["key-a1"] = nil
	client.collections["key-a2"] = nil

	lib := library.New(nil)
	tpl := seededTemplate(lib, "new", "1.0.0")
	o := newOrchestrator(client, lib)

	if _, err := o.Apply(context.Background(), []library.SavedAddon{tpl}, []Account{account("a1"), account("a2")}, engine.StrategyAddOnly); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	got, _ := lib.Get(tpl.ID)
	if got.LastUsed == nil || !got.LastUsed.Equal(clock) {
		t.Fatalf("lastUsed not stamped: %+v", got)
	}
}

func TestApplySkippedTemplatesNotStamped(t *testing.T) {
	client := newFakeClient()
	client.collections["key-a1"] = []addon.Descriptor{desc("existing", "1", false)}

	lib := library.New(nil)
	tpl := seededTemplate(lib, "existing", "2.0.0")
	o := newOrchestrator(client, lib)

	// add-only against an account that already has it: skipped, so no
	// lastUsed stamp.
	if _, err := o.Apply(context.Background(), []library.SavedAddon{tpl}, []Account{account("a1")}, engine.StrategyAddOnly); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	got, _ := lib.Get(tpl.ID)
	if got.LastUsed != nil {
		t.Fatalf("skipped template must not be stamped: %+v", got)
	}
}

func TestApplyLockedVault(t *testing.T) {
	client := newFakeClient()
	lib := library.New(nil)
	tpl := seededTemplate(lib, "x", "1")
	o := New(Config{Client: client, Creds: lockedCreds{}, Library: lib, Clock: func() time.Time { return clock }})

	result, err := o.Apply(context.Background(), []library.SavedAddon{tpl}, []Account{account("a1")}, engine.StrategyAddOnly)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if result.Failed != 1 || !errors.Is(result.Errors[0].Err, vault.ErrLocked) {
		t.Fatalf("expected locked-vault failure, got %+v", result)
	}
}

func TestApplyUnknownStrategyFailsFast(t *testing.T) {
	client := newFakeClient()
	o := newOrchestrator(client, library.New(nil))
	if _, err := o.Apply(context.Background(), nil, []Account{account("a1")}, "bogus"); err == nil {
		t.Fatal("expected strategy error before any account is touched")
	}
	if client.setWrites != 0 {
		t.Fatal("nothing may be written for an invalid strategy")
	}
}

func TestApplyUpdatesLedger(t *testing.T) {
	client := newFakeClient()
	client.collections["key-a1"] = nil

	lib := library.New(nil)
	tpl := seededTemplate(lib, "new", "1.0.0", "core")
	o := newOrchestrator(client, lib)

	if _, err := o.Apply(context.Background(), []library.SavedAddon{tpl}, []Account{account("a1")}, engine.StrategyAddOnly); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	state, ok := o.States()["a1"]
	if !ok || len(state.Installed) != 1 {
		t.Fatalf("ledger not updated: %+v", o.States())
	}
	entry := state.Installed[0]
	if entry.SavedAddonID != tpl.ID || entry.InstalledVia != syncer.ViaSavedAddon {
		t.Fatalf("expected auto-linked provenance, got %+v", entry)
	}
}

func TestApplyTagNoMatches(t *testing.T) {
	o := newOrchestrator(newFakeClient(), library.New(nil))
	if _, err := o.ApplyTag(context.Background(), "ghost", []Account{account("a1")}, engine.StrategyAddOnly); err == nil {
		t.Fatal("expected 'no addons found for tag' error")
	}
}

func TestRemoveReportsProtected(t *testing.T) {
	client := newFakeClient()
	client.collections["key-a1"] = []addon.Descriptor{desc("x", "1", false), desc("y", "1", true)}

	o := newOrchestrator(client, library.New(nil))
	result := o.Remove(context.Background(), []string{"x", "y"}, []Account{account("a1")})

	if result.Success != 1 {
		t.Fatalf("expected success, got %+v", result)
	}
	ids := func(refs []engine.AddonRef) []string {
		var out []string
		for _, r := range refs {
			out = append(out, r.AddonID)
		}
		return out
	}
	if got := ids(result.Details[0].Result.Protected); !reflect.DeepEqual(got, []string{"y"}) {
		t.Fatalf("expected protected=[y], got %v", got)
	}
	if got := client.collections["key-a1"]; len(got) != 1 || got[0].Manifest.ID != "y" {
		t.Fatalf("expected only protected y to remain, got %+v", got)
	}
}

func TestRemoveByTag(t *testing.T) {
	client := newFakeClient()
	client.collections["key-a1"] = []addon.Descriptor{desc("tagged", "1", false), desc("other", "1", false)}

	lib := library.New(nil)
	seededTemplate(lib, "tagged", "1.0.0", "Core")
	o := newOrchestrator(client, lib)

	result, err := o.RemoveByTag(context.Background(), " core ", []Account{account("a1")})
	if err != nil {
		t.Fatalf("RemoveByTag: %v", err)
	}
	if result.Success != 1 {
		t.Fatalf("expected success, got %+v", result)
	}
	if got := client.collections["key-a1"]; len(got) != 1 || got[0].Manifest.ID != "other" {
		t.Fatalf("expected only 'other' to remain, got %+v", got)
	}
}

func TestSyncAllIsolatesFailures(t *testing.T) {
	client := newFakeClient()
	client.collections["key-a1"] = []addon.Descriptor{desc("x", "1", false)}
	client.failGet["key-a2"] = errors.New("timeout")

	o := newOrchestrator(client, library.New(nil))
	result := o.SyncAll(context.Background(), []Account{account("a1"), account("a2")})

	if result.Success != 1 || result.Failed != 1 {
		t.Fatalf("expected 1/1, got %+v", result)
	}
	if _, ok := o.States()["a1"]; !ok {
		t.Fatal("a1 ledger missing after sync")
	}
}

func TestReinstallRestoresPosition(t *testing.T) {
	client := newFakeClient()
	target := desc("mid", "1.0.0", false)
	client.collections["key-a1"] = []addon.Descriptor{desc("first", "1", false), target, desc("last", "1", false)}
	client.manifests[target.TransportURL] = addon.Manifest{ID: "mid", Name: "mid", Version: "2.0.0"}

	o := newOrchestrator(client, library.New(nil))
	report, err := o.Reinstall(context.Background(), account("a1"), "mid")
	if err != nil {
		t.Fatalf("Reinstall: %v", err)
	}
	if report.NoOp {
		t.Fatalf("unexpected no-op: %+v", report)
	}
	if report.PreviousVersion != "1.0.0" || report.NewVersion != "2.0.0" {
		t.Fatalf("version report wrong: %+v", report)
	}
	if !report.Reordered {
		t.Fatal("expected reorder for a non-tail addon")
	}

	final := client.collections["key-a1"]
	var got []string
	for _, d := range final {
		got = append(got, d.Manifest.ID)
	}
	if !reflect.DeepEqual(got, []string{"first", "mid", "last"}) {
		t.Fatalf("order not restored: %v", got)
	}
	if final[1].Manifest.Version != "2.0.0" {
		t.Fatalf("manifest not refreshed: %+v", final[1])
	}
}

func TestReinstallTailNeedsNoReorder(t *testing.T) {
	client := newFakeClient()
	target := desc("tail", "1.0.0", false)
	client.collections["key-a1"] = []addon.Descriptor{desc("first", "1", false), target}
	client.manifests[target.TransportURL] = addon.Manifest{ID: "tail", Name: "tail", Version: "1.0.1"}

	o := newOrchestrator(client, library.New(nil))
	report, err := o.Reinstall(context.Background(), account("a1"), "tail")
	if err != nil {
		t.Fatalf("Reinstall: %v", err)
	}
	if report.Reordered {
		t.Fatal("tail addon must not trigger a reorder write")
	}
}

func TestReinstallNoOps(t *testing.T) {
	client := newFakeClient()
	client.collections["key-a1"] = []addon.Descriptor{desc("prot", "1", true)}

	o := newOrchestrator(client, library.New(nil))

	report, err := o.Reinstall(context.Background(), account("a1"), "absent")
	if err != nil || !report.NoOp {
		t.Fatalf("expected no-op for absent addon, got %+v %v", report, err)
	}
	report, err = o.Reinstall(context.Background(), account("a1"), "prot")
	if err != nil || !report.NoOp {
		t.Fatalf("expected no-op for protected addon, got %+v %v", report, err)
	}
	if client.setWrites != 0 {
		t.Fatal("no-op reinstall must not write")
	}
}
