// Package bulk drives the merge and removal engines across many remote
// accounts. Accounts are always processed one at a time so the remote
// service and any proxy in the path never see a burst; one account's
// failure is recorded and the batch moves on.
package bulk

import (
	"time"

	"github.com/DrZacharySmith/stremio-account-manager/pkg/engine"
	"github.com/DrZacharySmith/stremio-account-manager/pkg/library"
	"github.com/DrZacharySmith/stremio-account-manager/pkg/stremio"
	"github.com/DrZacharySmith/stremio-account-manager/pkg/syncer"
)

// Logger abstracts logging so callers can use logrus, stdlib log, or any
// other logger that satisfies this interface.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// nopLogger silently discards all messages.
type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// CredentialOpener unseals a stored account credential. Satisfied by
// *vault.Session; fails when the vault is locked.
type CredentialOpener interface {
	Decrypt(ciphertext []byte) ([]byte, error)
}

// Account is one bulk target: a registered account plus its sealed
// authKey.
type Account struct {
	ID            string
	Name          string
	AuthKeySealed []byte
}

// AccountError pairs a failed account with what went wrong.
type AccountError struct {
	AccountID string `json:"accountId"`
	Err       error  `json:"-"`
}

func (e AccountError) Error() string {
	return e.AccountID + ": " + e.Err.Error()
}

// AccountDetail is the per-account outcome of a successful unit of work.
type AccountDetail struct {
	AccountID string             `json:"accountId"`
	Result    engine.MergeResult `json:"result"`
}

// Result aggregates a bulk operation. Success+Failed always equals the
// number of target accounts.
type Result struct {
	Success int             `json:"success"`
	Failed  int             `json:"failed"`
	Errors  []AccountError  `json:"errors,omitempty"`
	Details []AccountDetail `json:"details,omitempty"`
}

// Config holds the collaborators for an Orchestrator.
type Config struct {
	Client  stremio.Client
	Creds   CredentialOpener
	Library *library.Library
	States  map[string]syncer.AccountState
	Log     Logger           // optional; nil = no logging
	Clock   func() time.Time // optional; defaults to time.Now

	// OnAccountDone streams per-account outcomes as they happen, letting
	// the CLI print progress mid-batch. Nil = no callback. err is nil on
	// success.
	OnAccountDone func(accountID string, result engine.MergeResult, err error)
}

// Orchestrator owns the in-memory library and account-state maps during a
// run. It mutates them only after a remote write succeeds; persisting the
// result is the caller's job.
type Orchestrator struct {
	client  stremio.Client
	creds   CredentialOpener
	lib     *library.Library
	states  map[string]syncer.AccountState
	log     Logger
	clock   func() time.Time
	onDone  func(string, engine.MergeResult, error)
}

// New builds an Orchestrator from cfg.
func New(cfg Config) *Orchestrator {
	log := cfg.Log
	if log == nil {
		log = nopLogger{}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	states := cfg.States
	if states == nil {
		states = make(map[string]syncer.AccountState)
	}
	lib := cfg.Library
	if lib == nil {
		lib = library.New(nil)
	}
	return &Orchestrator{
		client: cfg.Client,
		creds:  cfg.Creds,
		lib:    lib,
		states: states,
		log:    log,
		clock:  clock,
		onDone: cfg.OnAccountDone,
	}
}

// States returns the provenance ledgers as updated by the last run.
func (o *Orchestrator) States() map[string]syncer.AccountState {
	return o.states
}

// Library returns the library the orchestrator was built over, including
// any lastUsed stamps from the last run.
func (o *Orchestrator) Library() *library.Library {
	return o.lib
}
