package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/DrZacharySmith/stremio-account-manager/internal/utils"
	"github.com/DrZacharySmith/stremio-account-manager/pkg/bulk"
	"github.com/DrZacharySmith/stremio-account-manager/pkg/library"
	"github.com/DrZacharySmith/stremio-account-manager/pkg/storage"
	"github.com/DrZacharySmith/stremio-account-manager/pkg/stremio"
	"github.com/DrZacharySmith/stremio-account-manager/pkg/syncer"
	"github.com/DrZacharySmith/stremio-account-manager/pkg/vault"
)

// Vault metadata keys in the storage meta table.
const (
	metaVaultSalt     = "vault.salt"
	metaVaultVerifier = "vault.verifier"
)

// appEnv bundles everything a command needs: the locked database, the
// unlocked vault session, the API client, and the loaded library and
// account-state maps.
type appEnv struct {
	db      *storage.DB
	lock    *utils.DBLock
	session *vault.Session
	client  stremio.Client
	lib     *library.Library
	states  map[string]syncer.AccountState
}

// openEnv opens the database (taking the file lock), loads the library
// and ledgers, and builds the API client. When needVault is set the
// vault is initialized or unlocked with the master password.
func openEnv(cmd *cobra.Command, needVault bool) (*appEnv, error) {
	dbPath, _ := cmd.Flags().GetString("dbpath")
	if dbPath == "" {
		dbPath = viper.GetString("db.path")
	}
	absPath, err := utils.GetAbsDBPath(dbPath)
	if err != nil {
		return nil, err
	}

	lock, err := utils.NewDBLock(absPath)
	if err != nil {
		return nil, err
	}
	if err := lock.Lock(); err != nil {
		return nil, err
	}

	db, err := storage.Open(absPath)
	if err != nil {
		lock.Unlock()
		return nil, err
	}

	env := &appEnv{db: db, lock: lock}

	ctx := cmd.Context()
	libMap, err := db.LoadLibrary(ctx)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.lib = library.New(libMap)

	env.states, err = db.LoadAccountStates(ctx)
	if err != nil {
		env.Close()
		return nil, err
	}

	var opts []stremio.Option
	if apiURL := resolveAPIURL(cmd); apiURL != "" {
		opts = append(opts, stremio.WithAPIURL(apiURL))
	}
	if proxy, _ := cmd.Flags().GetString("proxy"); proxy != "" {
		opts = append(opts, stremio.WithProxy(proxy))
	}
	env.client = stremio.NewHTTPClient(opts...)

	if needVault {
		if err := env.unlockVault(ctx); err != nil {
			env.Close()
			return nil, err
		}
	}
	return env, nil
}

func resolveAPIURL(cmd *cobra.Command) string {
	if apiURL, _ := cmd.Flags().GetString("api-url"); apiURL != "" {
		return apiURL
	}
	return viper.GetString("api.url")
}

// unlockVault initializes the vault on first use, otherwise unlocks it
// with the master password.
func (e *appEnv) unlockVault(ctx context.Context) error {
	salt, err := e.db.GetMeta(ctx, metaVaultSalt)
	if err != nil {
		return err
	}

	if salt == nil {
		// First run: create the vault.
		password, err := promptPassword("Choose a master password: ")
		if err != nil {
			return err
		}
		confirm, err := promptPassword("Repeat master password: ")
		if err != nil {
			return err
		}
		if password != confirm {
			return errors.New("passwords do not match")
		}
		salt, err = vault.NewSalt()
		if err != nil {
			return err
		}
		session, verifier, err := vault.Initialize(password, salt)
		if err != nil {
			return err
		}
		if err := e.db.SetMeta(ctx, metaVaultSalt, salt); err != nil {
			return err
		}
		if err := e.db.SetMeta(ctx, metaVaultVerifier, verifier); err != nil {
			return err
		}
		e.session = session
		return nil
	}

	verifier, err := e.db.GetMeta(ctx, metaVaultVerifier)
	if err != nil {
		return err
	}
	password, err := promptPassword("Master password: ")
	if err != nil {
		return err
	}
	session, err := vault.Unlock(password, salt, verifier)
	if err != nil {
		return err
	}
	e.session = session
	return nil
}

// promptPassword reads the master password without echo, falling back to
// the STREMMAN_PASSWORD environment variable for scripting.
func promptPassword(prompt string) (string, error) {
	return promptSecret("STREMMAN_PASSWORD", prompt)
}

func promptSecret(envVar, prompt string) (string, error) {
	if pw := os.Getenv(envVar); pw != "" {
		return pw, nil
	}
	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(raw), nil
}

func (e *appEnv) Close() {
	if e.db != nil {
		e.db.Close()
	}
	if e.lock != nil {
		e.lock.Unlock()
	}
}

// orchestrator builds a bulk orchestrator over this environment with
// streaming per-account progress logging.
func (e *appEnv) orchestrator() *bulk.Orchestrator {
	return bulk.New(bulk.Config{
		Client:  e.client,
		Creds:   e.session,
		Library: e.lib,
		States:  e.states,
		Log:     utils.Log,
	})
}

// targetAccounts resolves the --accounts flag value: "all" (or empty)
// selects every registered account, otherwise a comma-separated id list.
func (e *appEnv) targetAccounts(ctx context.Context, selector string) ([]bulk.Account, error) {
	stored, err := e.db.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]storage.Account, len(stored))
	for _, a := range stored {
		byID[a.ID] = a
	}

	var selected []storage.Account
	if selector == "" || strings.EqualFold(selector, "all") {
		selected = stored
	} else {
		for _, id := range strings.Split(selector, ",") {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			a, ok := byID[id]
			if !ok {
				return nil, fmt.Errorf("account %s: %w", id, storage.ErrNotFound)
			}
			selected = append(selected, a)
		}
	}
	if len(selected) == 0 {
		return nil, errors.New("no accounts selected; add one with 'stremman account add'")
	}

	out := make([]bulk.Account, 0, len(selected))
	for _, a := range selected {
		out = append(out, bulk.Account{ID: a.ID, Name: a.Name, AuthKeySealed: a.AuthKeySealed})
	}
	return out, nil
}

// persist writes the library and ledgers back to the database. Called
// after every successful mutation.
func (e *appEnv) persist(ctx context.Context) error {
	if err := e.db.SaveLibrary(ctx, e.lib.Snapshot()); err != nil {
		return err
	}
	for _, state := range e.states {
		if err := e.db.SaveAccountState(ctx, state); err != nil {
			return err
		}
	}
	return nil
}

// flagAccountErrors prints per-account failures and marks accounts whose
// credential was rejected.
func (e *appEnv) flagAccountErrors(ctx context.Context, errs []bulk.AccountError) {
	for _, accErr := range errs {
		utils.Log.Errorf("account %s: %v", accErr.AccountID, accErr.Err)
		if errors.Is(accErr.Err, stremio.ErrUnauthorized) {
			if err := e.db.SetAccountStatus(ctx, accErr.AccountID, storage.StatusUnauthorized); err != nil {
				utils.Log.Warnf("could not mark account %s unauthorized: %v", accErr.AccountID, err)
			}
		}
	}
}

// accountFailure wraps a single account error for flagAccountErrors.
func accountFailure(accountID string, err error) []bulk.AccountError {
	return []bulk.AccountError{{AccountID: accountID, Err: err}}
}

// printBulkResult summarizes a bulk run for the user.
func printBulkResult(result bulk.Result) {
	fmt.Printf("%d succeeded, %d failed\n", result.Success, result.Failed)
	for _, detail := range result.Details {
		r := detail.Result
		if len(r.Added)+len(r.Updated)+len(r.Skipped)+len(r.Protected) == 0 {
			continue
		}
		fmt.Printf("  %s: %d added, %d updated, %d skipped, %d protected\n",
			detail.AccountID, len(r.Added), len(r.Updated), len(r.Skipped), len(r.Protected))
	}
	for _, accErr := range result.Errors {
		fmt.Printf("  %s: FAILED - %v\n", accErr.AccountID, accErr.Err)
	}
}
