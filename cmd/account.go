package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/DrZacharySmith/stremio-account-manager/internal/utils"
	"github.com/DrZacharySmith/stremio-account-manager/pkg/storage"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage registered accounts",
}

// accountAddCmd implements: stremman account add
// Logs in with the given email and password, seals the resulting authKey
// in the vault, and registers the account. The password is never stored.
var accountAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Log in and register an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		name, _ := cmd.Flags().GetString("name")
		if email == "" {
			return fmt.Errorf("please provide the account email (--email)")
		}
		if name == "" {
			name = email
		}

		env, err := openEnv(cmd, true)
		if err != nil {
			return err
		}
		defer env.Close()

		password, err := promptAccountPassword(email)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		authKey, err := env.client.Login(ctx, email, password)
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}

		sealed, err := env.session.Encrypt([]byte(authKey))
		if err != nil {
			return err
		}

		account := storage.Account{
			ID:            uuid.NewString(),
			Name:          name,
			AuthKeySealed: sealed,
			Status:        storage.StatusOK,
			AddedAt:       time.Now().UTC(),
		}
		if err := env.db.UpsertAccount(ctx, account); err != nil {
			return err
		}

		fmt.Printf("Added account %s (%s)\n", account.Name, account.ID)
		return nil
	},
}

var accountListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openEnv(cmd, false)
		if err != nil {
			return err
		}
		defer env.Close()

		ctx := cmd.Context()
		accounts, err := env.db.ListAccounts(ctx)
		if err != nil {
			return err
		}
		if len(accounts) == 0 {
			fmt.Println("No accounts registered. Add one with 'stremman account add'")
			return nil
		}

		for _, a := range accounts {
			installed := 0
			if state, ok := env.states[a.ID]; ok {
				installed = len(state.Installed)
			}
			fmt.Printf("%s  %s  status=%s  addons=%d\n", a.ID, a.Name, a.Status, installed)
		}
		return nil
	},
}

var accountRemoveCmd = &cobra.Command{
	Use:   "rm <account-id>",
	Short: "Remove a registered account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openEnv(cmd, false)
		if err != nil {
			return err
		}
		defer env.Close()

		ctx := cmd.Context()
		if err := env.db.DeleteAccount(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("Removed account %s\n", args[0])
		return nil
	},
}

// accountSyncCmd implements: stremman account sync
// Fetches the live collection for the selected accounts and refreshes
// the local installation ledgers, auto-linking entries whose install URL
// matches a saved addon.
var accountSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Refresh installation ledgers from the live collections",
	RunE: func(cmd *cobra.Command, args []string) error {
		selector, _ := cmd.Flags().GetString("accounts")

		env, err := openEnv(cmd, true)
		if err != nil {
			return err
		}
		defer env.Close()

		ctx := cmd.Context()
		accounts, err := env.targetAccounts(ctx, selector)
		if err != nil {
			return err
		}

		orch := env.orchestrator()
		result := orch.SyncAll(ctx, accounts)
		env.flagAccountErrors(ctx, result.Errors)

		if err := env.persist(ctx); err != nil {
			return err
		}

		fmt.Printf("%d synced, %d failed\n", result.Success, result.Failed)
		for id, state := range env.states {
			linked := 0
			for _, inst := range state.Installed {
				if inst.SavedAddonID != "" {
					linked++
				}
			}
			fmt.Printf("  %s: %d installed, %d linked to the library\n", id, len(state.Installed), linked)
		}
		return nil
	},
}

// promptAccountPassword asks for the remote account password. Separate
// from the master password prompt so scripted runs can pass it via
// STREMMAN_ACCOUNT_PASSWORD.
func promptAccountPassword(email string) (string, error) {
	password, err := promptSecret("STREMMAN_ACCOUNT_PASSWORD", fmt.Sprintf("Password for %s: ", email))
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(password) == "" {
		return "", fmt.Errorf("empty password")
	}
	utils.Log.Debugf("logging in as %s", email)
	return password, nil
}

func init() {
	rootCmd.AddCommand(accountCmd)
	accountCmd.AddCommand(accountAddCmd)
	accountCmd.AddCommand(accountListCmd)
	accountCmd.AddCommand(accountRemoveCmd)
	accountCmd.AddCommand(accountSyncCmd)

	accountAddCmd.Flags().StringP("email", "e", "", "Account email address")
	accountAddCmd.Flags().StringP("name", "n", "", "Display name (defaults to the email)")
	accountSyncCmd.Flags().String("accounts", "all", "Comma-separated account ids, or 'all'")
}
