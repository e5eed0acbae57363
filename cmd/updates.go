package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/DrZacharySmith/stremio-account-manager/internal/utils"
	"github.com/DrZacharySmith/stremio-account-manager/pkg/updates"
)

// updatesCmd implements: stremman updates
// Checks addon versions and health, either for an account's live
// collection or for the whole library. Library results are persisted
// so 'lib list' can flag offline addons.
var updatesCmd = &cobra.Command{
	Use:   "updates",
	Short: "Check for addon updates and offline addons",
	RunE: func(cmd *cobra.Command, args []string) error {
		accountID, _ := cmd.Flags().GetString("account")
		checkLibrary, _ := cmd.Flags().GetBool("library")

		if (accountID == "") == !checkLibrary {
			return fmt.Errorf("provide exactly one of --account or --library")
		}

		env, err := openEnv(cmd, accountID != "")
		if err != nil {
			return err
		}
		defer env.Close()

		ctx := cmd.Context()
		poller := updates.New(env.client, utils.Log)

		var targets []updates.Target
		if checkLibrary {
			targets = updates.TargetsFromLibrary(env.lib.All())
		} else {
			accounts, err := env.targetAccounts(ctx, accountID)
			if err != nil {
				return err
			}
			authKey, err := env.session.Decrypt(accounts[0].AuthKeySealed)
			if err != nil {
				return err
			}
			collection, err := env.client.GetCollection(ctx, string(authKey))
			if err != nil {
				env.flagAccountErrors(ctx, accountFailure(accounts[0].ID, err))
				return err
			}
			targets = updates.TargetsFromCollection(collection)
		}

		if len(targets) == 0 {
			fmt.Println("Nothing to check")
			return nil
		}

		infos := poller.CheckUpdates(ctx, targets)

		now := time.Now().UTC()
		updatesFound := 0
		for _, info := range infos {
			if info.SavedAddonID != "" {
				env.lib.SetHealth(info.SavedAddonID, info.IsOnline, now)
			}
			status := "up to date"
			if info.HasUpdate {
				status = fmt.Sprintf("update %s -> %s", info.InstalledVersion, info.LatestVersion)
				updatesFound++
			}
			if !info.IsOnline {
				status += " (OFFLINE)"
			}
			fmt.Printf("%s  %s  %s\n", info.AddonID, info.Name, status)
		}

		if checkLibrary {
			if err := env.persist(ctx); err != nil {
				return err
			}
		}
		fmt.Printf("%d of %d addons have updates\n", updatesFound, len(infos))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(updatesCmd)

	updatesCmd.Flags().StringP("account", "a", "", "Check an account's live collection")
	updatesCmd.Flags().Bool("library", false, "Check every saved addon in the library")
}
