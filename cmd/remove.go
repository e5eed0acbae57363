package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/DrZacharySmith/stremio-account-manager/pkg/bulk"
)

// removeCmd implements: stremman remove
// Uninstalls addons from the selected accounts by manifest id or by
// library tag. Protected addons are reported, never touched.
var removeCmd = &cobra.Command{
	Use:   "remove",
	Short: "Uninstall addons from accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, _ := cmd.Flags().GetString("ids")
		tag, _ := cmd.Flags().GetString("tag")
		selector, _ := cmd.Flags().GetString("accounts")

		if (ids == "") == (tag == "") {
			return fmt.Errorf("provide exactly one of --ids or --tag")
		}

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
		var result bulk.Result
		if tag != "" {
			result, err = orch.RemoveByTag(ctx, tag, accounts)
			if err != nil {
				return err
			}
		} else {
			var addonIDs []string
			for _, id := range strings.Split(ids, ",") {
				if id = strings.TrimSpace(id); id != "" {
					addonIDs = append(addonIDs, id)
				}
			}
			result = orch.Remove(ctx, addonIDs, accounts)
		}

		env.flagAccountErrors(ctx, result.Errors)
		if err := env.persist(ctx); err != nil {
			return err
		}

		fmt.Printf("%d succeeded, %d failed\n", result.Success, result.Failed)
		for _, detail := range result.Details {
			for _, ref := range detail.Result.Protected {
				fmt.Printf("  %s: %s is protected and was kept\n", detail.AccountID, ref.AddonID)
			}
		}
		for _, accErr := range result.Errors {
			fmt.Printf("  %s: FAILED - %v\n", accErr.AccountID, accErr.Err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(removeCmd)

	removeCmd.Flags().String("ids", "", "Comma-separated addon manifest ids")
	removeCmd.Flags().StringP("tag", "t", "", "Remove every addon with this library tag")
	removeCmd.Flags().String("accounts", "all", "Comma-separated account ids, or 'all'")
}
