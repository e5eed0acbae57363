package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// reinstallCmd implements: stremman reinstall
// Removes and re-adds one addon on one account with a freshly fetched
// manifest, restoring its original position in the collection.
var reinstallCmd = &cobra.Command{
	Use:   "reinstall <account-id> <addon-id>",
	Short: "Remove and re-add an addon to refresh its manifest",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openEnv(cmd, true)
		if err != nil {
			return err
		}
		defer env.Close()

		ctx := cmd.Context()
		accounts, err := env.targetAccounts(ctx, args[0])
		if err != nil {
			return err
		}

		orch := env.orchestrator()
		report, err := orch.Reinstall(ctx, accounts[0], args[1])
		if err != nil {
			env.flagAccountErrors(ctx, accountFailure(accounts[0].ID, err))
			return err
		}

		if report.NoOp {
			fmt.Printf("Nothing to do: %s\n", report.NoOpReason)
			return nil
		}

		if err := env.persist(ctx); err != nil {
			return err
		}

		if report.PreviousVersion != report.NewVersion {
			fmt.Printf("Reinstalled %s: %s -> %s\n", report.AddonID, report.PreviousVersion, report.NewVersion)
		} else {
			fmt.Printf("Reinstalled %s at version %s\n", report.AddonID, report.NewVersion)
		}
		if report.Reordered {
			fmt.Println("Restored original collection position")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reinstallCmd)
}
