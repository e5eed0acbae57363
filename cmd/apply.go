package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/DrZacharySmith/stremio-account-manager/pkg/bulk"
	"github.com/DrZacharySmith/stremio-account-manager/pkg/engine"
	"github.com/DrZacharySmith/stremio-account-manager/pkg/library"
)

// applyCmd implements: stremman apply
// Pushes saved addons from the library onto the selected accounts.
// Accounts are processed one at a time; a failure on one never blocks
// the rest.
var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Install saved addons on accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, _ := cmd.Flags().GetString("ids")
		tag, _ := cmd.Flags().GetString("tag")
		strategy, _ := cmd.Flags().GetString("strategy")
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
			result, err = orch.ApplyTag(ctx, tag, accounts, strategy)
		} else {
			var templates []library.SavedAddon
			templates, err = resolveSavedAddons(env.lib, ids)
			if err == nil {
				result, err = orch.Apply(ctx, templates, accounts, strategy)
			}
		}
		if err != nil {
			return err
		}

		env.flagAccountErrors(ctx, result.Errors)
		if err := env.persist(ctx); err != nil {
			return err
		}
		printBulkResult(result)
		return nil
	},
}

// resolveSavedAddons looks up a comma-separated id list in the library.
func resolveSavedAddons(lib *library.Library, ids string) ([]library.SavedAddon, error) {
	var out []library.SavedAddon
	for _, id := range strings.Split(ids, ",") {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		saved, err := lib.Get(id)
		if err != nil {
			return nil, fmt.Errorf("addon %s: %w", id, err)
		}
		out = append(out, saved)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no addon ids given")
	}
	return out, nil
}

func init() {
	rootCmd.AddCommand(applyCmd)

	applyCmd.Flags().String("ids", "", "Comma-separated saved addon ids")
	applyCmd.Flags().StringP("tag", "t", "", "Apply every addon with this tag")
	applyCmd.Flags().StringP("strategy", "s", engine.StrategyReplaceMatching,
		"Merge strategy: "+engine.StrategyReplaceMatching+" or "+engine.StrategyAddOnly)
	applyCmd.Flags().String("accounts", "all", "Comma-separated account ids, or 'all'")
}
