package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Prints statistics about accounts and the addon library.",
	Long:  "Prints statistics about accounts and the addon library.",
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

		if len(accounts) == 0 && env.lib.Len() == 0 {
			fmt.Println("No data in the database to generate stats.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "ACCOUNT\tSTATUS\tINSTALLED\tLINKED\t")

		var totalInstalled, totalLinked int
		for _, a := range accounts {
			installed, linked := 0, 0
			if state, ok := env.states[a.ID]; ok {
				installed = len(state.Installed)
				for _, inst := range state.Installed {
					if inst.SavedAddonID != "" {
						linked++
					}
				}
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t\n", a.Name, a.Status, installed, linked)
			totalInstalled += installed
			totalLinked += linked
		}

		fmt.Fprintln(w, " \t \t \t \t")
		fmt.Fprintf(w, "TOTAL\t%d accounts\t%d\t%d\t\n", len(accounts), totalInstalled, totalLinked)
		w.Flush()

		offline := 0
		for _, saved := range env.lib.All() {
			if saved.Health != nil && !saved.Health.IsOnline {
				offline++
			}
		}
		fmt.Printf("\nLibrary: %d saved addons, %d tags, %d offline\n",
			env.lib.Len(), len(env.lib.Tags()), offline)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
