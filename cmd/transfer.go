package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/DrZacharySmith/stremio-account-manager/pkg/transfer"
)

// exportCmd implements: stremman export
// Writes the library and ledgers to a JSON file. Credentials are never
// included.
var exportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Export the library to a JSON file",
	Args:  cobra.ExactArgs(1),
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

		doc := transfer.Export(env.lib, accounts, env.states, time.Now().UTC())
		raw, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(args[0], raw, 0600); err != nil {
			return err
		}
		fmt.Printf("Exported %d addons to %s\n", len(doc.Addons), args[0])
		return nil
	},
}

// importCmd implements: stremman import
// Loads addons from an export file. Merge keeps the current library and
// adds the imported entries under new ids; replace discards it first.
// An invalid document changes nothing.
var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import addons from an export file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, _ := cmd.Flags().GetString("mode")

		env, err := openEnv(cmd, false)
		if err != nil {
			return err
		}
		defer env.Close()

		raw, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		doc, err := transfer.Parse(raw)
		if err != nil {
			return err
		}

		lib, imported, err := transfer.ImportLibrary(env.lib, doc, mode, time.Now().UTC())
		if err != nil {
			return err
		}
		env.lib = lib

		if err := env.persist(cmd.Context()); err != nil {
			return err
		}
		fmt.Printf("Imported %d addons (%s mode), library now holds %d\n", imported, mode, env.lib.Len())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringP("mode", "m", transfer.ModeMerge,
		"Import mode: "+transfer.ModeMerge+" or "+transfer.ModeReplace)
}
