package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/DrZacharySmith/stremio-account-manager/internal/utils"
	"github.com/DrZacharySmith/stremio-account-manager/pkg/library"
)

var libCmd = &cobra.Command{
	Use:   "lib",
	Short: "Manage the addon library",
}

// libAddCmd implements: stremman lib add
// Fetches the manifest behind the URL and saves it as a library template.
var libAddCmd = &cobra.Command{
	Use:   "add <install-url>",
	Short: "Save an addon to the library by install URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		installURL := args[0]
		name, _ := cmd.Flags().GetString("name")
		tags, _ := cmd.Flags().GetStringSlice("tags")

		env, err := openEnv(cmd, false)
		if err != nil {
			return err
		}
		defer env.Close()

		ctx := cmd.Context()
		if existing, ok := env.lib.FindByInstallURL(installURL); ok {
			return fmt.Errorf("already saved as %q (%s)", existing.Name, existing.ID)
		}

		manifest, err := env.client.FetchManifest(ctx, installURL)
		if err != nil {
			return fmt.Errorf("fetch manifest: %w", err)
		}

		saved := env.lib.Create(name, installURL, manifest, tags, library.SourceManual, "", time.Now().UTC())
		if err := env.persist(ctx); err != nil {
			return err
		}
		fmt.Printf("Saved %q (%s) version %s\n", saved.Name, saved.ID, manifest.Version)
		return nil
	},
}

// libCloneCmd implements: stremman lib clone
// Copies an account's live collection into the library, skipping
// protected addons and anything already saved.
var libCloneCmd = &cobra.Command{
	Use:   "clone <account-id>",
	Short: "Save an account's installed addons to the library",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tags, _ := cmd.Flags().GetStringSlice("tags")

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
		account := accounts[0]

		authKey, err := env.session.Decrypt(account.AuthKeySealed)
		if err != nil {
			return err
		}
		collection, err := env.client.GetCollection(ctx, string(authKey))
		if err != nil {
			env.flagAccountErrors(ctx, accountFailure(account.ID, err))
			return err
		}

		added := 0
		for _, desc := range collection {
			if desc.IsProtected() {
				utils.Log.Debugf("skipping protected addon %s", desc.Manifest.ID)
				continue
			}
			if _, ok := env.lib.FindByInstallURL(desc.TransportURL); ok {
				continue
			}
			saved := env.lib.Create("", desc.TransportURL, desc.Manifest, tags, library.SourceCloned, account.ID, time.Now().UTC())
			fmt.Printf("Saved %q (%s)\n", saved.Name, saved.ID)
			added++
		}

		if err := env.persist(ctx); err != nil {
			return err
		}
		fmt.Printf("Cloned %d addons from %s\n", added, account.Name)
		return nil
	},
}

var libListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved addons",
	RunE: func(cmd *cobra.Command, args []string) error {
		tag, _ := cmd.Flags().GetString("tag")

		env, err := openEnv(cmd, false)
		if err != nil {
			return err
		}
		defer env.Close()

		addons := env.lib.All()
		if tag != "" {
			addons = env.lib.ByTag(tag)
		}
		if len(addons) == 0 {
			fmt.Println("Library is empty. Save an addon with 'stremman lib add'")
			return nil
		}

		for _, saved := range addons {
			line := fmt.Sprintf("%s  %s  v%s", saved.ID, saved.Name, saved.Manifest.Version)
			if len(saved.Tags) > 0 {
				line += "  [" + strings.Join(saved.Tags, ", ") + "]"
			}
			if saved.Health != nil && !saved.Health.IsOnline {
				line += "  OFFLINE"
			}
			fmt.Println(line)
		}
		return nil
	},
}

var libEditCmd = &cobra.Command{
	Use:   "edit <addon-id>",
	Short: "Rename a saved addon or replace its tags",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openEnv(cmd, false)
		if err != nil {
			return err
		}
		defer env.Close()

		saved, err := env.lib.Get(args[0])
		if err != nil {
			return err
		}
		if name, _ := cmd.Flags().GetString("name"); name != "" {
			saved.Name = name
		}
		if cmd.Flags().Changed("tags") {
			tags, _ := cmd.Flags().GetStringSlice("tags")
			saved.Tags = tags
		}
		if err := env.lib.Update(saved, time.Now().UTC()); err != nil {
			return err
		}
		if err := env.persist(cmd.Context()); err != nil {
			return err
		}
		fmt.Printf("Updated %q\n", saved.Name)
		return nil
	},
}

var libRemoveCmd = &cobra.Command{
	Use:   "rm <addon-id>",
	Short: "Delete a saved addon from the library",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openEnv(cmd, false)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.lib.Delete(args[0]); err != nil {
			return err
		}
		if err := env.db.DeleteSavedAddon(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Removed %s\n", args[0])
		return nil
	},
}

var libTagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "List all tags in the library",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openEnv(cmd, false)
		if err != nil {
			return err
		}
		defer env.Close()

		for _, tag := range env.lib.Tags() {
			fmt.Printf("%s  (%d addons)\n", tag, len(env.lib.ByTag(tag)))
		}
		return nil
	},
}

var libTagRenameCmd = &cobra.Command{
	Use:   "tag-rename <old> <new>",
	Short: "Rename a tag across the whole library",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openEnv(cmd, false)
		if err != nil {
			return err
		}
		defer env.Close()

		count := env.lib.RenameTag(args[0], args[1], time.Now().UTC())
		if count == 0 {
			fmt.Printf("No addons tagged %q\n", args[0])
			return nil
		}
		if err := env.persist(cmd.Context()); err != nil {
			return err
		}
		fmt.Printf("Renamed tag on %d addons\n", count)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(libCmd)
	libCmd.AddCommand(libAddCmd)
	libCmd.AddCommand(libCloneCmd)
	libCmd.AddCommand(libListCmd)
	libCmd.AddCommand(libEditCmd)
	libCmd.AddCommand(libRemoveCmd)
	libCmd.AddCommand(libTagsCmd)
	libCmd.AddCommand(libTagRenameCmd)

	libAddCmd.Flags().StringP("name", "n", "", "Display name (defaults to the manifest name)")
	libAddCmd.Flags().StringSlice("tags", nil, "Tags to attach, comma separated")
	libCloneCmd.Flags().StringSlice("tags", nil, "Tags to attach to every cloned addon")
	libListCmd.Flags().StringP("tag", "t", "", "Only list addons with this tag")
	libEditCmd.Flags().StringP("name", "n", "", "New display name")
	libEditCmd.Flags().StringSlice("tags", nil, "Replace the tag set")
}
