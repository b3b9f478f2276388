package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/evcraddock/canvass/internal/auth"
)

// newKeysCmd manages API keys directly in the server database, so it runs
// on the server host.
func newKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage API keys",
		Long:  "Create, list and delete the API keys accepted by 'canvass serve --auth'. Works on the local database given by --db.",
	}

	cmd.AddCommand(newKeysCreateCmd(), newKeysListCmd(), newKeysDeleteCmd())
	return cmd
}

func newKeysCreateCmd() *cobra.Command {
	var volunteer string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an API key",
		Long:  "Create an API key. The raw key is printed once; only its hash is stored.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := openDB()
			if err != nil {
				return err
			}
			defer closeDB(database)

			raw, key, err := auth.NewAPIKeyStore(database).Create(cmd.Context(), args[0], volunteer)
			if err != nil {
				return fmt.Errorf("creating key: %w", err)
			}

			if isJSON() {
				return printJSON(map[string]interface{}{"key": raw, "api_key": key})
			}

			fmt.Printf("Created key #%d (%s)\n", key.ID, key.Name)
			fmt.Printf("\n  %s\n\n", raw)
			fmt.Println("Store it now; it cannot be shown again.")
			return nil
		},
	}

	cmd.Flags().StringVar(&volunteer, "volunteer", "", "volunteer name recorded on visits made with this key")

	return cmd
}

func newKeysListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := openDB()
			if err != nil {
				return err
			}
			defer closeDB(database)

			keys, err := auth.NewAPIKeyStore(database).List(cmd.Context())
			if err != nil {
				return err
			}

			if isJSON() {
				return printJSON(keys)
			}
			return printKeyTable(keys)
		},
	}
}

func newKeysDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid key ID: %s", args[0])
			}

			database, err := openDB()
			if err != nil {
				return err
			}
			defer closeDB(database)

			err = auth.NewAPIKeyStore(database).Delete(cmd.Context(), id)
			if errors.Is(err, auth.ErrKeyNotFound) {
				return fmt.Errorf("no key #%d", id)
			}
			if err != nil {
				return err
			}

			if isJSON() {
				return printJSON(map[string]interface{}{"id": id, "deleted": true})
			}
			fmt.Printf("Key #%d deleted.\n", id)
			return nil
		},
	}
}

func printKeyTable(keys []auth.APIKey) error {
	if len(keys) == 0 {
		fmt.Println("No API keys.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(w, "ID\tNAME\tVOLUNTEER\tPREFIX\tCREATED\tLAST USED"); err != nil {
		return fmt.Errorf("writing table header: %w", err)
	}
	for _, k := range keys {
		lastUsed := "never"
		if k.LastUsedAt != nil {
			lastUsed = formatTime(*k.LastUsedAt)
		}
		if _, err := fmt.Fprintf(w, "%d\t%s\t%s\t%s…\t%s\t%s\n",
			k.ID, k.Name, k.Volunteer, k.KeyPrefix, formatTime(k.CreatedAt), lastUsed); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}
	return w.Flush()
}
