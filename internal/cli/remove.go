package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove an address",
		Long:  "Remove an address and its whole visit history.",
		Args:  cobra.ExactArgs(1),
		RunE:  runRemove,
	}
}

func runRemove(cmd *cobra.Command, args []string) error {
	c := newAPIClient()

	id, err := resolveID(cmd.Context(), c, args[0])
	if err != nil {
		return err
	}

	if err := c.DeleteAddress(cmd.Context(), id); err != nil {
		return err
	}

	if isJSON() {
		return printJSON(map[string]interface{}{
			"id":      id,
			"removed": true,
		})
	}

	fmt.Printf("Address %s removed.\n", id)
	return nil
}
