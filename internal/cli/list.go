package cli

import (
	"os"

	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	var visible bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List addresses",
		Long:  "List every recorded address with its color and latest result. With --visible, only addresses passing the current map filter are shown.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			addrs, err := newAPIClient().ListAddresses(cmd.Context(), visible)
			if err != nil {
				return err
			}

			if isJSON() {
				return printJSON(addrs)
			}
			return printAddressTable(os.Stdout, addrs)
		},
	}

	cmd.Flags().BoolVar(&visible, "visible", false, "only addresses passing the map filter")

	return cmd
}
