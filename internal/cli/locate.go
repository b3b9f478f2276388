package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLocateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "locate <id>",
		Short: "Geocode an address that has no map position",
		Long:  "Ask the server to look up coordinates for an address saved without them. Addresses that already have coordinates are left alone.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newAPIClient()

			id, err := resolveID(cmd.Context(), c, args[0])
			if err != nil {
				return err
			}

			a, err := c.Backfill(cmd.Context(), id)
			if err != nil {
				return err
			}

			if isJSON() {
				return printJSON(a)
			}
			if a.Coordinates == nil {
				fmt.Printf("%s still has no coordinates.\n", a.Address)
				return nil
			}
			fmt.Printf("%s is at %.6f, %.6f\n", a.Address, a.Coordinates.Lat, a.Coordinates.Lon)
			return nil
		},
	}
}
