package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newLookupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <lat> <lon>",
		Short: "Find the address at a coordinate",
		Long: `Reverse geocode a coordinate to the address fields used by add.
Put -- before negative coordinates:

  canvass lookup -- 38.2527 -85.7585`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lat, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("invalid latitude: %s", args[0])
			}
			lon, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid longitude: %s", args[1])
			}

			res, err := newAPIClient().Reverse(cmd.Context(), lat, lon)
			if err != nil {
				return err
			}

			if isJSON() {
				return printJSON(res)
			}

			a := res.Address
			fmt.Printf("%s %s\n%s, %s %s\n", a.HouseNumber, a.StreetName, a.City, a.State, a.Zip)
			return nil
		},
	}
}
