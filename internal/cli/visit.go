package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newVisitCmd() *cobra.Command {
	var vf visitFlags

	cmd := &cobra.Command{
		Use:   "visit <id>",
		Short: "Record a visit to an address",
		Long: `Record another visit at an existing address. The latest visit decides the
address color on the map.

Examples:
  canvass visit 3f2a -r "Shared Gospel" -r "Invited to Church" --first Sam
  canvass visit 3f2a -r "No Answer" -c "dog in yard"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(vf.results) == 0 {
				return errors.New("at least one --result is required")
			}

			c := newAPIClient()
			id, err := resolveID(cmd.Context(), c, args[0])
			if err != nil {
				return err
			}

			a, err := c.AddVisit(cmd.Context(), id, vf.visit())
			if err != nil {
				return err
			}

			if isJSON() {
				return printJSON(a)
			}

			fmt.Printf("Visit recorded at %s, now %s.\n", a.Address, a.Color)
			return nil
		},
	}

	vf.register(cmd)

	return cmd
}
