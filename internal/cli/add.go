package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/evcraddock/canvass/internal/client"
)

// visitFlags are the flags shared by add and visit.
type visitFlags struct {
	results   []string
	firstName string
	lastName  string
	visitedBy string
	comment   string
}

func (f *visitFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&f.results, "result", "r", nil, `visit outcome, repeatable (e.g. -r "No Answer")`)
	cmd.Flags().StringVar(&f.firstName, "first", "", "resident first name")
	cmd.Flags().StringVar(&f.lastName, "last", "", "resident last name")
	cmd.Flags().StringVar(&f.visitedBy, "by", "", "volunteer name (default: the API key's volunteer)")
	cmd.Flags().StringVarP(&f.comment, "comment", "c", "", "free-form note")
}

func (f *visitFlags) visit() client.Visit {
	return client.Visit{
		FirstName: f.firstName,
		LastName:  f.lastName,
		Results:   f.results,
		VisitedBy: f.visitedBy,
		Comment:   f.comment,
	}
}

func newAddCmd() *cobra.Command {
	var (
		vf    visitFlags
		city  string
		state string
		zip   string
		lat   float64
		lon   float64
	)

	cmd := &cobra.Command{
		Use:   "add <house-number> <street name>",
		Short: "Add an address with its first visit",
		Long: `Add an address and record the first visit there. The server looks up the
coordinates unless --lat and --lon are given.

Examples:
  canvass add 12 Main St --city Louisville --state KY --zip 40202 -r "No Answer"
  canvass add 40 Oak Ave --city Louisville --state KY --zip 40202 -r Believer --by Ann`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := client.AddRequest{
				Fields: client.Fields{
					HouseNumber: args[0],
					StreetName:  strings.Join(args[1:], " "),
					City:        city,
					State:       state,
					Zip:         zip,
				},
				Visit: vf.visit(),
			}
			if cmd.Flags().Changed("lat") || cmd.Flags().Changed("lon") {
				if !cmd.Flags().Changed("lat") || !cmd.Flags().Changed("lon") {
					return fmt.Errorf("--lat and --lon must be given together")
				}
				req.Coordinates = &client.Point{Lat: lat, Lon: lon}
			}
			return runAdd(cmd, req)
		},
	}

	cmd.Flags().StringVar(&city, "city", "", "city")
	cmd.Flags().StringVar(&state, "state", "", "state")
	cmd.Flags().StringVar(&zip, "zip", "", "postal code")
	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude (skips geocoding)")
	cmd.Flags().Float64Var(&lon, "lon", 0, "longitude (skips geocoding)")
	_ = cmd.MarkFlagRequired("city")
	_ = cmd.MarkFlagRequired("state")
	_ = cmd.MarkFlagRequired("zip")
	vf.register(cmd)

	return cmd
}

func runAdd(cmd *cobra.Command, req client.AddRequest) error {
	c := newAPIClient()

	a, err := c.AddAddress(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("adding address: %w", err)
	}

	if isJSON() {
		return printJSON(a)
	}

	fmt.Println("Address added.")
	printAddressSummary(os.Stdout, a)
	return nil
}
