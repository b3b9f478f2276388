package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/evcraddock/canvass/internal/client"
)

func newFilterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Show or change the map color filter",
		Long: `Show or change which colors the map displays.

Colors: red, orange, yellow, green, grey, blue

Examples:
  canvass filter
  canvass filter toggle red
  canvass filter set green yellow
  canvass filter reset`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := newAPIClient().GetFilter(cmd.Context())
			return printFilterResult(f, err)
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "toggle <color>",
			Short: "Show or hide one color",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				f, err := newAPIClient().ToggleFilter(cmd.Context(), args[0])
				return printFilterResult(f, err)
			},
		},
		&cobra.Command{
			Use:   "set [color...]",
			Short: "Show only the given colors (none: show every color)",
			RunE: func(cmd *cobra.Command, args []string) error {
				f, err := newAPIClient().SetFilter(cmd.Context(), args)
				return printFilterResult(f, err)
			},
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Show every color",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				f, err := newAPIClient().ResetFilter(cmd.Context())
				return printFilterResult(f, err)
			},
		},
	)

	return cmd
}

func printFilterResult(f *client.Filter, err error) error {
	if err != nil {
		return err
	}
	if isJSON() {
		return printJSON(f)
	}
	printFilter(os.Stdout, f)
	return nil
}
