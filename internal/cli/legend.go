package cli

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/evcraddock/canvass/internal/client"
)

func newLegendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "legend",
		Short: "Show map colors and the outcomes behind them",
		Long:  "List the map colors in legend order with their pin color, and each visit outcome with the color it gives on its own.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newAPIClient()

			colors, err := c.Colors(cmd.Context())
			if err != nil {
				return err
			}
			outcomes, err := c.Outcomes(cmd.Context())
			if err != nil {
				return err
			}

			if isJSON() {
				return printJSON(map[string]interface{}{"colors": colors, "outcomes": outcomes})
			}
			return printLegend(os.Stdout, colors, outcomes)
		},
	}
}

// printLegend lists each color with the outcomes that map to it alone.
func printLegend(w io.Writer, colors []client.Style, outcomes []client.Outcome) error {
	byColor := make(map[string][]string, len(colors))
	for _, o := range outcomes {
		byColor[o.Color] = append(byColor[o.Color], o.Tag)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "COLOR\tPIN\tOUTCOMES"); err != nil {
		return fmt.Errorf("writing legend header: %w", err)
	}
	for _, s := range colors {
		tags := formatResults(byColor[s.Color])
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Color, s.Pin, tags); err != nil {
			return fmt.Errorf("writing legend row: %w", err)
		}
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flushing legend: %w", err)
	}
	return nil
}
