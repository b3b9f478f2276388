package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/evcraddock/canvass/internal/client"
)

// printJSON marshals v as indented JSON and writes it to stdout.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printAddressSummary prints a single address in text format.
func printAddressSummary(w io.Writer, a *client.Address) {
	fmt.Fprintf(w, "Address %s\n", a.ID)
	fmt.Fprintf(w, "  Address:  %s\n", a.Address)
	if a.Coordinates != nil {
		fmt.Fprintf(w, "  Location: %.6f, %.6f\n", a.Coordinates.Lat, a.Coordinates.Lon)
	} else {
		fmt.Fprintln(w, "  Location: not geocoded")
	}
	fmt.Fprintf(w, "  Color:    %s\n", a.Color)
	if len(a.Results) > 0 {
		fmt.Fprintf(w, "  Results:  %s\n", formatResults(a.Results))
	}
	if name := fullName(a.FirstName, a.LastName); name != "" {
		fmt.Fprintf(w, "  Resident: %s\n", name)
	}
	if a.VisitedBy != "" {
		fmt.Fprintf(w, "  Visitor:  %s\n", a.VisitedBy)
	}
	if a.UpdatedAt > 0 {
		fmt.Fprintf(w, "  Updated:  %s\n", formatTime(time.UnixMilli(a.UpdatedAt)))
	}
}

// printAddressTable prints addresses as a formatted table.
func printAddressTable(w io.Writer, addrs []client.Address) error {
	if len(addrs) == 0 {
		fmt.Fprintln(w, "No addresses found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "ID\tADDRESS\tCOLOR\tLAST RESULT\tVISITS\tUPDATED"); err != nil {
		return fmt.Errorf("writing table header: %w", err)
	}
	if _, err := fmt.Fprintln(tw, "--\t-------\t-----\t-----------\t------\t-------"); err != nil {
		return fmt.Errorf("writing table separator: %w", err)
	}

	for _, a := range addrs {
		results := "-"
		if len(a.Results) > 0 {
			results = truncate(formatResults(a.Results), 30)
		}
		updated := "-"
		if a.UpdatedAt > 0 {
			updated = time.UnixMilli(a.UpdatedAt).Format("2006-01-02")
		}

		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			shortID(a.ID), truncate(a.Address, 40), a.Color, results, len(a.History), updated); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flushing table: %w", err)
	}

	fmt.Fprintf(w, "\nTotal: %d addresses\n", len(addrs))
	return nil
}

// printHistory prints visits newest first.
func printHistory(w io.Writer, entries []client.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No visits recorded.")
		return
	}

	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		by := e.VisitedBy
		if by == "" {
			by = "unknown"
		}
		fmt.Fprintf(w, "[%s] %s (%s)\n", formatTime(e.Time()), formatResults(e.Results), by)
		if name := fullName(e.FirstName, e.LastName); name != "" {
			fmt.Fprintf(w, "  Resident: %s\n", name)
		}
		if e.Comment != "" {
			fmt.Fprintf(w, "  %s\n", e.Comment)
		}
		fmt.Fprintln(w)
	}
}

// printFilter prints the filter state.
func printFilter(w io.Writer, f *client.Filter) {
	if !f.Filtering {
		fmt.Fprintln(w, "Showing all colors.")
		return
	}
	fmt.Fprintf(w, "Showing: %s\n", strings.Join(f.Enabled, ", "))
}

// formatResults joins outcome tags for display.
func formatResults(results []string) string {
	if len(results) == 0 {
		return "-"
	}
	return strings.Join(results, ", ")
}

// formatTime renders a visit time in local time.
func formatTime(t time.Time) string {
	if t.IsZero() || t.UnixMilli() == 0 {
		return "unknown date"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func fullName(first, last string) string {
	return strings.TrimSpace(first + " " + last)
}

// shortID returns the first block of a UUID for table display.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
