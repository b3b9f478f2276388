package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/evcraddock/canvass/internal/client"
)

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show an address and its visits",
		Long:  "Show an address with its full visit history. The id may be the short prefix printed by list.",
		Args:  cobra.ExactArgs(1),
		RunE:  runShow,
	}
}

func runShow(cmd *cobra.Command, args []string) error {
	c := newAPIClient()

	id, err := resolveID(cmd.Context(), c, args[0])
	if err != nil {
		return err
	}

	a, err := c.GetAddress(cmd.Context(), id)
	if err != nil {
		return err
	}

	if isJSON() {
		return printJSON(a)
	}

	printAddressSummary(os.Stdout, a)
	fmt.Println()
	fmt.Printf("Visits (%d):\n", len(a.History))
	printHistory(os.Stdout, a.History)
	return nil
}

// addressLister is the part of the API client resolveID needs.
type addressLister interface {
	GetAddress(ctx context.Context, id string) (*client.Address, error)
	ListAddresses(ctx context.Context, visibleOnly bool) ([]client.Address, error)
}

// resolveID expands a unique id prefix to the full id.
func resolveID(ctx context.Context, c addressLister, arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "", errors.New("address id is required")
	}

	_, err := c.GetAddress(ctx, arg)
	if err == nil {
		return arg, nil
	}
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		return "", err
	}

	addrs, err := c.ListAddresses(ctx, false)
	if err != nil {
		return "", err
	}

	var matches []string
	for _, a := range addrs {
		if strings.HasPrefix(a.ID, arg) {
			matches = append(matches, a.ID)
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no address with id %s", arg)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("id prefix %s matches %d addresses", arg, len(matches))
	}
}
