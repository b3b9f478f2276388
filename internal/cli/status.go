package cli

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/evcraddock/canvass/internal/client"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check connection and auth status",
		Long:  "Tests the connection to the server and checks if the stored API key is accepted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, os.Stdout)
		},
	}
}

func runStatus(cmd *cobra.Command, w io.Writer) error {
	serverURL := getServerURL()
	apiKey := getAPIKey()
	ctx := cmd.Context()

	fmt.Fprintf(w, "Server:  %s\n", serverURL)

	c := client.New(serverURL, apiKey)
	h, err := c.Health(ctx)
	if err != nil {
		fmt.Fprintf(w, "Status:  ✗ cannot reach server (%v)\n", err)
		return nil
	}
	fmt.Fprintf(w, "Records: %d addresses\n", h.Addresses)

	if apiKey == "" {
		fmt.Fprintln(w, "API Key: not configured")
	} else {
		prefix := apiKey
		if len(prefix) > 8 {
			prefix = prefix[:8]
		}
		fmt.Fprintf(w, "API Key: %s…\n", prefix)
	}

	_, err = c.GetFilter(ctx)
	var apiErr *client.APIError
	switch {
	case err == nil && apiKey == "":
		fmt.Fprintln(w, "Status:  ✓ connected (server does not require a key)")
	case err == nil:
		fmt.Fprintln(w, "Status:  ✓ connected and authenticated")
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized:
		fmt.Fprintln(w, "Status:  ✗ API key required or invalid")
		fmt.Fprintln(w, "\nRun 'canvass login' to authenticate.")
	case errors.As(err, &apiErr):
		fmt.Fprintf(w, "Status:  ✗ unexpected response (%d)\n", apiErr.StatusCode)
	default:
		fmt.Fprintf(w, "Status:  ✗ %v\n", err)
	}

	return nil
}
