package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/evcraddock/canvass/internal/client"
)

func newLoginCmd() *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store an API key",
		Long:  "Store an API key for CLI access. Keys are created on the server host with 'canvass keys create'.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(server, cmd.InOrStdin())
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "server URL (default: from config or http://localhost:8080)")

	return cmd
}

func runLogin(serverFlag string, in io.Reader) error {
	serverURL := serverFlag
	if serverURL == "" {
		serverURL = getServerURL()
	}

	fmt.Printf("Server: %s\n", serverURL)
	fmt.Print("Paste your API key: ")
	reader := bufio.NewReader(in)
	key, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("reading input: %w", err)
	}

	key = strings.TrimSpace(key)
	if err := validateAPIKey(key); err != nil {
		return err
	}

	// Check the key before saving it.
	if _, err := client.New(serverURL, key).GetFilter(context.Background()); err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("server rejected the API key")
		}
		fmt.Fprintf(os.Stderr, "warning: could not verify key: %v\n", err)
	}

	// Load existing config to preserve other fields
	cfg, err := loadConfig()
	if err != nil {
		cfg = CLIConfig{}
	}

	cfg.APIKey = key
	if serverFlag != "" {
		cfg.ServerURL = serverFlag
	}

	if err := saveConfig(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Println("✓ API key saved. You're logged in!")
	return nil
}

// validateAPIKey checks that the key is non-empty and has the expected prefix.
func validateAPIKey(key string) error {
	if key == "" {
		return fmt.Errorf("no API key provided")
	}
	if !strings.HasPrefix(key, "ck_") {
		return fmt.Errorf("invalid API key format (should start with ck_)")
	}
	return nil
}
