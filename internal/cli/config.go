package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	defaultServerURL = "http://localhost:8080"
	envServerURL     = "CANVASS_SERVER_URL"
	envAPIKey        = "CANVASS_API_KEY"
)

// CLIConfig is what canvass login stores for later commands.
type CLIConfig struct {
	ServerURL string `yaml:"server_url,omitempty"`
	APIKey    string `yaml:"api_key,omitempty"`
}

// configDir returns ~/.config/canvass, shared with the server's server.yaml.
func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, ".config", "canvass"), nil
}

// configPath returns ~/.config/canvass/config.yaml.
func configPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// loadConfig returns the saved login, or a zero config before the first login.
func loadConfig() (CLIConfig, error) {
	path, err := configPath()
	if err != nil {
		return CLIConfig{}, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return CLIConfig{}, nil
	}
	if err != nil {
		return CLIConfig{}, fmt.Errorf("reading CLI config %s: %w", path, err)
	}

	var cfg CLIConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return CLIConfig{}, fmt.Errorf("CLI config %s is not valid YAML: %w", path, err)
	}

	return cfg, nil
}

// saveConfig stores the login. The file holds an API key, so only the owner may read it.
func saveConfig(cfg CLIConfig) error {
	path, err := configPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating CLI config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding CLI config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing CLI config %s: %w", path, err)
	}

	return nil
}

// getServerURL prefers CANVASS_SERVER_URL, then the saved login, then a local server.
func getServerURL() string {
	if v := os.Getenv(envServerURL); v != "" {
		return v
	}
	cfg, err := loadConfig()
	if err == nil && cfg.ServerURL != "" {
		return cfg.ServerURL
	}
	return defaultServerURL
}

// getAPIKey prefers CANVASS_API_KEY over the saved login. An unreadable config counts as no key.
func getAPIKey() string {
	if v := os.Getenv(envAPIKey); v != "" {
		return v
	}
	cfg, err := loadConfig()
	if err == nil {
		return cfg.APIKey
	}
	return ""
}
