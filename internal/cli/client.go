package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odoobiznes/kms-fsnav/internal/api"
	"github.com/odoobiznes/kms-fsnav/internal/config"
)

// configPath returns the --config path or the default location.
func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	return config.DefaultConfigPath()
}

// loadConfig reads the config file and applies flag, environment and
// token-file overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	cfg.MergeWithFlags(baseURL, token, tokenFile)

	if cmd != nil {
		if f := cmd.Flags().Lookup("allow-any"); f != nil && f.Changed {
			cfg.AllowAny = allowAny
		}
		if f := cmd.Flags().Lookup("use-sudo"); f != nil && f.Changed {
			cfg.UseSudo = useSudo
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// accessOptions returns the backend access flags configured in cfg.
func accessOptions(cfg *config.Config) api.AccessOptions {
	return api.AccessOptions{AllowAny: cfg.AllowAny, UseSudo: cfg.UseSudo}
}

// getAPIClient loads configuration and creates an API client.
// This is the standard way to get an API client in CLI commands.
func getAPIClient(cmd *cobra.Command) (*api.Client, *config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	client, err := api.NewClient(cfg, GetLogger())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create API client: %w", err)
	}

	return client, cfg, nil
}
