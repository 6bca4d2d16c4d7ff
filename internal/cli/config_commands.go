// Package cli provides configuration management commands.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/odoobiznes/kms-fsnav/internal/api"
	"github.com/odoobiznes/kms-fsnav/internal/config"
	strutil "github.com/odoobiznes/kms-fsnav/internal/util/strings"
)

// tokenFileName is the token file written next to the config by 'config init'.
const tokenFileName = "kms_token"

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage kms-fsnav configuration",
		Long: `Configuration management commands for kms-fsnav.

Commands:
  init  - Interactive configuration setup
  show  - Display current configuration
  test  - Test the server connection
  path  - Show configuration file path`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigTestCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long: `Interactive configuration setup for kms-fsnav.

The configuration is saved to ~/.config/kms-fsnav/config and the bearer
token to a separate kms_token file in the same directory.

Use --force to overwrite existing configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			return runConfigInit(cmd.InOrStdin(), cmd.OutOrStdout(), path, force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration")

	return cmd
}

// runConfigInit asks for the settings on in and saves them to path.
func runConfigInit(in io.Reader, out io.Writer, path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			fmt.Fprintf(out, "Configuration already exists at: %s\n", path)
			fmt.Fprintln(out, "Use --force to overwrite or run 'config show' to view current config.")
			return nil
		}
	}

	fmt.Fprintln(out, "KMS Configuration Setup")
	fmt.Fprintln(out, "=======================")
	fmt.Fprintln(out)

	reader := bufio.NewReader(in)
	cfg := config.New()

	cfg.BaseURL = promptLine(reader, out, "Server URL", cfg.BaseURL)
	tokenInput := promptLine(reader, out, "Bearer token (leave empty to set later)", "")
	cfg.StartPath = promptLine(reader, out, "Start path", cfg.StartPath)

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Import Settings (press Enter for defaults)")
	fmt.Fprintln(out, "------------------------------------------")
	cfg.Transport = strings.ToLower(promptLine(reader, out, "Transport (http, s3, azure)", cfg.Transport))
	if v, err := strconv.Atoi(promptLine(reader, out, "Walk concurrency", strconv.Itoa(cfg.Concurrency))); err == nil && v > 0 {
		cfg.Concurrency = v
	}

	switch cfg.Transport {
	case config.TransportS3:
		cfg.S3.Bucket = promptLine(reader, out, "S3 bucket", "")
		cfg.S3.Region = promptLine(reader, out, "S3 region", "us-east-1")
		cfg.S3.Prefix = promptLine(reader, out, "S3 key prefix", "")
	case config.TransportAzure:
		cfg.Azure.SASURL = promptLine(reader, out, "Azure account URL with SAS", "")
		cfg.Azure.Container = promptLine(reader, out, "Azure container", "")
	}

	fmt.Fprintln(out)
	if answer := promptLine(reader, out, "Configure proxy? [y/N]", ""); strings.EqualFold(answer, "y") || strings.EqualFold(answer, "yes") {
		fmt.Fprintln(out, "Proxy modes: no-proxy, system, basic, ntlm")
		cfg.ProxyMode = promptLine(reader, out, "Proxy mode", "system")
		if cfg.ProxyMode != "no-proxy" {
			cfg.ProxyHost = promptLine(reader, out, "Proxy host", "")
			cfg.ProxyPort = 8080
			if v, err := strconv.Atoi(promptLine(reader, out, "Proxy port", "8080")); err == nil && v > 0 {
				cfg.ProxyPort = v
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if tokenInput != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
		// The token lives in its own file, not in the config
		tokenPath := filepath.Join(filepath.Dir(path), tokenFileName)
		if err := os.WriteFile(tokenPath, []byte(tokenInput+"\n"), 0600); err != nil {
			return fmt.Errorf("failed to save token file: %w", err)
		}
		cfg.TokenFile = tokenPath
		fmt.Fprintf(out, "✓ Token saved to: %s\n", tokenPath)
	}

	if err := config.Save(cfg, path); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	GetLogger().Debug().Str("path", path).Msg("configuration saved")

	fmt.Fprintf(out, "✓ Configuration saved to: %s\n", path)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Test your configuration with: kms-fsnav config test")
	return nil
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the current configuration settings.

This command shows the merged configuration from:
  1. Configuration file (~/.config/kms-fsnav/config)
  2. Token file and the KMS_TOKEN environment variable
  3. Command-line flags (--url, --token, --token-file)

Priority: flags > environment > token file > config file > defaults`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			cfg, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			cfg.MergeWithFlags(baseURL, token, tokenFile)

			writeConfigSummary(cmd.OutOrStdout(), cfg, path)
			return nil
		},
	}

	return cmd
}

// writeConfigSummary prints cfg for humans. Secrets are reported as set or
// not set, never shown.
func writeConfigSummary(out io.Writer, cfg *config.Config, path string) {
	fmt.Fprintln(out, "Current Configuration")
	fmt.Fprintln(out, "=====================")
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Server:")
	fmt.Fprintf(out, "  URL:        %s\n", cfg.BaseURL)
	fmt.Fprintf(out, "  Token:      %s\n", secretState(cfg.Token))
	if cfg.TokenFile != "" {
		fmt.Fprintf(out, "  Token file: %s\n", cfg.TokenFile)
	}
	if cfg.RequestsPerSecond > 0 {
		fmt.Fprintf(out, "  Rate limit: %g requests/s\n", cfg.RequestsPerSecond)
	} else {
		fmt.Fprintln(out, "  Rate limit: off")
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Browse:")
	fmt.Fprintf(out, "  Start path:  %s\n", cfg.StartPath)
	fmt.Fprintf(out, "  Allow any:   %t\n", cfg.AllowAny)
	fmt.Fprintf(out, "  Use sudo:    %t\n", cfg.UseSudo)
	fmt.Fprintf(out, "  Show hidden: %t\n", cfg.ShowHidden)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Import:")
	fmt.Fprintf(out, "  Transport:   %s\n", cfg.Transport)
	fmt.Fprintf(out, "  Concurrency: %d\n", cfg.Concurrency)
	switch cfg.Transport {
	case config.TransportS3:
		fmt.Fprintf(out, "  S3 bucket:   %s (%s)\n", cfg.S3.Bucket, cfg.S3.Region)
		if cfg.S3.Prefix != "" {
			fmt.Fprintf(out, "  S3 prefix:   %s\n", cfg.S3.Prefix)
		}
		fmt.Fprintf(out, "  S3 keys:     %s\n", secretState(cfg.S3.SecretAccessKey))
	case config.TransportAzure:
		fmt.Fprintf(out, "  Container:   %s\n", cfg.Azure.Container)
		fmt.Fprintf(out, "  SAS:         %s\n", secretState(cfg.Azure.SASURL+cfg.Azure.SASToken))
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Proxy:")
	fmt.Fprintf(out, "  Mode: %s\n", cfg.ProxyMode)
	if cfg.ProxyHost != "" {
		fmt.Fprintf(out, "  Host: %s\n", cfg.ProxyHost)
		fmt.Fprintf(out, "  Port: %d\n", cfg.ProxyPort)
	}
	fmt.Fprintln(out)

	fmt.Fprintf(out, "Configuration file: %s\n", path)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintln(out, "  (file does not exist - using defaults)")
	}
}

func secretState(secret string) string {
	if secret == "" {
		return "<not set>"
	}
	return "<set>"
}

// newConfigTestCmd creates the 'config test' command.
func newConfigTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Test the server connection",
		Long: `Test the server connection with current configuration.

Lists the configured start path to verify the URL, the token and the
access flags.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Testing Server Connection")
			fmt.Fprintln(out, "=========================")
			fmt.Fprintln(out)

			client, cfg, err := getAPIClient(cmd)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Server URL: %s\n", cfg.BaseURL)
			fmt.Fprintf(out, "Listing %s...\n\n", cfg.StartPath)

			ctx, cancel := context.WithTimeout(GetContext(), 10*time.Second)
			defer cancel()
			return testConnection(ctx, out, client, cfg)
		},
	}

	return cmd
}

// testConnection lists the start path and reports the outcome.
func testConnection(ctx context.Context, out io.Writer, client api.DirectoryClient, cfg *config.Config) error {
	entries, err := client.List(ctx, cfg.StartPath, accessOptions(cfg))
	if err != nil {
		GetLogger().Error().Err(err).Msg("connection test failed")
		fmt.Fprintln(out, "✗ Connection FAILED")
		fmt.Fprintf(out, "  Error: %v\n", userError(err))
		return fmt.Errorf("connection test failed")
	}

	fmt.Fprintln(out, "✓ Connection SUCCESSFUL")
	fmt.Fprintf(out, "  %s contains %s\n", cfg.StartPath, strutil.Count(int64(len(entries)), "entry"))
	return nil
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Long:  `Display the path to the configuration file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			path, err := configPath()
			if err != nil {
				return err
			}
			if cfgFile == "" {
				fmt.Fprintln(out, "Default configuration path:")
			} else {
				fmt.Fprintln(out, "Configuration path (from --config flag):")
			}
			fmt.Fprintf(out, "  %s\n", path)

			if _, err := os.Stat(path); os.IsNotExist(err) {
				fmt.Fprintln(out, "\nFile does not exist. Run 'kms-fsnav config init' to create it.")
			} else {
				fmt.Fprintln(out, "\nFile exists.")
			}
			return nil
		},
	}

	return cmd
}
