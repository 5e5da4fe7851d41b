// Package cli provides configuration management commands.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rescale/webup/internal/api"
	"github.com/rescale/webup/internal/config"
	inthttp "github.com/rescale/webup/internal/http"
	"github.com/rescale/webup/internal/pathutil"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage webup configuration",
		Long: `Configuration management commands for webup.

Commands:
  init  - Interactive configuration setup
  show  - Display current configuration
  test  - Test the connection to the uploader
  path  - Show configuration file path`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigTestCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

// configPath returns --config or the default location
func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	return config.DefaultConfigPath()
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long: `Interactive configuration setup for webup.

The configuration will be saved to ~/.config/webup/config

Use --force to overwrite existing configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if !force {
				if _, err := os.Stat(path); err == nil {
					fmt.Fprintf(out, "Configuration already exists at: %s\n", path)
					fmt.Fprintln(out, "Use --force to overwrite or run 'config show' to view current config.")
					return nil
				}
			}

			cfg, err := promptConfig(bufio.NewReader(cmd.InOrStdin()), out)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if err := config.Save(cfg, path); err != nil {
				return err
			}

			GetLogger().Info().Str("path", path).Msg("Configuration saved")
			fmt.Fprintf(out, "\n✓ Configuration saved to %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration")

	return cmd
}

// promptConfig asks for each setting, offering the default in brackets
func promptConfig(reader *bufio.Reader, out io.Writer) (*config.Config, error) {
	cfg := config.NewConfig()

	ask := func(label, def string) (string, error) {
		if def != "" {
			fmt.Fprintf(out, "%s [%s]: ", label, def)
		} else {
			fmt.Fprintf(out, "%s: ", label)
		}
		input, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return "", err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			return def, nil
		}
		return input, nil
	}

	fmt.Fprintln(out, "webup Configuration Setup")
	fmt.Fprintln(out, "=========================")
	fmt.Fprintln(out)

	var err error
	if cfg.ServerURL, err = ask("Uploader URL", cfg.ServerURL); err != nil {
		return nil, err
	}
	if cfg.Username, err = ask("Username (blank if none)", ""); err != nil {
		return nil, err
	}
	if cfg.Username != "" {
		if cfg.Password, err = ask("Password", ""); err != nil {
			return nil, err
		}
	}

	fmt.Fprintln(out)
	if cfg.ProxyMode, err = ask("Proxy mode (no-proxy, system, basic, ntlm)", cfg.ProxyMode); err != nil {
		return nil, err
	}
	if cfg.ProxyMode == "basic" || cfg.ProxyMode == "ntlm" {
		if cfg.ProxyHost, err = ask("Proxy host", ""); err != nil {
			return nil, err
		}
		port, err := ask("Proxy port", strconv.Itoa(cfg.ProxyPort))
		if err != nil {
			return nil, err
		}
		if v, perr := strconv.Atoi(port); perr == nil {
			cfg.ProxyPort = v
		}
		if cfg.ProxyUser, err = ask("Proxy user (blank if none)", ""); err != nil {
			return nil, err
		}
		if inthttp.NeedsProxyPassword(cfg) {
			if cfg.ProxyPassword, err = ask("Proxy password", ""); err != nil {
				return nil, err
			}
		}
	}

	fmt.Fprintln(out)
	notifications, err := ask("Desktop notifications? [y/N]", "n")
	if err != nil {
		return nil, err
	}
	answer := strings.ToLower(notifications)
	cfg.NotificationsEnabled = answer == "y" || answer == "yes"

	return cfg, nil
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the current configuration settings.

This command shows the merged configuration from:
  1. Configuration file (~/.config/webup/config)
  2. Environment variables (WEBUP_SERVER, WEBUP_USERNAME, WEBUP_PASSWORD)
  3. Command-line flags (--server, --proxy-mode, --log-file)

Priority: flags > environment > config file > defaults`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			cfg = cfg.Redacted()
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, "Current Configuration")
			fmt.Fprintln(out, "=====================")
			fmt.Fprintln(out)

			fmt.Fprintln(out, "Server:")
			fmt.Fprintf(out, "  URL:      %s\n", cfg.ServerURL)
			if cfg.Username != "" {
				fmt.Fprintf(out, "  Username: %s\n", cfg.Username)
				fmt.Fprintf(out, "  Password: %s\n", cfg.Password)
			}
			fmt.Fprintln(out)

			fmt.Fprintln(out, "Proxy Settings:")
			fmt.Fprintf(out, "  Proxy Mode: %s\n", cfg.ProxyMode)
			if cfg.ProxyHost != "" {
				fmt.Fprintf(out, "  Proxy Host: %s\n", cfg.ProxyHost)
				fmt.Fprintf(out, "  Proxy Port: %d\n", cfg.ProxyPort)
			}
			fmt.Fprintln(out)

			fmt.Fprintln(out, "Other Settings:")
			fmt.Fprintf(out, "  Log Level:           %s\n", cfg.LogLevel)
			if cfg.LogFile != "" {
				fmt.Fprintf(out, "  Log File:            %s\n", config.ResolveLogFile(cfg.LogFile))
			}
			fmt.Fprintf(out, "  Notifications:       %t\n", cfg.NotificationsEnabled)
			fmt.Fprintf(out, "  Refresh On Complete: %t\n", cfg.RefreshOnComplete)
			fmt.Fprintln(out)

			fmt.Fprintf(out, "Configuration file: %s\n", path)
			if _, err := os.Stat(path); os.IsNotExist(err) {
				fmt.Fprintln(out, "  (file does not exist - using defaults)")
			}
			return nil
		},
	}
}

// newConfigTestCmd creates the 'config test' command.
func newConfigTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Test the connection to the uploader",
		Long: `List the root folder with the current configuration.

Use this to verify the server URL, credentials and proxy settings.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := GetLogger()
			out := cmd.OutOrStdout()

			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			client, err := api.NewClient(cfg, api.WithLogger(log))
			if err != nil {
				return fmt.Errorf("failed to create API client: %w", err)
			}

			fmt.Fprintf(out, "Server: %s\n", client.BaseURL())

			ctx, cancel := context.WithTimeout(GetContext(cmd), 10*time.Second)
			defer cancel()

			entries, err := client.List(ctx, pathutil.Root)
			if err != nil {
				log.Error().Err(err).Msg("Connection test failed")
				fmt.Fprintln(out, "✗ Connection FAILED")
				fmt.Fprintf(out, "  Error: %v\n", err)
				return fmt.Errorf("connection test failed")
			}

			log.Info().Msg("Connection test successful")
			fmt.Fprintln(out, "✓ Connection SUCCESSFUL")
			fmt.Fprintf(out, "  %d entries in the root folder\n", len(entries))
			return nil
		},
	}
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, path)

			if info, err := os.Stat(path); err == nil {
				fmt.Fprintf(out, "Modified: %s\n", info.ModTime().Format("2006-01-02 15:04:05"))
			} else {
				fmt.Fprintln(out, "Status: file does not exist (create it with: webup config init)")
			}
			return nil
		},
	}
}
