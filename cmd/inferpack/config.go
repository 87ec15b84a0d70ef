// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"

	"inferpack-cli/internal/config"

	"github.com/spf13/cobra"
)

// configCmd is the `inferpack config` command tree.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage inferpack configuration",
	Long: `Manage inferpack configuration.

Configuration is stored in:
  - Linux: ~/.config/inferpack/config.cue
  - macOS: ~/Library/Application Support/inferpack/config.cue
  - Windows: %APPDATA%\inferpack\config.cue

Every key can also be overridden via environment variables with the
INFERPACK_ prefix (e.g., INFERPACK_FETCH_ASSETS=false).`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

func init() {
	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return showConfig(cmd.Context())
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		RunE: func(_ *cobra.Command, _ []string) error {
			return initConfigFile()
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(_ *cobra.Command, _ []string) error {
			return showConfigPath()
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output raw configuration as CUE",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Print(config.GenerateCUE(cfg))
			return nil
		},
	})
}

func showConfig(ctx context.Context) error {
	cfg, resolvedPath, err := config.LoadWithOptions(ctx, config.LoadOptions{ConfigFilePath: cfgFile})
	if err != nil {
		return err
	}

	keyStyle := CmdStyle
	valueStyle := SuccessStyle

	fmt.Println(TitleStyle.Render("Current Configuration"))
	fmt.Println()

	if resolvedPath != "" {
		fmt.Printf("%s: %s\n", keyStyle.Render("Config file"), resolvedPath)
	} else {
		fmt.Printf("%s: %s\n", keyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}
	fmt.Println()

	fmt.Printf("%s: %s\n", keyStyle.Render("bind_host"), valueStyle.Render(cfg.BindHost))
	fmt.Printf("%s: %s\n", keyStyle.Render("bind_port"), valueStyle.Render(fmt.Sprintf("%d", cfg.BindPort)))
	fmt.Printf("%s: %s\n", keyStyle.Render("fetch_assets"), valueStyle.Render(fmt.Sprintf("%v", cfg.FetchAssets)))
	if cfg.CredentialFile != "" {
		fmt.Printf("%s: %s\n", keyStyle.Render("credential_file"), valueStyle.Render(cfg.CredentialFile))
	}
	if cfg.CacheDir != "" {
		fmt.Printf("%s: %s\n", keyStyle.Render("cache_dir"), valueStyle.Render(string(cfg.CacheDir)))
	} else if cacheDir, dirErr := config.DefaultCacheDir(); dirErr == nil {
		fmt.Printf("%s: %s %s\n", keyStyle.Render("cache_dir"), valueStyle.Render(cacheDir), SubtitleStyle.Render("(default)"))
	}

	fmt.Println()
	fmt.Printf("%s:\n", keyStyle.Render("resolver"))
	if cfg.Resolver.Binary != "" {
		fmt.Printf("  binary: %s\n", valueStyle.Render(string(cfg.Resolver.Binary)))
	} else {
		fmt.Printf("  binary: %s\n", SubtitleStyle.Render("(auto-detect)"))
	}
	fmt.Printf("  no_cache: %s\n", valueStyle.Render(fmt.Sprintf("%v", cfg.Resolver.NoCache)))

	fmt.Println()
	fmt.Printf("%s:\n", keyStyle.Render("system"))
	fmt.Printf("  enabled: %s\n", valueStyle.Render(fmt.Sprintf("%v", cfg.System.Enabled)))
	if cfg.System.Binary != "" {
		fmt.Printf("  binary: %s\n", valueStyle.Render(string(cfg.System.Binary)))
	}

	fmt.Println()
	fmt.Printf("%s:\n", keyStyle.Render("probe"))
	fmt.Printf("  path: %s\n", valueStyle.Render(cfg.Probe.Path))
	fmt.Printf("  interval: %s\n", valueStyle.Render(cfg.Probe.Interval))
	fmt.Printf("  timeout: %s\n", valueStyle.Render(cfg.Probe.Timeout))
	fmt.Printf("  grace: %s\n", valueStyle.Render(cfg.Probe.Grace))
	fmt.Printf("  failure_threshold: %s\n", valueStyle.Render(fmt.Sprintf("%d", cfg.Probe.FailureThreshold)))

	fmt.Println()
	fmt.Printf("%s:\n", keyStyle.Render("ui"))
	fmt.Printf("  verbose: %s\n", valueStyle.Render(fmt.Sprintf("%v", cfg.UI.Verbose)))

	return nil
}

func initConfigFile() error {
	cfgDir, err := config.ConfigDir()
	if err != nil {
		return err
	}

	if err := config.CreateDefaultConfig(); err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}

	fmt.Printf("%s Created default configuration at %s/config.cue\n", SuccessStyle.Render("✓"), cfgDir)
	return nil
}

func showConfigPath() error {
	cfgDir, err := config.ConfigDir()
	if err != nil {
		return err
	}

	fmt.Printf("Config directory: %s\n", cfgDir)
	fmt.Printf("Config file: %s/config.cue\n", cfgDir)

	if cacheDir, err := config.DefaultCacheDir(); err == nil {
		fmt.Printf("Cache directory: %s\n", cacheDir)
	}

	return nil
}
