package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ChamsBouzaiene/autobuild/internal/config"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the user configuration",
	}
	cmd.AddCommand(configInitCmd(), configShowCmd())
	return cmd
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:          "init",
		Short:        "Write the effective configuration to the user config file",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := config.NewManager()
			if err != nil {
				return err
			}
			if m.Exists() && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", m.GetConfigPath())
			}
			cfg, err := loadConfig(workDir)
			if err != nil {
				return err
			}
			if err := m.Save(cfg); err != nil {
				return err
			}
			fmt.Fprintln(os.Stderr, "wrote", m.GetConfigPath())
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "show",
		Short:        "Print the effective configuration with the API key masked",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(workDir)
			if err != nil {
				return err
			}
			if cfg.LLM.APIKey != "" {
				cfg.LLM.APIKey = "****"
			}
			path, _ := config.ResolvePath(workDir, cfgFile)
			if path == "" {
				path = "(defaults and environment only)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "source: %s\n", path)
			fmt.Fprintf(cmd.OutOrStdout(), "provider: %s\nmodel: %s\n", cfg.LLM.Provider, cfg.LLM.Model)
			fmt.Fprintf(cmd.OutOrStdout(), "api_key: %s\n", cfg.LLM.APIKey)
			fmt.Fprintf(cmd.OutOrStdout(), "max_iterations: %d\nmax_retries: %d\nbase_delay: %s\n",
				cfg.Agent.MaxIterations, cfg.Retry.MaxRetries, cfg.Retry.BaseDelay)
			fmt.Fprintf(cmd.OutOrStdout(), "sandbox: %s\n", cfg.Sandbox.Mode)
			return nil
		},
	}
}
