package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ChamsBouzaiene/autobuild/internal/config"
	"github.com/ChamsBouzaiene/autobuild/internal/logging"
	"github.com/ChamsBouzaiene/autobuild/internal/providers"
)

var (
	cfgFile string
	workDir string
	events  string
	debug   bool
	v       = viper.New()
	rootCmd = &cobra.Command{
		Use:   "autobuild",
		Short: "autobuild is an autonomous coding agent that builds software from a goal",
	}
)

// Execute runs the root command.
func Execute() error {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file path (default: .agent/config.yaml, then the user config)")
	flags.StringVar(&workDir, "dir", ".", "project directory the agent works in")
	flags.BoolVar(&debug, "debug", false, "enable debug logging")
	flags.StringVar(&events, "events", "", `progress event stream on stdout: "json" for NDJSON`)
	flags.String("provider", "", fmt.Sprintf("LLM provider (%v)", providers.Supported()))
	flags.String("model", "", "model name (default depends on provider)")
	flags.Int("max-iterations", 0, "maximum model calls per run")
	flags.String("sandbox", "", "where commands run: docker, host or auto")

	for key, flag := range map[string]string{
		"llm.provider":         "provider",
		"llm.model":            "model",
		"agent.max_iterations": "max-iterations",
		"sandbox.mode":         "sandbox",
		"debug":                "debug",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("bind %s flag: %w", flag, err)
		}
	}

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		logging.Init(debug)
		if events != "" && events != "json" {
			return fmt.Errorf("unsupported --events value %q (want json)", events)
		}
		return nil
	}
	rootCmd.SilenceErrors = true
	rootCmd.AddCommand(startCmd())
	rootCmd.AddCommand(continueCmd())
	rootCmd.AddCommand(replCmd())
	rootCmd.AddCommand(sessionsCmd())
	rootCmd.AddCommand(configCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// loadConfig resolves flags, environment and config files for dir.
func loadConfig(dir string) (config.Config, error) {
	cfg, err := config.Load(v, dir, cfgFile)
	if err != nil {
		return config.Config{}, err
	}
	if cfg.Debug && !debug {
		logging.Init(true)
	}
	return cfg, nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
}
