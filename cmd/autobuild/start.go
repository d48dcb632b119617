package main

import (
	"strings"

	"github.com/spf13/cobra"
)

func startCmd() *cobra.Command {
	var databaseURL string
	cmd := &cobra.Command{
		Use:          `start "<goal>"`,
		Short:        "Start a new task in the project directory",
		Long:         "Start a new task. The agent plans, writes code, runs checks and stops when it signals completion or runs out of iterations.",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := newRunner(cmd.Context(), workDir, databaseURL, false)
			if err != nil {
				return err
			}
			defer r.Close()

			res, err := r.start(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return report(res)
		},
	}
	cmd.Flags().StringVar(&databaseURL, "database-url", "", "SQLite database the project uses (file: or sqlite: URL)")
	return cmd
}
