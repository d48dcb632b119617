package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ChamsBouzaiene/autobuild/internal/session"
)

func sessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "sessions",
		Short:        "List previous runs in the project directory",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := filepath.Abs(workDir)
			if err != nil {
				return err
			}
			store, err := session.NewDefaultStore()
			if err != nil {
				return err
			}
			metas, err := store.List(dir)
			if err != nil {
				return err
			}
			if len(metas) == 0 {
				fmt.Fprintln(os.Stderr, "no sessions for", dir)
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tUPDATED\tSTATUS\tGOAL")
			for _, m := range metas {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.ID, m.UpdatedAt.Format(time.DateTime), m.Status, firstLine(m.Goal, 60))
			}
			return tw.Flush()
		},
	}
}

func firstLine(s string, n int) string {
	for i, r := range s {
		if r == '\n' {
			s = s[:i]
			break
		}
	}
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}
