package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ChamsBouzaiene/autobuild/internal/session"
)

func continueCmd() *cobra.Command {
	var databaseURL string
	cmd := &cobra.Command{
		Use:   `continue "<message>"`,
		Short: "Resume the previous task in this project",
		Long: "Resume work in a new process. The saved progress summary seeds the conversation, " +
			"and the previous goal is restated when a session record exists.",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			message := strings.Join(args, " ")
			prev := previousSession(workDir)
			goal := message
			if prev != nil {
				goal = resumeGoal(prev, message)
				if databaseURL == "" {
					databaseURL = prev.DatabaseURL
				}
			}

			r, err := newRunner(cmd.Context(), workDir, databaseURL, false)
			if err != nil {
				return err
			}
			defer r.Close()
			if prev != nil {
				r.record.BaseGoal = prev.OriginalGoal()
			}

			res, err := r.start(cmd.Context(), goal)
			if err != nil {
				return err
			}
			return report(res)
		},
	}
	cmd.Flags().StringVar(&databaseURL, "database-url", "", "SQLite database the project uses (defaults to the previous session's)")
	return cmd
}

// previousSession returns the latest recorded run in dir, or nil.
func previousSession(dir string) *session.Session {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil
	}
	store, err := session.NewDefaultStore()
	if err != nil {
		return nil
	}
	prev, err := store.Latest(abs)
	switch {
	case err == nil:
		return prev
	case errors.Is(err, session.ErrNotFound):
		log.Info().Msg("No previous session for this project; starting from the message alone")
	default:
		log.Warn().Err(err).Msg("failed to load previous session")
	}
	return nil
}

func resumeGoal(prev *session.Session, message string) string {
	return fmt.Sprintf("%s\n\nFollow-up request: %s", prev.OriginalGoal(), message)
}
