package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ChamsBouzaiene/autobuild/internal/engine"
)

func replCmd() *cobra.Command {
	var databaseURL string
	cmd := &cobra.Command{
		Use:          "repl",
		Short:        "Interactive session: the first line starts a task, later lines continue it",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			r, err := newRunner(ctx, workDir, databaseURL, true)
			if err != nil {
				return err
			}
			defer r.Close()

			log.Info().Str("dir", r.rt.WorkDir).Msg("Agent ready. Describe what to build; Ctrl-D exits.")

			started := false
			s := bufio.NewScanner(os.Stdin)
			for {
				fmt.Fprint(os.Stderr, "you> ")
				if !s.Scan() {
					break
				}
				line := strings.TrimSpace(s.Text())
				if line == "" {
					continue
				}

				var res engine.Result
				if !started {
					res, err = r.start(ctx, line)
					started = err == nil
				} else {
					res, err = r.follow(ctx, line)
				}
				if err != nil {
					log.Error().Err(err).Msg("run failed")
				} else if err := report(res); err != nil {
					log.Warn().Err(err).Msg("run ended early")
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				fmt.Fprintln(os.Stderr)
			}
			return s.Err()
		},
	}
	cmd.Flags().StringVar(&databaseURL, "database-url", "", "SQLite database the project uses (file: or sqlite: URL)")
	return cmd
}
