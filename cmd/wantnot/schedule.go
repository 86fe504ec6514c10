package main

import (
	"fmt"

	"github.com/Veraticus/wantnot/internal/cli"
	"github.com/Veraticus/wantnot/internal/schedule"
	"github.com/spf13/cobra"
)

func scheduleCmd() *cobra.Command {
	var (
		spec  string
		limit int
		once  bool
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Auto-categorize every user's backlog on a cron schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if spec == "" {
				spec = cfg.Schedule.Cron
			}
			if _, err := schedule.Parse(spec); err != nil {
				return err
			}

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			runner := schedule.NewRunner(a.engine, a.store, limit, a.logger)
			if once {
				stats, err := runner.RunOnce(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.RenderStats(stats))
				return nil
			}
			return runner.Start(ctx, spec)
		},
	}

	cmd.Flags().StringVar(&spec, "cron", "", "cron expression (default: schedule.cron from config)")
	cmd.Flags().IntVar(&limit, "limit", 500, "maximum transactions per user and pass")
	cmd.Flags().BoolVar(&once, "once", false, "run a single pass and exit")
	return cmd
}
