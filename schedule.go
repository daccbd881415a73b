package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sawzhang/daily-tech-digest/digest"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the digest every day on a schedule",
	Long: `Schedule keeps running and fires a digest run on a cron schedule. --time
gives a daily wall-clock time, --cron a full five-field expression; without
either the schedule from the config file is used (default 08:00 daily). A
failed run is logged and the schedule continues.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		spec, err := scheduleSpec(cmd)
		if err != nil {
			return err
		}
		noPublish, _ := cmd.Flags().GetBool("no-publish")

		a, err := buildApp(cfg, "")
		if err != nil {
			return err
		}
		defer a.Close()

		sched, err := digest.NewScheduler(spec, dailyJob(a.runner, !noPublish), logger)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

// scheduleSpec resolves --cron, then --time, then the configured schedule.
func scheduleSpec(cmd *cobra.Command) (string, error) {
	if spec, _ := cmd.Flags().GetString("cron"); spec != "" {
		return spec, nil
	}
	if cmd.Flags().Changed("time") {
		clock, _ := cmd.Flags().GetString("time")
		return digest.ClockToCron(clock)
	}
	return cfg.Schedule, nil
}

func dailyJob(r *digest.Runner, publish bool) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		_, err := r.Run(ctx, digest.RunOptions{Publish: publish})
		return err
	}
}

func init() {
	scheduleCmd.Flags().String("cron", "", `cron expression, e.g. "0 8 * * *"`)
	scheduleCmd.Flags().String("time", "08:00", "daily run time (HH:MM)")
	scheduleCmd.Flags().Bool("no-publish", false, "generate only, do not publish")

	rootCmd.AddCommand(scheduleCmd)
}
