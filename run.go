package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sawzhang/daily-tech-digest/digest"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Generate today's digest once and publish it",
	Long: `Run generates the digest for one date, saves tech_digest_<date>.md and
.html under output_dir and, unless --no-publish is given, publishes it to the
WeChat Official Account. Publishing is skipped with a warning when no WeChat
credentials are configured.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		date, _ := cmd.Flags().GetString("date")
		noPublish, _ := cmd.Flags().GetBool("no-publish")
		test, _ := cmd.Flags().GetBool("test")
		answerFile, _ := cmd.Flags().GetString("answer-file")

		opts := digest.RunOptions{Publish: !noPublish && !test}
		if date != "" {
			d, err := time.ParseInLocation("2006-01-02", date, time.Local)
			if err != nil {
				return fmt.Errorf("invalid --date %q, want YYYY-MM-DD", date)
			}
			opts.Date = d
		}

		a, err := buildApp(cfg, answerFile)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		rec, err := a.runner.Run(ctx, opts)
		if rec != nil {
			printRecord(cmd, rec)
		}
		return err
	},
}

func printRecord(cmd *cobra.Command, rec *digest.Record) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run:      %s\n", rec.ID)
	fmt.Fprintf(out, "date:     %s\n", rec.Date)
	fmt.Fprintf(out, "status:   %s\n", rec.Status)
	for _, p := range rec.Paths() {
		fmt.Fprintf(out, "artifact: %s\n", p)
	}
	if rec.DraftID != "" {
		fmt.Fprintf(out, "draft:    %s\n", rec.DraftID)
	}
	if rec.PublishID != "" {
		fmt.Fprintf(out, "publish:  %s\n", rec.PublishID)
	}
}

func init() {
	runCmd.Flags().String("date", "", "digest date (YYYY-MM-DD, default today)")
	runCmd.Flags().Bool("no-publish", false, "generate only, do not publish")
	runCmd.Flags().Bool("test", false, "alias for --no-publish")
	runCmd.Flags().String("answer-file", "", "use a saved raw model answer instead of calling the model")

	rootCmd.AddCommand(runCmd)
}
