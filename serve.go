package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sawzhang/daily-tech-digest/digest"
	"github.com/sawzhang/daily-tech-digest/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the run API, health and metrics over HTTP",
	Long: `Serve exposes /healthz, /metrics and the run API (GET /api/runs,
GET /api/runs/{id}, POST /api/runs to trigger a run). With --schedule the
daily schedule runs in the same process; scheduled and triggered runs never
overlap.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = cfg.ServerAddr
		}
		withSchedule, _ := cmd.Flags().GetBool("schedule")
		noPublish, _ := cmd.Flags().GetBool("no-publish")

		a, err := buildApp(cfg, "")
		if err != nil {
			return err
		}
		defer a.Close()

		srv, err := server.New(server.Options{
			Runner:     a.runner,
			Runs:       a.ledger,
			Metrics:    a.metrics,
			Logger:     logger,
			Publish:    !noPublish,
			RunTimeout: cfg.LLM.Timeout + 5*time.Minute,
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if withSchedule {
			sched, err := digest.NewScheduler(cfg.Schedule, dailyJob(a.runner, !noPublish), logger)
			if err != nil {
				return err
			}
			schedDone := make(chan struct{})
			go func() {
				defer close(schedDone)
				sched.Run(ctx)
			}()
			defer func() {
				stop()
				<-schedDone
			}()
		}

		httpSrv := &http.Server{Addr: addr, Handler: srv.Routes(), ReadHeaderTimeout: 10 * time.Second}
		errCh := make(chan error, 1)
		go func() {
			logger.Printf("Starting web server on %s", addr)
			errCh <- httpSrv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				logger.Printf("[WARN] http shutdown: %v", err)
			}
		}
		logger.Printf("waiting for in-flight runs")
		srv.Wait()
		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "http listen address (overrides server_addr)")
	serveCmd.Flags().Bool("schedule", false, "also run the daily schedule")
	serveCmd.Flags().Bool("no-publish", false, "triggered and scheduled runs generate only")

	rootCmd.AddCommand(serveCmd)
}
