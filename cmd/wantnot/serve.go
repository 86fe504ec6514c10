package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Veraticus/wantnot/internal/api"
	"github.com/Veraticus/wantnot/internal/schedule"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	var (
		addr         string
		withSchedule bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if addr == "" {
				addr = cfg.Server.Addr
			}

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			gin.SetMode(gin.ReleaseMode)
			router := api.NewServer(a.engine, a.store, a.logger).
				Router(api.Options{CORSOrigins: cfg.Server.CORSOrigins})

			srv := &http.Server{
				Addr:              addr,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			schedCtx, stopSchedule := context.WithCancel(ctx)
			schedDone := make(chan struct{})
			defer func() {
				stopSchedule()
				<-schedDone
			}()
			if withSchedule {
				runner := schedule.NewRunner(a.engine, a.store, 0, a.logger)
				go func() {
					defer close(schedDone)
					if err := runner.Start(schedCtx, cfg.Schedule.Cron); err != nil {
						slog.Error("scheduler stopped", "error", err)
					}
				}()
			} else {
				close(schedDone)
			}

			errCh := make(chan error, 1)
			go func() {
				slog.Info("HTTP API listening", "addr", addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("failed to shut down server: %w", err)
			}
			slog.Info("HTTP API stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: server.addr from config)")
	cmd.Flags().BoolVar(&withSchedule, "with-schedule", false, "also run scheduled auto-categorization")
	return cmd
}
