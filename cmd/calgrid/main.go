package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"calgrid/internal/config"
	"calgrid/internal/dateutil"
	appLog "calgrid/internal/log"
	"calgrid/internal/model"
	"calgrid/internal/view"
	"calgrid/internal/web"
)

const version = "0.1.0"

func main() {
	if err := rootCmd().Execute(); err != nil {
		appLog.Error("command failed", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "calgrid",
		Short:        "Calendar date-range and event-layout engine",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "./config.yaml", "Path to config file")

	root.AddCommand(serveCmd(&configPath))
	root.AddCommand(gridCmd(&configPath))
	root.AddCommand(versionCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "calgrid "+version)
		},
	}
}

func serveCmd(configPath *string) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the grid API and mock datasets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if listen != "" {
				cfg.Listen = listen
			}
			appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))

			appLog.Info("effective config",
				"listen", cfg.Listen,
				"timezone", cfg.Timezone,
				"week_start", cfg.WeekStart,
				"default_view", cfg.DefaultView,
				"overflow_cap", cfg.OverflowCap,
				"static_events", len(cfg.Events),
				"ics_count", len(cfg.ICS),
				"remote", cfg.Remote != nil,
				"refresh", cfg.RefreshCron,
			)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				sig := <-sigCh
				appLog.Info("signal received, shutting down", "signal", sig.String())
				cancel()
			}()

			server := web.NewServer(cfg)

			// Background refresh keeps the remote set warm between
			// navigations.
			var c *cron.Cron
			if cfg.RefreshCron != "" && server.Controller() != nil {
				c = cron.New()
				_, err := c.AddFunc(cfg.RefreshCron, func() {
					refreshCtx, done := context.WithTimeout(ctx, time.Minute)
					defer done()
					server.RefreshRemote(refreshCtx, server.DefaultRange())
				})
				if err != nil {
					return fmt.Errorf("bad refresh schedule %q: %w", cfg.RefreshCron, err)
				}
				c.Start()
				defer c.Stop()
			}

			httpServer := &http.Server{Addr: cfg.Listen, Handler: server.Handler()}
			errCh := make(chan error, 1)
			go func() {
				appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
				errCh <- httpServer.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
				defer done()
				if err := httpServer.Shutdown(shutdownCtx); err != nil {
					appLog.Error("shutdown failed", err)
				}
				appLog.Info("calgrid exiting")
				return nil
			}
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	return cmd
}

func gridCmd(configPath *string) *cobra.Command {
	var (
		viewParam string
		anchorKey string
	)

	cmd := &cobra.Command{
		Use:   "grid",
		Short: "Print the resolved grid for a view and anchor as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if viewParam == "" {
				viewParam = cfg.DefaultView
			}
			mode, err := model.ParseViewMode(viewParam)
			if err != nil {
				return err
			}

			anchor := time.Now()
			if anchorKey != "" {
				anchor, err = dateutil.ParseDateKey(anchorKey)
				if err != nil {
					return err
				}
			}

			r := view.NewResolver(model.ParseWeekStart(cfg.WeekStart))
			out := struct {
				View   string             `json:"view"`
				Title  string             `json:"title"`
				Range  model.DateInterval `json:"range"`
				Cells  []model.GridCell   `json:"cells"`
				Weeks  int                `json:"weeks"`
				Anchor string             `json:"anchor"`
			}{
				View:   mode.String(),
				Title:  r.Title(mode, anchor),
				Range:  r.Range(mode, anchor),
				Cells:  r.Grid(mode, anchor),
				Anchor: dateutil.FormatDateKey(anchor),
			}
			out.Weeks = len(out.Cells) / 7

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().StringVar(&viewParam, "view", "", "View mode: month, week, or day")
	cmd.Flags().StringVar(&anchorKey, "anchor", "", "Anchor date (YYYY-MM-DD); defaults to today")
	return cmd
}
