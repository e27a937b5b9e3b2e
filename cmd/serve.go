package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"zeta/pkg/api"
	"zeta/pkg/gateway"
	"zeta/pkg/store"
	"zeta/pkg/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long:  "Runs the Zeta HTTP API with conversation storage. Enabled channels run alongside it and share the same pipeline.",
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = args

		cfg, log, err := loadRuntime("cmd.serve")
		if err != nil {
			return err
		}

		runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		telemetry.Version = Version
		shutdownTelemetry, err := telemetry.Init(runCtx, cfg.Telemetry)
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTelemetry(ctx); err != nil {
				log.Warn("Telemetry shutdown failed", "error", err)
			}
		}()

		application, err := buildApp(cfg, log)
		if err != nil {
			return err
		}
		application.startBackground(runCtx, true)

		opts := api.Options{
			Processor:   application.orchestrator,
			Tools:       application.registry,
			Model:       application.client,
			Safety:      application.gate,
			CORSOrigins: cfg.Server.CORSOrigins,
			TrustProxy:  cfg.Server.TrustProxy,
		}
		if path := strings.TrimSpace(cfg.Storage.Path); path != "" {
			conversations, err := store.Open(path)
			if err != nil {
				return fmt.Errorf("open conversation store: %w", err)
			}
			defer conversations.Close()
			opts.Store = conversations
		} else {
			log.Warn("Conversation storage disabled")
		}

		server, err := api.New(opts)
		if err != nil {
			return fmt.Errorf("initialize http api: %w", err)
		}

		group, groupCtx := errgroup.WithContext(runCtx)
		group.Go(func() error {
			return server.Run(groupCtx, listenAddr(cfg.Server))
		})

		if cfg.Channels.Telegram.Enabled {
			adapters, err := enabledAdapters(cfg, log)
			if err != nil {
				return err
			}
			// The API already serves /health and /ready.
			svc, err := gateway.NewService(gateway.Options{
				Processor: application.orchestrator,
				Health:    application.client,
				Adapters:  adapters,
				Logger:    log,
			})
			if err != nil {
				return fmt.Errorf("initialize gateway service: %w", err)
			}
			group.Go(func() error {
				return svc.Run(groupCtx)
			})
			log.Info("Channels attached", "channels", enabledChannelNames(adapters))
		}

		if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Server stopped", "error", err)
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
