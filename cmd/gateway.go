package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"zeta/pkg/channel"
	"zeta/pkg/channel/telegram"
	"zeta/pkg/config"
	"zeta/pkg/gateway"
)

const telegramChannelName = "telegram"

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Run channel gateway mode",
	Long:  "Runs Zeta as a channel gateway with health and readiness endpoints.",
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = args

		cfg, log, err := loadRuntime("cmd.gateway")
		if err != nil {
			return err
		}

		adapters, err := enabledAdapters(cfg, log)
		if err != nil {
			log.Error("Gateway configuration invalid", "error", err)
			return err
		}

		application, err := buildApp(cfg, log)
		if err != nil {
			return err
		}

		runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		application.startBackground(runCtx, true)

		svc, err := gateway.NewService(gateway.Options{
			Processor:  application.orchestrator,
			Health:     application.client,
			Adapters:   adapters,
			StatusAddr: listenAddr(cfg.Server),
			Logger:     log,
		})
		if err != nil {
			log.Error("Failed to initialize gateway service", "error", err)
			return err
		}

		info := application.client.ModelInfo()
		log.Info("Gateway started", "channels", enabledChannelNames(adapters), "provider", info.Provider, "model", info.Model)
		if err := svc.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Gateway runtime failed", "error", err)
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(gatewayCmd)
}

func enabledAdapters(cfg *config.Config, log *slog.Logger) ([]channel.Adapter, error) {
	adapters := make([]channel.Adapter, 0, 1)

	if cfg.Channels.Telegram.Enabled {
		adapter, err := telegram.NewAdapter(cfg.Channels.Telegram, log)
		if err != nil {
			return nil, fmt.Errorf("configure %s channel: %w", telegramChannelName, err)
		}
		adapters = append(adapters, adapter)
	}

	if len(adapters) == 0 {
		return nil, errors.New("no channels are enabled")
	}

	return adapters, nil
}

func enabledChannelNames(adapters []channel.Adapter) string {
	names := make([]string, 0, len(adapters))
	for _, adapter := range adapters {
		names = append(names, adapter.Name())
	}

	return strings.Join(names, ",")
}

func listenAddr(cfg config.ServerConfig) string {
	return net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
}
