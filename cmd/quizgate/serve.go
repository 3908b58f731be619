package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/quizgate"
	"github.com/unkn0wn-root/quizgate/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run the gateway",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg)
	},
}

func serve(ctx context.Context, cfg *config.Config) error {
	a, err := build(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if a.relay != nil {
		go func() {
			if err := a.relay.Run(ctx); err != nil {
				a.log.Error("realtime relay stopped", quizgate.Fields{"err": err})
			}
		}()
	}
	a.log.Info("gateway starting", quizgate.Fields{
		"addr":     cfg.Addr(),
		"version":  version,
		"local":    cfg.CacheLocal,
		"codec":    cfg.CacheCodec,
		"redis":    !cfg.RedisDisabled,
		"services": len(a.targets),
	})
	return a.server.Run(ctx)
}
