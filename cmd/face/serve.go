package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-reachy-face/internal/config"
	"github.com/teslashibe/go-reachy-face/internal/log"
	"github.com/teslashibe/go-reachy-face/pkg/engine"
	"github.com/teslashibe/go-reachy-face/pkg/expression"
	"github.com/teslashibe/go-reachy-face/pkg/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the engine with its HTTP and websocket API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if port, _ := cmd.Flags().GetString("port"); port != "" {
			cfg.Server.Port = port
		}
		if cmd.Flags().Changed("idle") {
			cfg.Idle.Enabled, _ = cmd.Flags().GetBool("idle")
		}

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()
		return serve(ctx, cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "", "Port to listen on (overrides server.port)")
	serveCmd.Flags().Bool("idle", true, "Start with idle blinks and glances enabled")
}

// loadRegistry returns the built-in expressions plus any from dir. With
// watch set, dir is reloaded on change until the returned watcher is closed.
func loadRegistry(dir string, watch bool) (*expression.Registry, *expression.Watcher, error) {
	registry := expression.NewRegistry()
	if err := registry.LoadBuiltIn(); err != nil {
		return nil, nil, err
	}
	if dir == "" {
		return registry, nil, nil
	}
	if watch {
		w, err := expression.NewWatcher(registry, dir)
		if err != nil {
			return nil, nil, err
		}
		return registry, w, nil
	}
	n, err := registry.LoadDirectory(dir)
	if err != nil {
		return nil, nil, err
	}
	log.Info("loaded expressions", "dir", dir, "count", n)
	return registry, nil, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	registry, watcher, err := loadRegistry(cfg.Expressions.Dir, cfg.Expressions.Watch)
	if err != nil {
		return err
	}
	if watcher != nil {
		defer watcher.Close()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := engine.NewMetrics(reg)
	bus := engine.NewBus(metrics)
	defer bus.Close()

	queue := engine.NewQueue()
	ctrl, err := engine.NewController(queue, engine.Config{
		Width:        float64(cfg.Display.Width),
		Height:       float64(cfg.Display.Height),
		PollInterval: cfg.Engine.PollInterval,
		Speed:        cfg.AnimationSpeed,
		Metrics:      metrics,
		Bus:          bus,
	})
	if err != nil {
		return err
	}

	idle := engine.NewIdleScheduler(queue, engine.IdleConfig{
		IntervalMin:   cfg.Idle.IntervalMin,
		IntervalMax:   cfg.Idle.IntervalMax,
		LookAroundMin: cfg.Idle.LookAroundMin,
		LookAroundMax: cfg.Idle.LookAroundMax,
		Metrics:       metrics,
		Bus:           bus,
	})
	idle.SetEnabled(cfg.Idle.Enabled)

	// Streaming faster than the display refreshes only repeats frames.
	stream := max(cfg.StreamInterval(), cfg.FrameInterval())

	srv, err := web.NewServer(web.Options{
		Port:           cfg.Server.Port,
		Controller:     ctrl,
		Registry:       registry,
		Idle:           idle,
		Gatherer:       reg,
		StreamInterval: stream,
		EventBuffer:    cfg.Engine.EventBuffer,
	})
	if err != nil {
		return err
	}

	log.Info("face engine starting",
		"display", []int{cfg.Display.Width, cfg.Display.Height},
		"expressions", registry.Count(),
		"idle", cfg.Idle.Enabled,
		"speed", cfg.AnimationSpeed,
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errc := make(chan error, 2)
	go func() { errc <- ctrl.Run(ctx) }()
	go idle.Run(ctx)
	go func() { errc <- srv.Run(ctx) }()

	err = <-errc
	cancel()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if err == nil {
		// Wait for the other runner.
		if err2 := <-errc; err2 != nil && !errors.Is(err2, context.Canceled) {
			err = err2
		}
	}
	log.Info("face engine stopped")
	return err
}
