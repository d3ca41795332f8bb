// Package main provides the quickpen worker entry point.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/quickpen-app/quickpen/internal/config"
	"github.com/quickpen-app/quickpen/internal/watcher"
	"github.com/quickpen-app/quickpen/internal/worker"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	port := flag.Int("port", 0, "HTTP port (default: from config)")
	dataDir := flag.String("data-dir", "", "Data directory (default: ~/.quickpen)")
	timezone := flag.String("timezone", "", "Fallback IANA timezone for streaks (default: from config)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})

	if *dataDir != "" {
		config.SetDataDir(*dataDir)
	}
	if err := config.EnsureDataDir(); err != nil {
		log.Fatal().Err(err).Msg("Failed to create data directory")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load config, using defaults")
		cfg = config.Default()
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *timezone != "" {
		cfg.Timezone = *timezone
	}
	if *debug {
		cfg.Debug = true
	}
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	config.Set(cfg)

	svc, err := worker.NewService(Version, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize service")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfgWatcher, err := watcher.New(config.ConfigPath(), func() {
		if _, err := config.Reload(); err != nil {
			log.Warn().Err(err).Msg("Config reload failed")
		}
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create config watcher")
	} else if err := cfgWatcher.Start(); err != nil {
		log.Warn().Err(err).Msg("Failed to start config watcher")
	} else {
		defer cfgWatcher.Stop()
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return svc.Run()
	})

	g.Go(func() error {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-sigCh:
			log.Info().Str("signal", sig.String()).Msg("Shutting down")
			svc.Shutdown()
			cancel()
			return nil
		case <-ctx.Done():
			return nil
		}
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("Worker exited with error")
	}
}
