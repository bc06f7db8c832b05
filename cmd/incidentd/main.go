// Package main provides the incidentd daemon entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm/logger"

	"github.com/civicroute/incidentd/internal/codec"
	"github.com/civicroute/incidentd/internal/config"
	storedb "github.com/civicroute/incidentd/internal/db/gorm"
	"github.com/civicroute/incidentd/internal/distance"
	"github.com/civicroute/incidentd/internal/engine"
	"github.com/civicroute/incidentd/internal/ops"
	"github.com/civicroute/incidentd/internal/scheduler"
	"github.com/civicroute/incidentd/internal/watcher"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "incidentd.yaml", "Path to config file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	once := flag.Bool("once", false, "Run one clustering cycle and exit")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})

	cfg, err := config.Load(*configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Fatal().Err(err).Msg("Failed to load config")
		}
		log.Warn().Str("path", *configPath).Msg("Config file not found, using defaults")
		cfg = config.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("Shutting down incidentd")
		cancel()
	}()

	gormLevel := logger.Warn
	if *debug {
		gormLevel = logger.Info
	}
	store, err := storedb.NewStore(storedb.Config{
		Driver:   cfg.Database.Driver,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
		Path:     cfg.Database.Path,
		MaxConns: cfg.Database.MaxConns,
		LogLevel: gormLevel,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer store.Close()

	incidentStore := storedb.NewIncidentStore(store)
	eng := engine.New(incidentStore, engineConfig(cfg), log.Logger)
	sched := scheduler.New(eng, scheduler.Config{
		PollInterval: cfg.Scheduler.PollInterval,
		ErrorBackoff: cfg.Scheduler.ErrorBackoff,
	}, log.Logger)

	if *once {
		stats, err := sched.RunOnce(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Clustering cycle failed")
		}
		log.Info().
			Int("merged", stats.Merged).
			Int("new_incidents", stats.NewIncidents).
			Msg("Single cycle complete")
		return
	}

	startConfigWatcher(*configPath, cancel)

	log.Info().
		Str("version", Version).
		Str("driver", cfg.Database.Driver).
		Dur("poll_interval", cfg.Scheduler.PollInterval).
		Msg("Starting incidentd")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sched.Run(gctx)
	})
	if cfg.Ops.Listen != "" {
		opsServer := ops.New(cfg.Ops.Listen, incidentStore, sched, Version, log.Logger)
		g.Go(func() error {
			return opsServer.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("incidentd exited with error")
	}
	log.Info().Msg("incidentd stopped")
}

// engineConfig maps the file config onto the engine tunables.
func engineConfig(cfg config.Config) engine.Config {
	return engine.Config{
		Weights: distance.Weights{
			Semantic: cfg.Clustering.SemanticWeight,
			Lexical:  1 - cfg.Clustering.SemanticWeight,
		},
		MatchThreshold: cfg.Clustering.MatchThreshold,
		Eps:            cfg.Clustering.Eps,
		MinClusterSize: cfg.Clustering.MinClusterSize,
		AnchorK:        cfg.Clustering.AnchorK,
		EmbeddingDim:   cfg.Clustering.EmbeddingDim,
		KeywordLimit:   cfg.Clustering.KeywordLimit,
		Keyword: codec.KeywordOptions{
			MinRunes:   cfg.Clustering.KeywordMinLen,
			HangulOnly: cfg.Clustering.HangulOnly,
		},
		Titles: engine.TitleConfig{
			MinLen:      cfg.Titles.MinLen,
			MaxLen:      cfg.Titles.MaxLen,
			Suffix:      cfg.Titles.Suffix,
			Placeholder: cfg.Titles.Placeholder,
			StopWords:   cfg.Titles.StopWords,
		},
	}
}

// startConfigWatcher exits the polling loop when the config file changes so
// a supervisor can restart the daemon with fresh settings.
func startConfigWatcher(configPath string, cancel context.CancelFunc) {
	w, err := watcher.New(configPath, func() {
		log.Warn().Str("path", configPath).Msg("Config file changed, shutting down for restart")
		cancel()
	}, log.Logger)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create config watcher")
		return
	}
	if err := w.Start(); err != nil {
		log.Warn().Err(err).Msg("Failed to start config watcher")
		return
	}
	log.Info().Str("path", configPath).Msg("Config file watcher started")
}
