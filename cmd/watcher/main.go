// Command watcher polls a Solana account for liquidity-pool launches and
// serves the most recent matches over HTTP.
//
// Usage:
//
//	watcher [-config watcher.yaml]
//
// Every setting can be overridden with LAUNCHWATCH_* environment variables,
// e.g. LAUNCHWATCH_RPC_ENDPOINT or LAUNCHWATCH_POLL_INTERVAL.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"launch-watch/internal/config"
	"launch-watch/internal/discovery"
	"launch-watch/internal/feed"
	"launch-watch/internal/ingestion"
	"launch-watch/internal/logging"
	"launch-watch/internal/metadata"
	"launch-watch/internal/solana"
	"launch-watch/internal/tracker"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	configPath := flag.String("config", os.Getenv("LAUNCHWATCH_CONFIG"), "Path to YAML config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Encoding)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}
	defer app.close()

	done := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		case <-done:
			return
		}
		app.scheduler.Stop()
		cancel()

		select {
		case sig := <-sigCh:
			logger.Error("received second signal, forcing exit", zap.String("signal", sig.String()))
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Error("graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	err = app.run(ctx)
	close(done)
	if err != nil {
		logger.Error("watcher stopped with error", zap.Error(err))
		logger.Sync() //nolint:errcheck
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

// app holds the wired components.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	scheduler *ingestion.Scheduler
	server    *feed.Server
	wake      *ingestion.LogWake
	closers   []func() error
}

func build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	rpc := solana.NewHTTPClient(cfg.RPC.Endpoint,
		solana.WithTimeout(cfg.RPC.Timeout),
		solana.WithRateLimit(cfg.RPC.RPS, cfg.RPC.Burst),
	)

	profile := cfg.Classifier.Profile()
	classifier, err := discovery.NewClassifier(profile)
	if err != nil {
		return nil, err
	}
	if profile.ProgramID == "" {
		logger.Warn("classifier matches fingerprints in any program; set classifier.program_id to restrict",
			zap.String("suggested", discovery.RaydiumAMMV4))
	}

	sources, err := buildSources(cfg, rpc)
	if err != nil {
		return nil, err
	}

	aggregator := tracker.NewAggregator(tracker.Options{
		Capacity:        cfg.Results.Capacity,
		SignatureWindow: cfg.Results.SignatureWindow,
		TokenWindow:     cfg.Results.TokenWindow,
		DedupByToken:    cfg.Results.DedupByToken,
		Logger:          logger,
	})

	var publishers []ingestion.SnapshotPublisher
	if cfg.Redis.Enabled() {
		rdb, err := feed.NewRedisClient(ctx, feed.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rdb.Close)
		publishers = append(publishers, feed.NewRedisPublisher(rdb, cfg.Redis.Channel, logger))
	}

	pipeline := ingestion.NewPipeline(ingestion.PipelineOptions{
		Lister: discovery.NewLister(rpc, cfg.Tracker.Account),
		Fetcher: discovery.NewFetcher(rpc, discovery.FetcherOptions{
			MaxRetries: cfg.Fetch.MaxRetries,
			BaseDelay:  cfg.Fetch.BaseDelay,
			Logger:     logger,
		}),
		Classifier: classifier,
		Enricher:   metadata.NewEnricher(sources, cfg.Metadata.Timeout, logger),
		Aggregator: aggregator,
		Publishers: publishers,
		Logger:     logger,
	})

	schedOpts := ingestion.SchedulerOptions{
		InitialLimit: cfg.Poll.InitialLimit,
		SteadyLimit:  cfg.Poll.SteadyLimit,
		Interval:     cfg.Poll.Interval,
		MinWakeGap:   cfg.Poll.MinWakeGap,
		Logger:       logger,
	}

	if cfg.RPC.WSEndpoint != "" {
		ws, err := solana.NewWSClient(ctx, cfg.RPC.WSEndpoint, nil, logger)
		if err != nil {
			// Polling alone still finds every launch.
			logger.Warn("websocket unavailable, continuing without wake signals", zap.Error(err))
		} else {
			a.closers = append(a.closers, ws.Close)
			a.wake = ingestion.NewLogWake(ws, cfg.Tracker.Account, logger)
			schedOpts.Wake = a.wake.C()
		}
	}

	a.scheduler = ingestion.NewScheduler(pipeline, schedOpts)
	a.server = feed.NewServer(feed.ServerOptions{
		Snapshots: aggregator,
		Status:    a.scheduler,
		Account:   cfg.Tracker.Account,
		Profile:   profile.ID(),
		Logger:    logger,
	})

	logger.Info("watcher configured",
		zap.String("rpc", cfg.RPC.Endpoint),
		zap.String("account", cfg.Tracker.Account),
		zap.String("profile", profile.ID()),
		zap.Strings("metadata_sources", cfg.Metadata.Sources),
		zap.Bool("wake", a.wake != nil),
		zap.Bool("redis", cfg.Redis.Enabled()),
	)
	return a, nil
}

func buildSources(cfg *config.Config, rpc solana.RPCClient) ([]metadata.Source, error) {
	sources := make([]metadata.Source, 0, len(cfg.Metadata.Sources))
	for _, name := range cfg.Metadata.Sources {
		switch name {
		case config.SourceMetaplex:
			sources = append(sources, metadata.NewMetaplexSource(rpc))
		case config.SourceHTTP:
			src, err := metadata.NewHTTPSource(cfg.Metadata.HTTPURL, cfg.Metadata.Timeout)
			if err != nil {
				return nil, err
			}
			sources = append(sources, src)
		default:
			return nil, fmt.Errorf("unknown metadata source %q", name)
		}
	}
	return sources, nil
}

func (a *app) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.server.ListenAndServe(gctx, a.cfg.HTTP.Addr)
	})

	if a.wake != nil {
		g.Go(func() error {
			if err := a.wake.Run(gctx); err != nil {
				a.logger.Warn("wake source stopped", zap.Error(err))
			}
			return nil
		})
	}

	// The server and wake source live as long as the scheduler.
	g.Go(func() error {
		defer cancel()
		return a.scheduler.Run(gctx)
	})

	return g.Wait()
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.logger.Debug("close", zap.Error(err))
		}
	}
}
