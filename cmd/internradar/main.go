// Package main wires together the internship scraper service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/internradar/crawler/internal/api"
	"github.com/internradar/crawler/internal/clock/system"
	"github.com/internradar/crawler/internal/config"
	collyfetcher "github.com/internradar/crawler/internal/fetcher/colly"
	"github.com/internradar/crawler/internal/logging"
	"github.com/internradar/crawler/internal/metrics"
	pubsubpublisher "github.com/internradar/crawler/internal/publisher/pubsub"
	"github.com/internradar/crawler/internal/reconcile"
	"github.com/internradar/crawler/internal/scrape"
	filestorage "github.com/internradar/crawler/internal/storage/file"
	memorystorage "github.com/internradar/crawler/internal/storage/memory"
	postgresstorage "github.com/internradar/crawler/internal/storage/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, cleanup, err := buildStore(ctx, cfg)
	if err != nil {
		logger.Fatal("snapshot store init failed", zap.Error(err))
	}
	defer cleanup()

	var publisher scrape.Publisher
	if cfg.PubSub.ProjectID != "" && cfg.PubSub.TopicName != "" {
		p, err := pubsubpublisher.New(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			logger.Warn("pubsub publisher init failed", zap.Error(err))
		} else {
			defer func() {
				_ = p.Close()
			}()
			publisher = p
		}
	}

	clock := system.New()
	orchestrator := buildOrchestrator(cfg, store, publisher, clock, logger)

	apiServer := api.NewServer(orchestrator, store, cfg, logger.Named("api"))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func buildStore(ctx context.Context, cfg config.Config) (scrape.Store, func(), error) {
	switch cfg.Storage.Backend {
	case "memory":
		return memorystorage.New(), func() {}, nil
	case "postgres":
		store, err := postgresstorage.New(ctx, postgresstorage.Config{
			DSN:   cfg.Storage.DSN,
			Table: cfg.Storage.Table,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		store, err := filestorage.New(cfg.Storage.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}
}

func buildOrchestrator(
	cfg config.Config,
	store scrape.Store,
	publisher scrape.Publisher,
	clock scrape.Clock,
	logger *zap.Logger,
) *scrape.Orchestrator {
	transport := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.HTTP.UserAgent,
		Referer:   cfg.Site.Origin + "/",
		Timeout:   cfg.RequestTimeout(),
	})
	fetcher := scrape.NewRetryingFetcher(transport, scrape.RetryPolicy{
		MaxAttempts:  cfg.HTTP.MaxAttempts,
		InitialDelay: cfg.BackoffInitial(),
	}, logger.Named("fetch"))

	listings := scrape.NewListingExtractor(cfg.Site.Origin, logger.Named("listing"))
	details := scrape.NewDetailExtractor(fetcher, logger.Named("detail"))
	pages := scrape.NewPageScraper(fetcher, listings, details, scrape.PageScraperConfig{
		MaxConcurrentDetails: cfg.Crawl.MaxConcurrentDetails,
		DetailDelay:          cfg.DetailDelay(),
	}, logger.Named("page"))

	strategy, _ := reconcile.ParseStrategy(cfg.Reconcile.Strategy)
	reconciler := reconcile.New(store, clock, strategy, logger.Named("reconcile"))

	return scrape.NewOrchestrator(pages, reconciler, publisher, clock, scrape.OrchestratorConfig{
		SiteOrigin:            cfg.Site.Origin,
		PageStagger:           cfg.PageStagger(),
		ValidatePageCrawls:    cfg.Crawl.ValidateResults,
		ValidateKeywordCrawls: cfg.Crawl.ValidateKeyword,
		Topic:                 cfg.PubSub.TopicName,
	}, logger.Named("orchestrator"))
}
