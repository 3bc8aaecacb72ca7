// Command regiond serves the region data API and keeps the region cache fresh
// by refreshing every category on a schedule.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/couchcryptid/region-data-service/internal/adapter/dynamodb"
	httpadapter "github.com/couchcryptid/region-data-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/region-data-service/internal/adapter/kafka"
	"github.com/couchcryptid/region-data-service/internal/cache"
	"github.com/couchcryptid/region-data-service/internal/config"
	"github.com/couchcryptid/region-data-service/internal/fetch"
	"github.com/couchcryptid/region-data-service/internal/normalize"
	"github.com/couchcryptid/region-data-service/internal/observability"
	"github.com/couchcryptid/region-data-service/internal/politics"
	"github.com/couchcryptid/region-data-service/internal/query"
	"github.com/couchcryptid/region-data-service/internal/reference"
	"github.com/couchcryptid/region-data-service/internal/refresh"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, metrics); err != nil {
		logger.Error("regiond failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) error {
	ds, err := reference.Load(cfg.ReferenceDataPath)
	if err != nil {
		return err
	}
	ref := reference.NewProvider(ds)
	logger.Info("reference data loaded", "zips", len(ds.ZIPs), "path", cfg.ReferenceDataPath)

	store, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}
	regions := cache.New(store, nil, metrics, logger)
	if err := regions.Hydrate(ctx); err != nil {
		return err
	}

	var publisher refresh.Publisher
	if cfg.PublishEnabled() {
		p := kafkaadapter.NewPublisher(cfg, logger)
		defer func() {
			if err := p.Close(); err != nil {
				logger.Error("kafka publisher close error", "error", err)
			}
		}()
		publisher = p
		logger.Info("change feed enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("change feed disabled")
	}

	fetcher := fetch.NewClient(nil, metrics, logger)
	opts := refresh.Options{
		Enabled:   cfg.LiveFetchEnabled,
		Fetcher:   fetcher,
		Merger:    regions,
		Publisher: publisher,
		Logger:    logger,
		Metrics:   metrics,
	}
	svc := refresh.NewService(
		refresh.New(refresh.PricesSource(cfg.PricesSourceURL, normalize.NewPrices(ref, nil, logger), cfg.FetchPolicy), opts),
		refresh.New(refresh.SchoolsSource(cfg.SchoolsSourceURL, normalize.NewSchools(ref, logger), cfg.FetchPolicy), opts),
		refresh.New(refresh.ParksSource(cfg.ParksSourceURL, cfg.ParksBBox, normalize.NewParks(ref, logger), cfg.FetchPolicy), opts),
	)

	queries := query.NewService(regions, ref, politics.NewEngine(ref))
	srv := httpadapter.NewServer(cfg.HTTPAddr, regions, queries, svc, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	if cfg.ReferenceWatch {
		go func() {
			if err := reference.Watch(ctx, cfg.ReferenceDataPath, ref, logger); err != nil {
				logger.Error("reference watch error", "error", err)
			}
		}()
	}

	if cfg.LiveFetchEnabled {
		go func() {
			if err := refresh.NewScheduler(svc, cfg.RevalidateInterval, nil, logger).Run(ctx); err != nil {
				logger.Error("scheduler error", "error", err)
			}
		}()
	} else {
		logger.Info("live fetching disabled; serving cached data only")
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func newStore(ctx context.Context, cfg *config.Config) (cache.Store, error) {
	if cfg.StoreBackend != config.StoreDynamoDB {
		return cache.NewMemoryStore(), nil
	}
	client, err := dynamodb.NewClient(ctx, cfg.AWSRegion, cfg.DynamoDBEndpoint)
	if err != nil {
		return nil, err
	}
	return dynamodb.New(client, cfg.DynamoDBTable), nil
}
