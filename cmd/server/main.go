package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/smartcart/gateway"
	"github.com/example/smartcart/pkg/catalog"
	"github.com/example/smartcart/pkg/checkout"
	"github.com/example/smartcart/pkg/config"
	"github.com/example/smartcart/pkg/discovery"
	"github.com/example/smartcart/pkg/eventbus"
	"github.com/example/smartcart/pkg/ledger"
	"github.com/example/smartcart/pkg/repository"
	"github.com/example/smartcart/pkg/theft"
	"github.com/example/smartcart/pkg/vision"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/server-config.yaml", "path to config file")
	demo := flag.Bool("demo", false, "run on in-memory storage with a seeded catalog")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting smartcart service",
		zap.String("name", cfg.Server.Name),
		zap.Int("port", cfg.Server.Port),
		zap.Bool("demo", *demo))

	ctx := context.Background()

	// Storage. Demo mode swaps MySQL for the in-memory store so the whole
	// pipeline runs without infrastructure.
	var store repository.Store
	if *demo {
		store = repository.NewMemoryStore()
	} else {
		gs, err := repository.NewGormStore(&cfg.MySQL)
		if err != nil {
			logger.Fatal("Failed to connect to MySQL", zap.Error(err))
		}
		store = gs
	}

	cat := catalog.New(store)
	if *demo {
		if err := catalog.Seed(ctx, store); err != nil {
			logger.Fatal("Failed to seed catalog", zap.Error(err))
		}
		logger.Info("Demo catalog seeded")
	}

	// Optional collaborators degrade to nil; services treat them as absent.
	var cache *repository.RedisRepository
	if cfg.Redis.Addr != "" {
		cache = repository.NewRedisRepository(&cfg.Redis)
		if err := cache.Ping(ctx); err != nil {
			logger.Warn("Redis connection failed, summary cache disabled", zap.Error(err))
			cache = nil
		} else {
			logger.Info("Redis connected")
			defer cache.Close()
		}
	}

	var audit *repository.MongoRepository
	if cfg.MongoDB.URI != "" {
		audit, err = repository.NewMongoRepository(&cfg.MongoDB)
		if err != nil {
			logger.Warn("MongoDB connection failed, audit trail disabled", zap.Error(err))
			audit = nil
		} else {
			logger.Info("MongoDB connected")
			defer audit.Close(ctx)
		}
	}

	bus := eventbus.New(cfg.Bus.HistorySize, logger.Named("bus"))
	defer bus.Shutdown()

	verifier := vision.NewFallbackVerifier(cfg.Vision.FallbackSeed)
	locks := ledger.NewCartLocks()

	led := ledger.NewService(store, cat, locks, bus, cache, logger.Named("ledger"))
	correlator := theft.NewCorrelator(store, verifier, locks, bus, audit, theft.Config{
		DedupWindow: cfg.Alerts.DedupWindow,
		TheftGap:    cfg.Alerts.TheftGap,
	}, logger.Named("theft"))
	gate := checkout.NewGate(store, locks, bus, cache, audit, logger.Named("checkout"))

	gw := gateway.New(cfg, logger.Named("gateway"), store, cat, led, correlator, gate, bus)
	gw.SetupRoutes()

	// Service discovery is optional too; demo deployments skip etcd.
	var registry *discovery.ServiceRegistry
	instance := &discovery.ServiceInstance{
		Name: cfg.Server.Name,
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	}
	if len(cfg.Etcd.Endpoints) > 0 {
		registry, err = discovery.NewServiceRegistry(&cfg.Etcd)
		if err != nil {
			logger.Warn("etcd connection failed, running unregistered", zap.Error(err))
		} else {
			defer registry.Close()
			if err := registry.Register(ctx, instance); err != nil {
				logger.Warn("Service registration failed", zap.Error(err))
			} else {
				logger.Info("Service registered in etcd",
					zap.String("name", cfg.Server.Name),
					zap.String("address", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)))
			}
		}
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := gw.Start(); err != nil {
			serverErr <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("Received shutdown signal")
	case err := <-serverErr:
		logger.Fatal("Server error", zap.Error(err))
	}

	if registry != nil {
		if err := registry.Deregister(ctx, instance); err != nil {
			logger.Error("Failed to deregister service", zap.Error(err))
		}
	}

	logger.Info("Service stopped")
}
