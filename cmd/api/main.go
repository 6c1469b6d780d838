package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"github.com/craftlane/api/internal/handlers"
	"github.com/craftlane/api/internal/platform/config"
	pfirestore "github.com/craftlane/api/internal/platform/firestore"
	"github.com/craftlane/api/internal/platform/jobs"
	"github.com/craftlane/api/internal/platform/observability"
	"github.com/craftlane/api/internal/repositories"
	firestorerepo "github.com/craftlane/api/internal/repositories/firestore"
	"github.com/craftlane/api/internal/services"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider := pfirestore.NewProvider(cfg.Firestore)
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		if err := provider.Close(closeCtx); err != nil {
			logger.Warn("failed to close firestore client", zap.Error(err))
		}
	}()

	firestoreClient, err := provider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}

	var ledgerPublisher services.LedgerEventPublisher
	if cfg.PubSub.Enabled {
		pubsubClient, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("failed to close pubsub client", zap.Error(err))
			}
		}()

		publisher, err := jobs.NewPubSubLedgerPublisher(pubsubClient.Topic(cfg.PubSub.LedgerTopic))
		if err != nil {
			logger.Fatal("failed to initialise ledger publisher", zap.Error(err))
		}
		ledgerPublisher = publisher
		logger.Info("ledger event publishing enabled", zap.String("topic", cfg.PubSub.LedgerTopic))
	}

	templateRepo, err := firestorerepo.NewTemplateRepository(provider)
	if err != nil {
		logger.Fatal("failed to initialise template repository", zap.Error(err))
	}
	productRepo, err := firestorerepo.NewProductRepository(provider)
	if err != nil {
		logger.Fatal("failed to initialise product repository", zap.Error(err))
	}
	variantRepo, err := firestorerepo.NewVariantRepository(provider)
	if err != nil {
		logger.Fatal("failed to initialise variant repository", zap.Error(err))
	}
	inventoryRepo, err := firestorerepo.NewInventoryRepository(provider)
	if err != nil {
		logger.Fatal("failed to initialise inventory repository", zap.Error(err))
	}

	catalogService, err := services.NewVariationCatalogService(services.VariationCatalogServiceDeps{
		Templates: templateRepo,
		Logger:    observability.ServiceLogHook(logger),
	})
	if err != nil {
		logger.Fatal("failed to initialise catalog service", zap.Error(err))
	}

	variantService, err := services.NewVariantService(services.VariantServiceDeps{
		Products:      productRepo,
		Variants:      variantRepo,
		Catalog:       catalogService,
		GenerationCap: cfg.Catalog.GenerationCap,
		Logger:        observability.ServiceLogHook(logger),
	})
	if err != nil {
		logger.Fatal("failed to initialise variant service", zap.Error(err))
	}

	inventoryService, err := services.NewInventoryService(services.InventoryServiceDeps{
		Inventory:         inventoryRepo,
		Products:          productRepo,
		Variants:          variantRepo,
		Events:            ledgerPublisher,
		LowStockThreshold: cfg.Inventory.LowStockThreshold,
		RecentChanges:     cfg.Inventory.RecentChanges,
		Logger:            observability.ServiceLogHook(logger),
	})
	if err != nil {
		logger.Fatal("failed to initialise inventory service", zap.Error(err))
	}

	bulkService, err := services.NewBulkService(services.BulkServiceDeps{
		Variants:  variantRepo,
		Inventory: inventoryService,
		Workers:   cfg.Inventory.BulkWorkers,
		MaxItems:  cfg.Inventory.BulkMaxItems,
		Logger:    observability.ServiceLogHook(logger),
	})
	if err != nil {
		logger.Fatal("failed to initialise bulk service", zap.Error(err))
	}

	healthRepo, err := repositories.NewDependencyHealthRepository([]repositories.DependencyCheck{
		{
			Name: "firestore",
			Check: func(checkCtx context.Context) error {
				_, err := firestoreClient.Collections(checkCtx).Next()
				if errors.Is(err, iterator.Done) {
					return nil
				}
				return err
			},
		},
	})
	if err != nil {
		logger.Fatal("failed to initialise health repository", zap.Error(err))
	}

	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger),
		observability.TraceMiddleware(cfg.Firestore.ProjectID),
		observability.ActorMiddleware(),
		observability.RecoveryMiddleware(logger),
		observability.RequestLoggerMiddleware(cfg.Firestore.ProjectID),
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(handlers.WithHealthChecker(healthRepo))),
		handlers.WithCatalogRoutes(handlers.NewCatalogHandlers(handlers.WithCatalogService(catalogService)).Routes),
		handlers.WithProductRoutes(handlers.NewVariantHandlers(handlers.WithVariantService(variantService)).Routes),
		handlers.WithInventoryRoutes(handlers.NewInventoryHandlers(handlers.WithInventoryService(inventoryService)).Routes),
		handlers.WithBulkRoutes(handlers.NewBulkHandlers(handlers.WithBulkService(bulkService)).Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		serverErr <- server.ListenAndServe()
	}()

	select {
	case sig := <-stop:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
		return
	}
	logger.Info("server stopped")
}
