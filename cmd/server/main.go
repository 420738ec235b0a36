package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"picker-service/config"
	"picker-service/internal/api"
	"picker-service/internal/broker"
	"picker-service/internal/redisclient"
	"picker-service/internal/service"
	"picker-service/internal/store"
	"picker-service/internal/util"
	"picker-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting picker service",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port))

	tp, err := util.InitTracer(util.TracerConfig{
		Endpoint:    cfg.Observ.JaegerEndpoint,
		Environment: cfg.Server.Env,
		SampleRatio: cfg.Observ.TraceSampleRatio,
	})
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("Error shutting down tracer", zap.Error(err))
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Database connected")

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(); err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
	}

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicPicking)
	defer producer.Close()
	logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicPicking))

	eventPublisher := broker.NewEventPublisher(producer)

	upstream := service.UpstreamConfig{
		BaseURL:        cfg.Upstream.OrderServiceHost,
		UserID:         cfg.Upstream.UserID,
		OrganizationID: cfg.Upstream.OrganizationID,
		Timeout:        cfg.Upstream.Timeout,
	}
	orderClient := service.NewOrderServiceClient(upstream)
	inventoryClient := service.NewInventoryServiceClient(upstream)

	catalogService := service.NewCatalogService(db, redisClient)
	ingestionService := service.NewIngestionService(db, catalogService, eventPublisher)
	inventorySync := service.NewInventorySync(db, inventoryClient, redisClient)
	packer := service.NewPacker(orderClient, inventorySync)
	pickingService := service.NewPickingService(db, packer, eventPublisher)
	orderService := service.NewOrderService(db)
	agentService := service.NewAgentService(db, redisClient, cfg.Auth.SessionTTL)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var ingestWorker *worker.IngestWorker
	if cfg.Kafka.IngestEnabled {
		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicWebhooks, cfg.Kafka.ConsumerGroup)
		ingestWorker = worker.NewIngestWorker(consumer, ingestionService, catalogService)
		go func() {
			if err := ingestWorker.Start(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Ingest worker error", zap.Error(err))
			}
		}()
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(api.Services{
		Ingestion: ingestionService,
		Catalog:   catalogService,
		Picking:   pickingService,
		Orders:    orderService,
		Agents:    agentService,
	}, map[string]api.Pinger{
		"database": db,
		"redis":    redisClient,
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if ingestWorker != nil {
		_ = ingestWorker.Stop()
	}

	logger.Info("Server exited")
}
