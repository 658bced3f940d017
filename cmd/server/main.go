package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/andrisetia/merchant-ingest-be/internal/config"
	"github.com/andrisetia/merchant-ingest-be/internal/domain"
	"github.com/andrisetia/merchant-ingest-be/internal/handler"
	"github.com/andrisetia/merchant-ingest-be/internal/objectstore"
	"github.com/andrisetia/merchant-ingest-be/internal/replication"
	"github.com/andrisetia/merchant-ingest-be/internal/server"
	"github.com/andrisetia/merchant-ingest-be/internal/service"
	"github.com/andrisetia/merchant-ingest-be/internal/storage"
	"github.com/andrisetia/merchant-ingest-be/pkg/logger"
)

func main() {
	cfg := config.Load()

	log := logger.New(cfg.Logging.Level)
	defer log.Sync()

	ctx := context.Background()
	log.Info(ctx, "Starting application")

	var (
		repo  domain.Repository
		audit domain.AuditSink
	)
	if cfg.DB.DSN != "" {
		store, err := storage.NewPostgresStore(ctx, cfg.DB.DSN, log)
		if err != nil {
			log.Fatal(ctx, "Failed to connect to database",
				"error", err,
			)
		}
		repo, audit = store, store
		log.Info(ctx, "Postgres repository initialized")
	} else {
		store := storage.NewMemoryStore()
		repo, audit = store, store
		log.Warn(ctx, "No DATABASE_DSN configured, using in-memory store")
	}

	files, err := objectstore.NewLocalStore(cfg.Storage.UploadDir)
	if err != nil {
		log.Fatal(ctx, "Failed to initialize object store",
			"error", err,
		)
	}
	log.Info(ctx, "Object store initialized",
		"dir", cfg.Storage.UploadDir,
	)

	var (
		publisher replication.Publisher
		broker    *replication.ChannelBroker
		kafkaPub  *replication.KafkaPublisher
	)
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPub = replication.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.MerchantCreatedTopic, log)
		publisher = kafkaPub
		log.Info(ctx, "Kafka publisher initialized",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.MerchantCreatedTopic,
		)
	} else {
		broker = replication.NewChannelBroker(log, &replication.BrokerConfig{
			ChannelBuffer: cfg.Broker.ChannelBufferSize,
			MaxRetries:    cfg.Broker.MaxRetries,
		})

		replica := replication.NewReplicaConsumer(log, cfg.Broker.WorkerPoolSize)
		if err := broker.Subscribe(cfg.Kafka.MerchantCreatedTopic, replica); err != nil {
			log.Fatal(ctx, "Failed to subscribe replica consumer",
				"error", err,
			)
		}
		if err := broker.Start(ctx); err != nil {
			log.Fatal(ctx, "Failed to start in-process broker",
				"error", err,
			)
		}

		publisher = replication.NewChannelPublisher(broker, cfg.Kafka.MerchantCreatedTopic, log)
		log.Warn(ctx, "No KAFKA_BROKERS configured, using in-process broker")
	}

	materializer := service.NewMaterializer(repo, log)
	batchService := service.NewBatchService(repo, audit, files, materializer, log)
	merchantService := service.NewMerchantService(repo, publisher, log)
	log.Info(ctx, "Services initialized")

	batchHandler := handler.NewBatchHandler(batchService, log)
	incomingHandler := handler.NewIncomingHandler(batchService, log)
	merchantHandler := handler.NewMerchantHandler(merchantService, log)
	healthHandler := handler.NewHealthHandler()

	srv := server.New(cfg, log, batchHandler, incomingHandler, merchantHandler, healthHandler)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal(ctx, "Failed to start HTTP server",
				"error", err,
			)
		}
	}()

	log.Info(ctx, "Application started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info(ctx, "Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "HTTP server shutdown error",
			"error", err,
		)
	}

	if broker != nil {
		if err := broker.Shutdown(shutdownCtx); err != nil {
			log.Error(shutdownCtx, "Broker shutdown error",
				"error", err,
			)
		}
	}
	if kafkaPub != nil {
		if err := kafkaPub.Close(); err != nil {
			log.Error(shutdownCtx, "Kafka publisher close error",
				"error", err,
			)
		}
	}

	log.Info(ctx, "Application stopped gracefully")
}
