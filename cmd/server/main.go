package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"passenger-service/internal/domain/repository"
	"passenger-service/internal/infrastructure/config"
	"passenger-service/internal/infrastructure/persistence"
	"passenger-service/internal/infrastructure/router"
	"passenger-service/internal/interface/api"
	"passenger-service/internal/interface/broker"
	repo "passenger-service/internal/interface/repository"
	"passenger-service/internal/usecase"
	"passenger-service/pkg/logger"
	"passenger-service/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.NewLogger().Fatal("Failed to load config", "error", err)
	}

	log := logger.NewLoggerWithLevel(cfg.LogLevel)
	defer log.Sync()
	log.Info("Starting Passenger Service", "version", cfg.AppVersion)

	// Cancelled on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(cfg.MetricsNamespace, registry)

	// Set up passenger store
	var (
		passengers repository.PassengerRepository
		outbox     repository.OutboxRepository
	)
	switch cfg.StoreDriver {
	case config.StoreMemory:
		log.Warn("Using in-memory passenger store, data is lost on restart")
		store := repo.NewMemoryStore()
		passengers, outbox = store, store
	default:
		log.Info("Connecting to PostgreSQL")
		db, err := persistence.NewPostgresDB(ctx, cfg.PostgresURI, persistence.PostgresOptions{
			MaxOpenConns: cfg.MaxOpenConns,
			MaxIdleConns: cfg.MaxIdleConns,
		})
		if err != nil {
			log.Fatal("Failed to connect to PostgreSQL", "error", err)
		}
		defer func() {
			if err := persistence.ClosePostgresDB(db); err != nil {
				log.Error("PostgreSQL close error", "error", err)
			}
		}()
		if err := repo.AutoMigrate(db); err != nil {
			log.Fatal("Failed to migrate schema", "error", err)
		}
		passengers = repo.NewGormPassengerRepository(db)
		outbox = repo.NewGormOutboxRepository(db)
	}

	// Set up event journal
	var journal repository.EventJournalRepository
	if cfg.JournalEnabled {
		log.Info("Connecting to MongoDB")
		mongoClient, mongoDB, err := persistence.NewMongoDatabase(ctx, cfg.MongoURI, cfg.MongoDB, cfg.MongoUser, cfg.MongoPassword)
		if err != nil {
			log.Fatal("Failed to connect to MongoDB", "error", err)
		}
		defer func() {
			if err := mongoClient.Disconnect(context.Background()); err != nil {
				log.Error("MongoDB disconnect error", "error", err)
			}
		}()
		journal, err = repo.NewMongoEventJournalRepository(ctx, mongoDB)
		if err != nil {
			log.Fatal("Failed to prepare event journal", "error", err)
		}
	}

	// Set up broker
	publisher, err := newPublisher(ctx, cfg, log, m)
	if err != nil {
		log.Fatal("Failed to connect to broker", "kind", cfg.BrokerKind, "error", err)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Error("Publisher close error", "error", err)
		}
	}()

	policy, err := usecase.ParseTransitionPolicy(cfg.TransitionPolicy)
	if err != nil {
		log.Fatal("Invalid transition policy", "error", err)
	}

	relayOpts := []usecase.RelayOption{
		usecase.WithRetryBackoff(cfg.RetryBaseDelay, cfg.RetryMaxDelay),
		usecase.WithRelayMetrics(m),
	}
	if journal != nil {
		relayOpts = append(relayOpts, usecase.WithJournal(journal))
	}
	relay := usecase.NewEventRelay(publisher, outbox, log.Named("relay"), relayOpts...)

	lifecycle := usecase.NewPassengerLifecycle(passengers, relay, log.Named("lifecycle"),
		usecase.WithPolicy(policy),
		usecase.WithPublishTimeout(cfg.PublishTimeout),
		usecase.WithRelayAfter(cfg.OutboxRelayAfter),
		usecase.WithMetrics(m),
	)
	query := usecase.NewPassengerQuery(passengers, journal)

	dispatcher := usecase.NewOutboxDispatcher(outbox, relay, usecase.DispatcherConfig{
		PollInterval:   cfg.OutboxPollInterval,
		BatchSize:      cfg.OutboxBatchSize,
		Lease:          cfg.OutboxLease,
		MaxAttempts:    cfg.OutboxMaxAttempts,
		PublishTimeout: cfg.PublishTimeout,
	}, m, log.Named("outbox"))

	handler := api.NewPassengerHandler(lifecycle, query, log.Named("api"))

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router.NewHTTPRouter(log.Named("http"), m, registry, handler),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return dispatcher.Run(gctx)
	})

	g.Go(func() error {
		log.Info("Starting HTTP server", "port", cfg.Port, "policy", policy.Name())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("Service stopped with error", "error", err)
	}

	log.Info("Passenger Service stopped")
}

func newPublisher(ctx context.Context, cfg *config.Config, log logger.Logger, m *metrics.Metrics) (repository.EventPublisher, error) {
	switch cfg.BrokerKind {
	case config.BrokerKafka:
		p, err := broker.NewKafkaPublisher(ctx, broker.KafkaConfig{
			Brokers:           cfg.KafkaBrokers,
			Topic:             cfg.KafkaTopic,
			Partitions:        int32(cfg.KafkaPartitions),
			ReplicationFactor: int16(cfg.KafkaReplication),
		}, log.Named("kafka"))
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		p := broker.NewAMQPPublisher(broker.AMQPConfig{
			URL:               cfg.RabbitMQURI,
			Exchange:          cfg.Exchange,
			ReconnectDelay:    cfg.ReconnectDelay,
			MaxReconnectDelay: cfg.MaxReconnectDelay,
		}, nil, log.Named("amqp"), m)
		if err := p.Start(ctx); err != nil {
			return nil, err
		}
		return p, nil
	}
}
