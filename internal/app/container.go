package app

import (
	"context"
	"fmt"
	"log/slog"

	paymentsApp "github.com/felixgeelhaar/coachpay/internal/payments/application"
	"github.com/felixgeelhaar/coachpay/internal/payments/application/subscribers"
	"github.com/felixgeelhaar/coachpay/internal/payments/infrastructure/lock"
	"github.com/felixgeelhaar/coachpay/internal/payments/infrastructure/persistence"
	"github.com/felixgeelhaar/coachpay/internal/payments/infrastructure/stripe"
	sharedApplication "github.com/felixgeelhaar/coachpay/internal/shared/application"
	"github.com/felixgeelhaar/coachpay/internal/shared/infrastructure/database"
	_ "github.com/felixgeelhaar/coachpay/internal/shared/infrastructure/database/postgres" // Register PostgreSQL driver
	_ "github.com/felixgeelhaar/coachpay/internal/shared/infrastructure/database/sqlite"   // Register SQLite driver
	"github.com/felixgeelhaar/coachpay/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/coachpay/internal/shared/infrastructure/migrations"
	"github.com/felixgeelhaar/coachpay/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/coachpay/pkg/config"
	"github.com/felixgeelhaar/coachpay/pkg/observability"
	"github.com/redis/go-redis/v9"
)

// Container holds all application dependencies.
type Container struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *observability.InMemoryMetrics

	// Database
	DBConn   database.Connection
	DBDriver database.Driver

	// Redis
	RedisClient *redis.Client

	// Repositories
	TrainerRepo      *persistence.TrainerRepository
	PlanRepo         *persistence.PlanRepository
	SubscriptionRepo *persistence.SubscriptionRepository
	ActivityRepo     *persistence.ActivityRepository
	PayoutRepo       *persistence.PayoutRepository
	ComplianceRepo   *persistence.ComplianceRepository
	EventLedger      *persistence.EventLedger
	OutboxRepo       *outbox.SQLRepository

	// Unit of Work
	UnitOfWork sharedApplication.UnitOfWork

	// Publishers
	EventPublisher    eventbus.Publisher
	RabbitMQPublisher *eventbus.RabbitMQPublisher
	InProcessEventBus *eventbus.InProcessBus
	AlertSubscriber   *subscribers.RiskAlertSubscriber

	// Processor integration
	Authenticator *stripe.Authenticator
	Gateway       *stripe.Gateway
	Locker        paymentsApp.Locker

	// Payments services
	Deduplicator *paymentsApp.Deduplicator
	RiskEngine   *paymentsApp.RiskEngine
	Reconciler   *paymentsApp.Reconciler
	Synchronizer *paymentsApp.AccountSynchronizer
	Terms        *paymentsApp.TermsService
	Queries      *paymentsApp.ComplianceQueries
	Sweep        *paymentsApp.ComplianceSweep

	// Outbox Processor
	OutboxProcessor *outbox.Processor
}

// Connect opens the configured store without migrating it.
func Connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (database.Connection, error) {
	conn, err := database.NewConnection(ctx, database.Config{
		URL:        cfg.DatabaseURL,
		SQLitePath: cfg.SQLitePath,
		MaxConns:   cfg.DatabaseMaxConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	logger.Info("connected to database", "driver", conn.Driver())
	return conn, nil
}

// OpenDatabase connects to the configured store. SQLite databases are
// migrated on open; PostgreSQL is migrated by the migrate command.
func OpenDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (database.Connection, error) {
	conn, err := Connect(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if conn.Driver() == database.DriverSQLite {
		applied, err := migrations.Run(ctx, conn)
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		if len(applied) > 0 {
			logger.Info("SQLite migrations applied", "versions", applied)
		}
	}
	return conn, nil
}

// NewContainer creates and wires all dependencies.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewInMemoryMetrics(),
	}

	conn, err := OpenDatabase(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	c.DBConn = conn
	c.DBDriver = conn.Driver()

	// Connect to Redis (optional in development)
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			if !cfg.IsDevelopment() {
				c.Close()
				return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
			}
			logger.Warn("invalid Redis URL, sync locks will be in-process", "error", err)
		} else {
			redisClient := redis.NewClient(opt)
			if err := redisClient.Ping(ctx).Err(); err != nil {
				_ = redisClient.Close()
				if !cfg.IsDevelopment() {
					c.Close()
					return nil, fmt.Errorf("failed to connect to Redis: %w", err)
				}
				logger.Warn("Redis not available, sync locks will be in-process", "error", err)
			} else {
				c.RedisClient = redisClient
				logger.Info("connected to Redis")
			}
		}
	}
	if c.RedisClient != nil {
		c.Locker = lock.NewRedis(c.RedisClient)
	} else {
		c.Locker = lock.NewLocal()
	}

	// Create repositories
	c.TrainerRepo = persistence.NewTrainerRepository(conn)
	c.PlanRepo = persistence.NewPlanRepository(conn)
	c.SubscriptionRepo = persistence.NewSubscriptionRepository(conn)
	c.ActivityRepo = persistence.NewActivityRepository(conn)
	c.PayoutRepo = persistence.NewPayoutRepository(conn)
	c.ComplianceRepo = persistence.NewComplianceRepository(conn)
	c.EventLedger = persistence.NewEventLedger(conn)
	c.OutboxRepo = outbox.NewSQLRepository(conn)
	c.UnitOfWork = database.NewUnitOfWork(conn)

	// Create event publisher
	c.AlertSubscriber = subscribers.NewRiskAlertSubscriber(logger, c.Metrics)
	if cfg.RabbitMQURL != "" {
		publisher, err := eventbus.NewRabbitMQPublisher(cfg.RabbitMQURL, eventbus.DefaultExchange, logger)
		if err != nil {
			if !cfg.IsDevelopment() {
				c.Close()
				return nil, err
			}
			logger.Warn("RabbitMQ not available, using in-process event bus", "error", err)
		} else {
			c.RabbitMQPublisher = publisher
			c.EventPublisher = publisher
		}
	}
	if c.EventPublisher == nil {
		c.InProcessEventBus = eventbus.NewInProcessBus(logger)
		c.InProcessEventBus.RegisterConsumer(c.AlertSubscriber)
		c.EventPublisher = c.InProcessEventBus
	}

	// Create processor integration
	if cfg.StripeWebhookSecret == "" {
		logger.Warn("STRIPE_WEBHOOK_SECRET not set, every webhook will be rejected")
	}
	c.Authenticator = stripe.NewAuthenticator(cfg.StripeWebhookSecret, cfg.StripeWebhookTolerance)
	breaker := stripe.DefaultBreakerConfig()
	if cfg.GatewayBreakerFailures > 0 {
		breaker.FailureThreshold = uint32(cfg.GatewayBreakerFailures)
	}
	if cfg.GatewayBreakerTimeout > 0 {
		breaker.Timeout = cfg.GatewayBreakerTimeout
	}
	c.Gateway = stripe.NewGateway(cfg.StripeAPIKey, breaker, logger)

	// Create payments services
	audit := paymentsApp.NewAuditLog(c.ActivityRepo, c.OutboxRepo, logger)
	counter := paymentsApp.NewSubscriberCounter(c.TrainerRepo, audit, logger)
	c.RiskEngine = paymentsApp.NewRiskEngine(c.TrainerRepo, c.ComplianceRepo, audit, logger)
	c.Deduplicator = paymentsApp.NewDeduplicator(c.EventLedger)

	decoder := stripe.NewPayloadDecoder()
	c.Reconciler, err = paymentsApp.NewReconciler(c.UnitOfWork, c.Deduplicator,
		[]paymentsApp.EventHandler{
			paymentsApp.NewSubscriptionLifecycle(c.SubscriptionRepo, c.TrainerRepo, c.PlanRepo, c.Gateway, decoder, counter, audit, logger),
			paymentsApp.NewPayoutReconciler(c.TrainerRepo, c.PayoutRepo, decoder, audit, logger),
			paymentsApp.NewDisputeHandler(c.TrainerRepo, c.Gateway, decoder, c.RiskEngine, audit, logger),
			paymentsApp.NewAccountHandler(c.TrainerRepo, decoder, c.RiskEngine, audit, logger),
		},
		logger, c.Metrics,
	)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to build reconciler: %w", err)
	}

	c.Synchronizer = paymentsApp.NewAccountSynchronizer(
		c.UnitOfWork, c.TrainerRepo, c.ComplianceRepo, c.Gateway, c.RiskEngine,
		c.Locker, cfg.SyncLockTTL, logger, c.Metrics,
	)
	c.Terms = paymentsApp.NewTermsService(c.UnitOfWork, c.TrainerRepo, c.ComplianceRepo, logger)
	c.Queries = paymentsApp.NewComplianceQueries(c.TrainerRepo, c.PlanRepo, c.ActivityRepo, c.PayoutRepo, c.ComplianceRepo)
	c.Sweep = paymentsApp.NewComplianceSweep(c.TrainerRepo, c.Synchronizer, logger)

	// Create outbox processor
	processorConfig := outbox.DefaultProcessorConfig()
	if cfg.OutboxPollInterval > 0 {
		processorConfig.PollInterval = cfg.OutboxPollInterval
	}
	if cfg.OutboxBatchSize > 0 {
		processorConfig.BatchSize = cfg.OutboxBatchSize
	}
	if cfg.OutboxMaxRetries > 0 {
		processorConfig.MaxRetries = cfg.OutboxMaxRetries
	}
	c.OutboxProcessor = outbox.NewProcessor(c.OutboxRepo, c.EventPublisher, processorConfig, logger, c.Metrics)

	return c, nil
}

// HealthRegistry returns the dependency checks for this container.
func (c *Container) HealthRegistry() *observability.HealthRegistry {
	registry := observability.NewHealthRegistry()
	registry.Register("database", observability.DatabaseHealthChecker(c.DBConn.Ping))
	registry.Register("outbox", observability.OutboxHealthChecker(c.OutboxRepo.Backlog))
	registry.Register("stripe", observability.BreakerHealthChecker("stripe", c.Gateway.BreakerState))
	if c.RedisClient != nil {
		registry.Register("redis", observability.RedisHealthChecker(func(ctx context.Context) error {
			return c.RedisClient.Ping(ctx).Err()
		}))
	}
	if c.RabbitMQPublisher != nil {
		registry.Register("rabbitmq", observability.RabbitMQHealthChecker(c.RabbitMQPublisher.Ping))
	}
	return registry
}

// Close releases all resources.
func (c *Container) Close() {
	if c.OutboxProcessor != nil && c.OutboxProcessor.IsRunning() {
		c.OutboxProcessor.Stop()
	}

	if c.EventPublisher != nil {
		if err := c.EventPublisher.Close(); err != nil {
			c.Logger.Warn("error closing event publisher", "error", err)
		}
	}

	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			c.Logger.Warn("error closing Redis connection", "error", err)
		} else {
			c.Logger.Info("Redis connection closed")
		}
	}

	if c.DBConn != nil {
		if err := c.DBConn.Close(); err != nil {
			c.Logger.Warn("error closing database connection", "error", err)
		} else {
			c.Logger.Info("database connection closed")
		}
	}
}
