package bootstrap

import (
	"context"
	"os"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	chclient "soilsense/internal/adapters/clickhouse"
	"soilsense/internal/adapters/config"
	errnoop "soilsense/internal/adapters/errors/noop"
	"soilsense/internal/adapters/errors/sentry"
	"soilsense/internal/adapters/kafka"
	pgclient "soilsense/internal/adapters/postgres"
	redisclient "soilsense/internal/adapters/redis"
	"soilsense/internal/api"
	"soilsense/internal/api/health"
	"soilsense/internal/consumers"
	"soilsense/internal/domain/soil"
	"soilsense/internal/events"
	"soilsense/internal/metrics"
	"soilsense/internal/ml/bundle"
	"soilsense/internal/ml/kmeans"
	"soilsense/internal/ml/selection"
	chrepo "soilsense/internal/repository/clickhouse"
	pgrepo "soilsense/internal/repository/postgres"
	redisrepo "soilsense/internal/repository/redis"
	"soilsense/internal/services/prediction"
	"soilsense/internal/services/training"
	"soilsense/internal/workers"
	chbatch "soilsense/pkg/clickhouse"
	"soilsense/pkg/errors"
	"soilsense/pkg/logger"
)

const connectTimeout = 15 * time.Second

// ========================================
// Phase 1: Configuration & Logging
// ========================================

// MustInitConfig loads configuration and initializes logger
func (c *Container) MustInitConfig() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	c.Config = cfg

	// Initialize logger
	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}

	c.Log = logger.Get()
	c.Log.Infof("Starting %s %s in %s mode", cfg.App.Name, cfg.App.Version, cfg.App.Env)

	// Initialize error tracker
	c.ErrorTracker = provideErrorTracker(cfg, c.Log)
	logger.SetErrorTracker(c.ErrorTracker)

	metrics.Init()
}

// ========================================
// Phase 2: Infrastructure Layer
// ========================================

// MustInitInfrastructure connects every configured data store
func (c *Container) MustInitInfrastructure() {
	var err error
	ctx, cancel := context.WithTimeout(c.Context, connectTimeout)
	defer cancel()

	if c.Config.Postgres.Enabled() {
		c.Log.Info("Connecting to PostgreSQL...")
		c.PG, err = pgclient.NewClient(ctx, c.Config.Postgres)
		if err != nil {
			c.Log.Fatalf("failed to connect postgres: %v", err)
		}
		c.Log.Info("PostgreSQL connected")
	}

	if c.Config.ClickHouse.Enabled() {
		c.Log.Info("Connecting to ClickHouse...")
		c.CH, err = chclient.NewClient(ctx, c.Config.ClickHouse)
		if err != nil {
			c.Log.Fatalf("failed to connect clickhouse: %v", err)
		}
		c.Log.Info("ClickHouse connected")
	}

	if c.Config.Redis.Enabled() {
		c.Log.Info("Connecting to Redis...")
		c.Redis, err = redisclient.NewClient(ctx, c.Config.Redis)
		if err != nil {
			c.Log.Fatalf("failed to connect redis: %v", err)
		}
		c.Log.Info("Redis connected")
	}
}

// ========================================
// Phase 3: Repositories & bundle store
// ========================================

// MustInitRepositories initializes repositories of the configured backends
func (c *Container) MustInitRepositories() {
	if c.PG != nil {
		c.Repos.Samples = pgrepo.NewSampleRepository(c.PG.DB())
		c.Repos.Runs = pgrepo.NewTrainingRunRepository(c.PG.DB())
	}
	if c.CH != nil {
		c.Repos.Predictions = chrepo.NewPredictionRepository(c.CH.Conn())
	}

	c.Log.Info("Repositories initialized")
}

// MustInitStore opens the bundle store selected by MODEL_STORE
func (c *Container) MustInitStore() {
	store, err := provideBundleStore(c.Config.Model, c.Redis)
	if err != nil {
		c.Log.Fatalf("failed to open bundle store: %v", err)
	}
	c.Store = store
	c.StoreKind = c.Config.Model.Store
	c.Log.Infow("Bundle store ready", "store", c.StoreKind)
}

// ========================================
// Phase 4: External Adapters
// ========================================

// MustInitAdapters initializes Kafka plumbing and the prediction log writer
func (c *Container) MustInitAdapters() {
	c.mustInitProducer()

	if c.Config.Kafka.Enabled() {
		// every serving instance must see every model.trained event
		c.Adapters.ModelTrainedConsumer = provideKafkaConsumer(c.Config, kafka.TopicModelTrained, c.Config.Kafka.GroupID+"-reload-"+instanceID(), c.Log)
		if c.Repos.Predictions != nil {
			c.Adapters.PredictionLogConsumer = provideKafkaConsumer(c.Config, kafka.TopicPredictions, c.Config.Kafka.GroupID+"-prediction-log", c.Log)
		}
	}

	if c.Repos.Predictions != nil {
		c.Adapters.PredictionWriter = chbatch.NewBatchWriter(chbatch.BatchWriterConfig[soil.PredictionRecord]{
			FlushFunc:    c.Repos.Predictions.Store,
			TableName:    chrepo.PredictionsTable,
			MaxBatchSize: c.Config.ClickHouse.BatchSize,
			MaxAge:       c.Config.ClickHouse.FlushInterval,
		})
	}
}

func (c *Container) mustInitProducer() {
	if !c.Config.Kafka.Enabled() {
		c.Log.Info("Kafka not configured, events disabled")
		return
	}
	c.Adapters.KafkaProducer = provideKafkaProducer(c.Config, c.Log)
	c.Adapters.Publisher = events.NewPublisher(c.Adapters.KafkaProducer, c.Config.App.Name, c.Log)
}

// ========================================
// Phase 5: Services
// ========================================

// MustInitServices initializes the registry, prediction and training services
func (c *Container) MustInitServices() {
	policy, err := prediction.PolicyFromConfig(c.Config.Policy)
	if err != nil {
		c.Log.Fatalf("invalid fertility policy: %v", err)
	}

	c.Services.Registry = prediction.NewRegistry(c.Store, c.Log, prediction.TrackReloads(c.ErrorTracker))
	c.Services.Prediction = prediction.NewService(
		c.Services.Registry,
		policy,
		c.ErrorTracker,
		c.Log,
		c.predictionSinks()...,
	)
	c.Services.Training = provideTrainingService(c)

	c.Log.Info("Services initialized")
}

// predictionSinks routes served predictions to ClickHouse. With Kafka the log goes
// through the predictions topic; otherwise the batch writer receives them directly.
func (c *Container) predictionSinks() []prediction.Sink {
	switch {
	case c.Adapters.Publisher != nil:
		return []prediction.Sink{prediction.SinkFunc(c.Adapters.Publisher.PublishPrediction)}
	case c.Adapters.PredictionWriter != nil:
		return []prediction.Sink{c.Adapters.PredictionWriter}
	default:
		return nil
	}
}

// ========================================
// Phase 6: Application Layer
// ========================================

// MustInitApplication initializes the HTTP API
func (c *Container) MustInitApplication() {
	opts := []health.Option{}
	if c.PG != nil {
		opts = append(opts, health.WithCheck("postgres", health.PostgresCheck(c.PG.DB())))
	}
	if c.CH != nil {
		opts = append(opts, health.WithCheck("clickhouse", health.ClickHouseCheck(c.CH.Conn())))
	}
	if c.Redis != nil {
		opts = append(opts, health.WithCheck("redis", health.RedisCheck(c.Redis.Client())))
	}

	c.Background.WorkerScheduler = workers.NewScheduler()
	opts = append(opts, health.WithWorkers(c.Background.WorkerScheduler))

	c.Application.HealthHandler = health.New(c.Log, c.Services.Registry, c.Config.App.Name, c.Config.App.Version, opts...)
	c.Application.HTTPServer = api.NewServer(
		api.ServerConfig{
			Port:           c.Config.Server.Port,
			ServiceName:    c.Config.App.Name,
			Version:        c.Config.App.Version,
			RateLimitRPS:   c.Config.Server.RateLimitRPS,
			RateLimitBurst: c.Config.Server.RateLimitBurst,
		},
		api.NewHandlers(c.Services.Prediction, c.Log),
		c.Application.HealthHandler,
		c.Log,
	)
}

// ========================================
// Phase 7: Background Processing
// ========================================

// MustInitBackground registers workers and event consumers
func (c *Container) MustInitBackground() {
	if c.PG != nil || c.CH != nil {
		metrics.RegisterCustomCollector(metrics.NewCustomCollector(c.Log, pgDB(c.PG), chConn(c.CH)))
	}

	c.Background.WorkerScheduler.RegisterWorker(
		workers.NewBundleReloadWorker(c.Services.Registry, c.Config.Workers.BundleReloadInterval, true),
	)

	if c.Repos.Samples != nil {
		var locker workers.Locker
		if c.Redis != nil {
			locker = c.Redis
		}
		c.Background.WorkerScheduler.RegisterWorker(workers.NewRetrainWorker(
			c.Repos.Samples,
			c.Repos.Runs,
			c.Services.Registry,
			c.Services.Training,
			locker,
			c.Config.Workers.RetrainInterval,
			c.Config.Workers.RetrainEnabled,
		))
	}

	if c.Adapters.ModelTrainedConsumer != nil {
		c.Background.ModelReloadSvc = consumers.NewModelReloadConsumer(c.Adapters.ModelTrainedConsumer, c.Services.Registry, c.Log)
	}
	if c.Adapters.PredictionLogConsumer != nil && c.Adapters.PredictionWriter != nil {
		c.Background.PredictionLog = consumers.NewPredictionLogConsumer(c.Adapters.PredictionLogConsumer, c.Adapters.PredictionWriter, c.Log)
	}
}

// ========================================
// Providers
// ========================================

func provideErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return errnoop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment, cfg.App.Version)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return errnoop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

func provideBundleStore(cfg config.ModelConfig, redis *redisclient.Client) (bundle.Store, error) {
	switch cfg.Store {
	case "redis":
		if redis == nil {
			return nil, errors.NewValidationError("MODEL_STORE", "redis store requires REDIS_HOST", cfg.Store)
		}
		return redisrepo.NewBundleStore(redis.Client(), cfg.RedisPrefix), nil
	case "file":
		return bundle.NewFileStore(cfg.ArtifactDir)
	default:
		return nil, errors.NewValidationError("MODEL_STORE", "must be file or redis", cfg.Store)
	}
}

func provideTrainingService(c *Container) *training.Service {
	tc := c.Config.Trainer
	opts := selection.Options{
		KMin:                 tc.KMin,
		KMax:                 tc.KMax,
		Parallelism:          tc.Parallelism,
		SilhouetteSampleSize: tc.SilhouetteSampleSize,
		KMeans: kmeans.Options{
			Seed:        tc.Seed,
			Restarts:    tc.Restarts,
			MaxIter:     tc.MaxIter,
			Tolerance:   tc.Tolerance,
			Parallelism: tc.Parallelism,
		},
	}

	options := []training.Option{training.WithTracker(c.ErrorTracker)}
	if c.Repos.Runs != nil {
		options = append(options, training.WithRunRepository(c.Repos.Runs))
	}
	if c.Adapters.Publisher != nil {
		options = append(options, training.WithPublisher(c.Adapters.Publisher))
	}

	return training.NewService(c.Store, c.StoreKind, opts, c.Log, options...)
}

func pgDB(c *pgclient.Client) *sqlx.DB {
	if c == nil {
		return nil
	}
	return c.DB()
}

func chConn(c *chclient.Client) driver.Conn {
	if c == nil {
		return nil
	}
	return c.Conn()
}

func instanceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return uuid.NewString()[:8]
	}
	return host
}

func provideKafkaProducer(cfg *config.Config, log *logger.Logger) *kafka.Producer {
	log.Info("Initializing Kafka producer...")
	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers: cfg.Kafka.Brokers,
		Async:   false,
	})
	log.Info("Kafka producer initialized")
	return producer
}

func provideKafkaConsumer(cfg *config.Config, topic, groupID string, log *logger.Logger) *kafka.Consumer {
	log.Infow("Initializing Kafka consumer", "topic", topic, "group", groupID)
	return kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers: cfg.Kafka.Brokers,
		GroupID: groupID,
		Topic:   topic,
	})
}
