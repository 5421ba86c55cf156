package bootstrap

import (
	"context"
	"sync"

	chclient "soilsense/internal/adapters/clickhouse"
	"soilsense/internal/adapters/config"
	"soilsense/internal/adapters/kafka"
	pgclient "soilsense/internal/adapters/postgres"
	redisclient "soilsense/internal/adapters/redis"
	"soilsense/internal/api"
	"soilsense/internal/api/health"
	"soilsense/internal/consumers"
	"soilsense/internal/domain/soil"
	"soilsense/internal/events"
	"soilsense/internal/ml/bundle"
	chrepo "soilsense/internal/repository/clickhouse"
	pgrepo "soilsense/internal/repository/postgres"
	"soilsense/internal/services/prediction"
	"soilsense/internal/services/training"
	"soilsense/internal/workers"
	chbatch "soilsense/pkg/clickhouse"
	"soilsense/pkg/errors"
	"soilsense/pkg/logger"
)

// Container holds all application dependencies and their lifecycle.
// Optional backends stay nil when not configured.
type Container struct {
	// Core configuration & logging
	Config       *config.Config
	Log          *logger.Logger
	ErrorTracker errors.Tracker

	// Infrastructure Layer (Data stores)
	PG    *pgclient.Client
	CH    *chclient.Client
	Redis *redisclient.Client

	Repos *Repositories

	// Where bundles are published and loaded from
	Store     bundle.Store
	StoreKind string

	Services *Services

	Adapters *Adapters

	Application *Application

	Background *Background

	// Lifecycle management
	Lifecycle *Lifecycle
	WG        *sync.WaitGroup
	Context   context.Context
	Cancel    context.CancelFunc
}

// Repositories groups all repositories
type Repositories struct {
	Samples     *pgrepo.SampleRepository
	Runs        *pgrepo.TrainingRunRepository
	Predictions *chrepo.PredictionRepository
}

// Services groups domain services
type Services struct {
	Registry   *prediction.Registry
	Prediction *prediction.Service
	Training   *training.Service
}

// Adapters groups Kafka plumbing and the prediction log writer
type Adapters struct {
	KafkaProducer         *kafka.Producer
	Publisher             *events.Publisher
	ModelTrainedConsumer  *kafka.Consumer
	PredictionLogConsumer *kafka.Consumer
	PredictionWriter      *chbatch.BatchWriter[soil.PredictionRecord]
}

// Application groups application layer components
type Application struct {
	HTTPServer    *api.Server
	HealthHandler *health.Handler
}

// Background groups all background processing components
type Background struct {
	WorkerScheduler *workers.Scheduler
	ModelReloadSvc  *consumers.ModelReloadConsumer
	PredictionLog   *consumers.PredictionLogConsumer
}

// NewContainer creates a new dependency container
func NewContainer() *Container {
	ctx, cancel := context.WithCancel(context.Background())

	return &Container{
		Repos:       &Repositories{},
		Services:    &Services{},
		Adapters:    &Adapters{},
		Application: &Application{},
		Background:  &Background{},
		Lifecycle:   NewLifecycle(),
		WG:          &sync.WaitGroup{},
		Context:     ctx,
		Cancel:      cancel,
	}
}

// MustInit initializes the serving process in order.
// Panics on any initialization error (fail-fast at startup)
func (c *Container) MustInit() {
	c.MustInitConfig()
	c.MustInitInfrastructure()
	c.MustInitRepositories()
	c.MustInitStore()
	c.MustInitAdapters()
	c.MustInitServices()
	c.MustInitApplication()
	c.MustInitBackground()
}

// MustInitTrainer initializes only what a training run needs
func (c *Container) MustInitTrainer() {
	c.MustInitConfig()
	c.MustInitInfrastructure()
	c.MustInitRepositories()
	c.MustInitStore()
	c.mustInitProducer()
	c.Services.Training = provideTrainingService(c)
}

// Start loads the current bundle and starts background components
func (c *Container) Start() error {
	c.Log.Info("Starting all systems...")

	// a missing model is not fatal: the process serves 503 until a bundle appears
	if _, err := c.Services.Registry.Reload(c.Context, prediction.TriggerStartup); err != nil {
		if !errors.Is(err, errors.ErrNoModel) {
			return errors.Wrap(err, "failed to load bundle")
		}
		c.Log.Warn("No trained bundle yet, predictions unavailable until one is published")
	}

	if c.Adapters.PredictionWriter != nil {
		c.Adapters.PredictionWriter.Start(c.Context)
	}

	c.startConsumers()

	// Start HTTP server
	c.WG.Add(1)
	go func() {
		defer c.WG.Done()
		if err := c.Application.HTTPServer.Start(); err != nil {
			c.Log.Errorf("HTTP server failed: %v", err)
			c.Cancel() // Trigger shutdown on fatal HTTP error
		}
	}()

	if err := c.Background.WorkerScheduler.Start(c.Context); err != nil {
		return errors.Wrap(err, "failed to start workers")
	}

	c.Log.Info("All systems operational")
	return nil
}

// startConsumers starts configured Kafka consumers in background goroutines
func (c *Container) startConsumers() {
	consumers := []struct {
		name string
		svc  interface{ Start(context.Context) error }
	}{}

	if c.Background.ModelReloadSvc != nil {
		consumers = append(consumers, struct {
			name string
			svc  interface{ Start(context.Context) error }
		}{"model_reload", c.Background.ModelReloadSvc})
	}
	if c.Background.PredictionLog != nil {
		consumers = append(consumers, struct {
			name string
			svc  interface{ Start(context.Context) error }
		}{"prediction_log", c.Background.PredictionLog})
	}

	names := make([]string, 0, len(consumers))
	c.WG.Add(len(consumers))
	for _, consumer := range consumers {
		svc := consumer.svc
		name := consumer.name
		names = append(names, name)
		go func() {
			defer c.WG.Done()
			if err := svc.Start(c.Context); err != nil && c.Context.Err() == nil {
				c.Log.Errorw(name+" consumer failed", "error", err)
			}
		}()
	}

	c.Log.Infow("Event consumers started", "consumers", names)
}

// Shutdown performs graceful shutdown in the correct order
func (c *Container) Shutdown() {
	c.Log.Info("Initiating graceful shutdown...")

	// Cancel application context to signal all other components to stop
	c.Cancel()

	c.Lifecycle.Shutdown(c, c.Log)
}

// Close releases what MustInitTrainer opened
func (c *Container) Close() {
	c.Cancel()
	c.Lifecycle.closeProducer(c.Adapters.KafkaProducer, c.Log)
	c.Lifecycle.flushErrorTracker(c.ErrorTracker, context.Background(), c.Log)
	c.Lifecycle.closeDatabases(c.PG, c.CH, c.Redis, c.Log)
	_ = logger.Sync()
}
