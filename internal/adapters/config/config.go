package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"soilsense/pkg/errors"
)

type Config struct {
	App           AppConfig
	Server        ServerConfig
	Model         ModelConfig
	Trainer       TrainerConfig
	Policy        PolicyConfig
	Postgres      PostgresConfig
	ClickHouse    ClickHouseConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	ErrorTracking ErrorTrackingConfig
	Workers       WorkerConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"soilsense"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	Version  string `envconfig:"APP_VERSION" default:"dev"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

type ServerConfig struct {
	Port            int           `envconfig:"HTTP_PORT" default:"8080"`
	RateLimitRPS    float64       `envconfig:"HTTP_RATE_LIMIT_RPS" default:"50"`
	RateLimitBurst  int           `envconfig:"HTTP_RATE_LIMIT_BURST" default:"100"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
}

// ModelConfig selects where trained bundles are published and loaded from.
type ModelConfig struct {
	Store       string `envconfig:"MODEL_STORE" default:"file"` // file|redis
	ArtifactDir string `envconfig:"MODEL_ARTIFACT_DIR" default:"artifacts"`
	RedisPrefix string `envconfig:"MODEL_REDIS_PREFIX" default:"soilsense:bundle"`
}

// TrainerConfig controls cluster-count search and k-means fitting.
type TrainerConfig struct {
	KMin                 int     `envconfig:"TRAINER_K_MIN" default:"2"`
	KMax                 int     `envconfig:"TRAINER_K_MAX" default:"10"`
	Restarts             int     `envconfig:"TRAINER_RESTARTS" default:"10"`
	MaxIter              int     `envconfig:"TRAINER_MAX_ITER" default:"300"`
	Tolerance            float64 `envconfig:"TRAINER_TOLERANCE" default:"0.0001"`
	Seed                 uint64  `envconfig:"TRAINER_SEED" default:"42"`
	Parallelism          int     `envconfig:"TRAINER_PARALLELISM" default:"4"`
	SilhouetteSampleSize int     `envconfig:"TRAINER_SILHOUETTE_SAMPLE_SIZE" default:"0"`
}

// PolicyConfig overrides the fertility policy constants.
type PolicyConfig struct {
	FertilityWeights []float64 `envconfig:"POLICY_FERTILITY_WEIGHTS" default:"0.4,0.3,0.3"`
	CategoryBounds   []float64 `envconfig:"POLICY_CATEGORY_BOUNDS" default:"26,60,90,120"`
}

type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER"`
	Password string `envconfig:"POSTGRES_PASSWORD"`
	Database string `envconfig:"POSTGRES_DB"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"10"`
}

// Enabled reports whether Postgres was configured
func (c PostgresConfig) Enabled() bool {
	return c.Host != ""
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type ClickHouseConfig struct {
	Host          string        `envconfig:"CLICKHOUSE_HOST"`
	Port          int           `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	User          string        `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password      string        `envconfig:"CLICKHOUSE_PASSWORD"`
	Database      string        `envconfig:"CLICKHOUSE_DB" default:"soilsense"`
	BatchSize     int           `envconfig:"CLICKHOUSE_BATCH_SIZE" default:"500"`
	FlushInterval time.Duration `envconfig:"CLICKHOUSE_FLUSH_INTERVAL" default:"5s"`
}

// Enabled reports whether ClickHouse was configured
func (c ClickHouseConfig) Enabled() bool {
	return c.Host != ""
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// Enabled reports whether Redis was configured
func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Brokers []string `envconfig:"KAFKA_BROKERS"`
	GroupID string   `envconfig:"KAFKA_GROUP_ID" default:"soilsense"`
}

// Enabled reports whether Kafka was configured
func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"true"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// WorkerConfig contains intervals for background workers
type WorkerConfig struct {
	BundleReloadInterval time.Duration `envconfig:"WORKER_BUNDLE_RELOAD_INTERVAL" default:"1m"`
	RetrainEnabled       bool          `envconfig:"WORKER_RETRAIN_ENABLED" default:"false"`
	RetrainInterval      time.Duration `envconfig:"WORKER_RETRAIN_INTERVAL" default:"6h"`
}

// Validate checks cross-field constraints envconfig cannot express
func (c *Config) Validate() error {
	if c.Trainer.KMin < 2 {
		return errors.NewValidationError("TRAINER_K_MIN", "must be at least 2", c.Trainer.KMin)
	}
	if c.Trainer.KMax < c.Trainer.KMin {
		return errors.NewValidationError("TRAINER_K_MAX", "must not be below TRAINER_K_MIN", c.Trainer.KMax)
	}
	if c.Trainer.Restarts < 1 {
		return errors.NewValidationError("TRAINER_RESTARTS", "must be at least 1", c.Trainer.Restarts)
	}
	if len(c.Policy.FertilityWeights) != 3 {
		return errors.NewValidationError("POLICY_FERTILITY_WEIGHTS", "expected weights for N,P,K", c.Policy.FertilityWeights)
	}
	if len(c.Policy.CategoryBounds) != 4 {
		return errors.NewValidationError("POLICY_CATEGORY_BOUNDS", "expected four ascending bounds", c.Policy.CategoryBounds)
	}
	for i := 1; i < len(c.Policy.CategoryBounds); i++ {
		if c.Policy.CategoryBounds[i] <= c.Policy.CategoryBounds[i-1] {
			return errors.NewValidationError("POLICY_CATEGORY_BOUNDS", "bounds must be ascending", c.Policy.CategoryBounds)
		}
	}
	switch c.Model.Store {
	case "file":
	case "redis":
		if !c.Redis.Enabled() {
			return errors.NewValidationError("MODEL_STORE", "redis store requires REDIS_HOST", c.Model.Store)
		}
	default:
		return errors.NewValidationError("MODEL_STORE", "must be file or redis", c.Model.Store)
	}
	if c.Workers.RetrainEnabled && !c.Postgres.Enabled() {
		return errors.NewValidationError("WORKER_RETRAIN_ENABLED", "retraining reads samples from postgres", true)
	}
	return nil
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return &cfg, nil
}
