package bootstrap

import (
	"context"
	"sync"
	"time"

	chclient "soilsense/internal/adapters/clickhouse"
	"soilsense/internal/adapters/kafka"
	pgclient "soilsense/internal/adapters/postgres"
	redisclient "soilsense/internal/adapters/redis"
	"soilsense/pkg/errors"
	"soilsense/pkg/logger"
)

// Lifecycle manages graceful startup and shutdown of components
type Lifecycle struct {
	shutdownTimeout time.Duration
}

// NewLifecycle creates a new lifecycle manager
func NewLifecycle() *Lifecycle {
	return &Lifecycle{
		shutdownTimeout: 60 * time.Second,
	}
}

// Shutdown performs coordinated cleanup of all components in order:
// 1. No new requests accepted
// 2. Workers finish cleanly
// 3. Consumers drain and buffered predictions are flushed
// 4. Producer closes after consumers
// 5. Errors and logs flushed
// 6. Database connections last (other components may need them)
func (l *Lifecycle) Shutdown(c *Container, log *logger.Logger) {
	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), l.shutdownTimeout)
	defer shutdownCancel()

	log.Info("[1/7] Stopping HTTP server...")
	if c.Application.HTTPServer != nil {
		timeout := c.Config.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		httpCtx, httpCancel := context.WithTimeout(shutdownCtx, timeout)
		if err := c.Application.HTTPServer.Shutdown(httpCtx); err != nil {
			log.Errorw("HTTP server shutdown failed", "error", err)
		}
		httpCancel()
	}

	log.Info("[2/7] Stopping background workers...")
	if c.Background.WorkerScheduler != nil {
		if err := c.Background.WorkerScheduler.Stop(); err != nil {
			log.Errorw("Workers shutdown failed", "error", err)
		} else {
			log.Info("Workers stopped")
		}
	}

	// consumers close their readers once the context is canceled
	log.Info("[3/7] Waiting for consumer goroutines...")
	l.waitForGoroutines(c.WG, 10*time.Second, log)

	log.Info("[4/7] Flushing prediction log...")
	if c.Adapters.PredictionWriter != nil {
		if err := c.Adapters.PredictionWriter.Stop(shutdownCtx); err != nil {
			log.Errorw("Prediction log flush failed", "error", err)
		}
	}

	log.Info("[5/7] Closing Kafka producer...")
	l.closeProducer(c.Adapters.KafkaProducer, log)

	log.Info("[6/7] Flushing error tracker...")
	l.flushErrorTracker(c.ErrorTracker, shutdownCtx, log)

	log.Info("[7/7] Closing database connections...")
	l.closeDatabases(c.PG, c.CH, c.Redis, log)

	if err := logger.Sync(); err != nil {
		log.Warn("Log sync completed with warnings")
	}

	log.Info("Graceful shutdown complete")
}

func (l *Lifecycle) closeProducer(producer *kafka.Producer, log *logger.Logger) {
	if producer == nil {
		return
	}
	if err := producer.Close(); err != nil {
		log.Errorw("Kafka producer close failed", "error", err)
	} else {
		log.Info("Kafka producer closed")
	}
}

// waitForGoroutines waits for all goroutines with a timeout
func (l *Lifecycle) waitForGoroutines(wg *sync.WaitGroup, timeout time.Duration, log *logger.Logger) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("All goroutines finished")
	case <-time.After(timeout):
		log.Warnw("Some goroutines did not finish within timeout", "timeout", timeout)
	}
}

// flushErrorTracker flushes the error tracker (Sentry, etc.)
func (l *Lifecycle) flushErrorTracker(tracker errors.Tracker, ctx context.Context, log *logger.Logger) {
	if tracker == nil {
		return
	}

	flushCtx, flushCancel := context.WithTimeout(ctx, 3*time.Second)
	defer flushCancel()

	if err := tracker.Flush(flushCtx); err != nil {
		log.Errorw("Error tracker flush failed", "error", err)
	}
}

// closeDatabases closes every configured connection
func (l *Lifecycle) closeDatabases(
	pgClient *pgclient.Client,
	chClient *chclient.Client,
	redisClient *redisclient.Client,
	log *logger.Logger,
) {
	dbErrors := &errors.MultiError{}

	if pgClient != nil {
		dbErrors.Add(errors.Wrap(pgClient.Close(), "postgres"))
	}
	if chClient != nil {
		dbErrors.Add(errors.Wrap(chClient.Close(), "clickhouse"))
	}
	if redisClient != nil {
		dbErrors.Add(errors.Wrap(redisClient.Close(), "redis"))
	}

	if err := dbErrors.ToError(); err != nil {
		log.Errorw("Database close errors", "error", err)
	} else {
		log.Info("Database connections closed")
	}
}
