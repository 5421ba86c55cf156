package metrics

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"

	"soilsense/pkg/logger"
)

// CustomCollector collects dataset and prediction-log sizes from the databases.
// Either connection may be nil when that backend is not configured.
type CustomCollector struct {
	log        *logger.Logger
	postgres   *sqlx.DB
	clickhouse driver.Conn

	// Descriptors
	trainingSamples *prometheus.Desc
	trainingRuns    *prometheus.Desc
	predictions24h  *prometheus.Desc
}

// NewCustomCollector creates a new custom metrics collector
func NewCustomCollector(log *logger.Logger, postgres *sqlx.DB, clickhouse driver.Conn) *CustomCollector {
	return &CustomCollector{
		log:        log,
		postgres:   postgres,
		clickhouse: clickhouse,

		trainingSamples: prometheus.NewDesc(
			"soilsense_training_samples",
			"Rows in the soil_samples training table",
			nil, nil,
		),
		trainingRuns: prometheus.NewDesc(
			"soilsense_training_runs_stored",
			"Training runs recorded in Postgres",
			nil, nil,
		),
		predictions24h: prometheus.NewDesc(
			"soilsense_predictions_logged_24h",
			"Predictions logged to ClickHouse in the last 24h by cluster",
			[]string{"cluster"}, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *CustomCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.trainingSamples
	ch <- c.trainingRuns
	ch <- c.predictions24h
}

// Collect implements prometheus.Collector
func (c *CustomCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if c.postgres != nil {
		c.collectCount(ctx, ch, c.trainingSamples, "SELECT COUNT(*) FROM soil_samples")
		c.collectCount(ctx, ch, c.trainingRuns, "SELECT COUNT(*) FROM training_runs")
	}
	if c.clickhouse != nil {
		c.collectPredictionCounts(ctx, ch)
	}
}

func (c *CustomCollector) collectCount(ctx context.Context, ch chan<- prometheus.Metric, desc *prometheus.Desc, query string) {
	var count int
	if err := c.postgres.GetContext(ctx, &count, query); err != nil {
		c.log.Errorw("Failed to collect count metric", "query", query, "error", err)
		return
	}

	ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, float64(count))
}

func (c *CustomCollector) collectPredictionCounts(ctx context.Context, ch chan<- prometheus.Metric) {
	rows, err := c.clickhouse.Query(ctx, `
		SELECT toString(cluster_id) AS cluster, count() AS count
		FROM predictions
		WHERE timestamp > now() - INTERVAL 24 HOUR
		GROUP BY cluster_id
	`)
	if err != nil {
		c.log.Errorw("Failed to collect prediction counts", "error", err)
		return
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cluster string
			count   uint64
		)
		if err := rows.Scan(&cluster, &count); err != nil {
			c.log.Errorw("Failed to scan prediction count", "error", err)
			return
		}
		ch <- prometheus.MustNewConstMetric(c.predictions24h, prometheus.GaugeValue, float64(count), cluster)
	}
}

// RegisterCustomCollector registers the custom collector
func RegisterCustomCollector(collector *CustomCollector) {
	prometheus.MustRegister(collector)
}
