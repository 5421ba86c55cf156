package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Worker metrics
	WorkerExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soilsense_worker_executions_total",
			Help: "Total number of worker executions",
		},
		[]string{"worker", "status"}, // status: success|error
	)

	WorkerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "soilsense_worker_duration_seconds",
			Help:    "Worker execution duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 600},
		},
		[]string{"worker"},
	)

	WorkerLastRun = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "soilsense_worker_last_run_timestamp",
			Help: "Unix timestamp of last worker execution",
		},
		[]string{"worker"},
	)

	// Prediction metrics
	Predictions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soilsense_predictions_total",
			Help: "Total number of prediction requests",
		},
		[]string{"status"}, // status: success|invalid|no_model|error
	)

	PredictionsByCluster = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soilsense_predictions_by_cluster_total",
			Help: "Successful predictions by assigned cluster and fertility category",
		},
		[]string{"cluster", "category"},
	)

	PredictionLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "soilsense_prediction_latency_seconds",
			Help:    "Prediction latency in seconds",
			Buckets: []float64{0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		},
	)

	PredictionsExtrapolated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "soilsense_predictions_extrapolated_total",
			Help: "Predictions with at least one reading outside its documented range",
		},
	)

	// Model metrics
	BundleReloads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soilsense_bundle_reloads_total",
			Help: "Total number of bundle reload attempts",
		},
		[]string{"trigger", "status"}, // trigger: startup|poll|event; status: swapped|unchanged|error
	)

	ActiveModel = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "soilsense_active_model_info",
			Help: "Currently served bundle (value is always 1)",
		},
		[]string{"version", "k"},
	)

	// Training metrics
	TrainingRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soilsense_training_runs_total",
			Help: "Total number of training runs",
		},
		[]string{"status"}, // status: success|error
	)

	TrainingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "soilsense_training_duration_seconds",
			Help:    "Training run duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
		},
	)

	CandidateSilhouette = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "soilsense_candidate_silhouette",
			Help: "Mean silhouette of each candidate cluster count in the last training run",
		},
		[]string{"k"},
	)

	CandidateInertia = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "soilsense_candidate_inertia",
			Help: "Within-cluster sum of squares of each candidate cluster count in the last training run",
		},
		[]string{"k"},
	)

	// HTTP metrics
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soilsense_http_requests_total",
			Help: "Total HTTP API requests",
		},
		[]string{"route", "code"},
	)

	// Database metrics
	DBQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soilsense_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"database", "operation", "status"}, // database: postgres|clickhouse|redis
	)

	DBQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "soilsense_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"database", "operation"},
	)

	// System metrics
	KafkaMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soilsense_kafka_messages_total",
			Help: "Total Kafka messages produced/consumed",
		},
		[]string{"topic", "direction", "status"}, // direction: produced|consumed
	)
)

var initOnce sync.Once

// Init registers all metrics with Prometheus
func Init() {
	initOnce.Do(func() {
		// Worker metrics
		prometheus.MustRegister(WorkerExecutions)
		prometheus.MustRegister(WorkerDuration)
		prometheus.MustRegister(WorkerLastRun)

		// Prediction metrics
		prometheus.MustRegister(Predictions)
		prometheus.MustRegister(PredictionsByCluster)
		prometheus.MustRegister(PredictionLatency)
		prometheus.MustRegister(PredictionsExtrapolated)

		// Model metrics
		prometheus.MustRegister(BundleReloads)
		prometheus.MustRegister(ActiveModel)

		// Training metrics
		prometheus.MustRegister(TrainingRuns)
		prometheus.MustRegister(TrainingDuration)
		prometheus.MustRegister(CandidateSilhouette)
		prometheus.MustRegister(CandidateInertia)

		prometheus.MustRegister(HTTPRequests)

		// Database metrics
		prometheus.MustRegister(DBQueries)
		prometheus.MustRegister(DBQueryDuration)

		// System metrics
		prometheus.MustRegister(KafkaMessages)
	})
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordWorkerExecution records a worker execution
func RecordWorkerExecution(worker string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	WorkerExecutions.WithLabelValues(worker, status).Inc()
	WorkerDuration.WithLabelValues(worker).Observe(duration.Seconds())
	WorkerLastRun.WithLabelValues(worker).SetToCurrentTime()
}

// RecordPrediction records one prediction request. cluster is ignored unless status is success.
func RecordPrediction(status string, cluster int, category string, extrapolated bool, latency time.Duration) {
	Predictions.WithLabelValues(status).Inc()
	PredictionLatency.Observe(latency.Seconds())

	if status != "success" {
		return
	}
	PredictionsByCluster.WithLabelValues(strconv.Itoa(cluster), category).Inc()
	if extrapolated {
		PredictionsExtrapolated.Inc()
	}
}

// RecordBundleReload records a reload attempt
func RecordBundleReload(trigger, status string) {
	BundleReloads.WithLabelValues(trigger, status).Inc()
}

// SetActiveModel replaces the active model info series
func SetActiveModel(version string, k int) {
	ActiveModel.Reset()
	ActiveModel.WithLabelValues(version, strconv.Itoa(k)).Set(1)
}

// RecordTrainingRun records a finished training run
func RecordTrainingRun(duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	TrainingRuns.WithLabelValues(status).Inc()
	TrainingDuration.Observe(duration.Seconds())
}

// RecordCandidate records the scores of one candidate cluster count
func RecordCandidate(k int, silhouette, inertia float64) {
	label := strconv.Itoa(k)
	CandidateSilhouette.WithLabelValues(label).Set(silhouette)
	CandidateInertia.WithLabelValues(label).Set(inertia)
}

// RecordHTTPRequest records an API response code
func RecordHTTPRequest(route string, code int) {
	HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// RecordDBQuery records a database query
func RecordDBQuery(database, operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	DBQueries.WithLabelValues(database, operation, status).Inc()
	DBQueryDuration.WithLabelValues(database, operation).Observe(duration.Seconds())
}

// RecordKafkaMessage records a produced or consumed message
func RecordKafkaMessage(topic, direction string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	KafkaMessages.WithLabelValues(topic, direction, status).Inc()
}
