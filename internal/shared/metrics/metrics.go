package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "legal_analysis"

var (
	runsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_started_total",
		Help:      "Pipeline runs requested, counted before the per-document lock",
	}, []string{"kind"})
	runsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_completed_total",
		Help:      "Pipeline runs that reached completed",
	}, []string{"kind"})
	runsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_failed_total",
		Help:      "Pipeline runs that ended in error, by failure reason",
	}, []string{"kind", "reason"})
	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Wall-clock duration of pipeline runs",
		Buckets:   []float64{1, 5, 10, 30, 60, 120, 180, 300, 600},
	}, []string{"kind"})
	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "stage_duration_seconds",
		Help:      "Duration of individual stage calls",
		Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"stage"})
	slotsInUse = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "admission_slots_in_use",
		Help:      "Admission slots currently held",
	})
	slotsWaiting = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "admission_waiting",
		Help:      "Callers blocked waiting for an admission slot",
	})
	httpPanics = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_panics_total",
		Help:      "Handler panics recovered by the HTTP middleware",
	}, []string{"route"})
	jobsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "worker_jobs_received_total",
		Help:      "Queue messages received by the worker",
	})
	jobsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "worker_jobs_completed_total",
		Help:      "Queue messages processed and deleted",
	})
	jobsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "worker_jobs_failed_total",
		Help:      "Queue messages left for redelivery after a failure",
	})
	jobsUnrecoverable = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "worker_jobs_deleted_unrecoverable_total",
		Help:      "Queue messages deleted because they could not be parsed",
	})
)

// IncRunStarted counts a requested run.
func IncRunStarted(kind string) { runsStarted.WithLabelValues(kind).Inc() }

// IncRunCompleted counts a successful run.
func IncRunCompleted(kind string) { runsCompleted.WithLabelValues(kind).Inc() }

// IncRunFailed counts a failed run.
func IncRunFailed(kind, reason string) { runsFailed.WithLabelValues(kind, reason).Inc() }

// ObserveRunDuration records how long a run held its slot.
func ObserveRunDuration(kind string, d time.Duration) {
	runDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// ObserveStageDuration records how long the orchestrator waited on a stage.
func ObserveStageDuration(stage string, d time.Duration) {
	stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// SetAdmission publishes the admission controller occupancy.
func SetAdmission(inUse, waiting int) {
	slotsInUse.Set(float64(inUse))
	slotsWaiting.Set(float64(waiting))
}

// IncHTTPPanic counts a recovered handler panic for route.
func IncHTTPPanic(route string) { httpPanics.WithLabelValues(route).Inc() }

func IncJobsReceived() { jobsReceived.Inc() }

func IncJobsCompleted() { jobsCompleted.Inc() }

func IncJobsFailed() { jobsFailed.Inc() }

func IncJobsDeletedUnrecoverable() { jobsUnrecoverable.Inc() }

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
