package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Image ingestion outcomes
const (
	ImageDownloaded = "downloaded"
	ImageReused     = "reused"
	ImageRejected   = "rejected"
	ImageFailed     = "failed"
	ImagePruned     = "pruned"
)

var (
	syncTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "printsync_sync_total",
			Help: "Total number of product import/sync runs.",
		},
		[]string{"action", "status"},
	)
	syncDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "printsync_sync_duration_seconds",
			Help:    "Histogram of product sync durations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"action"},
	)
	imagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "printsync_images_total",
			Help: "Image ingestion outcomes.",
		},
		[]string{"result"},
	)
	tasksEnqueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "printsync_tasks_enqueued_total",
			Help: "Background tasks enqueued by dispatch.",
		},
		[]string{"name"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "printsync_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "endpoint", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "printsync_http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"method", "endpoint"},
	)
)

func init() {
	prometheus.MustRegister(syncTotal, syncDuration, imagesTotal, tasksEnqueued, httpRequests, httpDuration)
}

// RecordSync records one finished import or sync
func RecordSync(action, status string, duration time.Duration) {
	syncTotal.WithLabelValues(action, status).Inc()
	syncDuration.WithLabelValues(action).Observe(duration.Seconds())
}

// RecordImage records one image ingestion outcome
func RecordImage(result string) {
	imagesTotal.WithLabelValues(result).Inc()
}

// RecordTask records one enqueued background task
func RecordTask(name string) {
	tasksEnqueued.WithLabelValues(name).Inc()
}

// RecordRequest records one HTTP request; endpoint is the route pattern, not the raw path
func RecordRequest(method, endpoint string, statusCode int, duration time.Duration) {
	httpRequests.WithLabelValues(method, endpoint, classifyStatus(statusCode)).Inc()
	httpDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

func classifyStatus(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "2xx"
	case statusCode >= 300 && statusCode < 400:
		return "3xx"
	case statusCode >= 400 && statusCode < 500:
		return "4xx"
	case statusCode >= 500 && statusCode < 600:
		return "5xx"
	}
	return "unknown"
}

// Handler exposes the registered metrics for scraping
func Handler() http.Handler {
	return promhttp.Handler()
}
