// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry is local so tests and the binary never collide with the default one.
	Registry = prometheus.NewRegistry()

	BackendRequests = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "backoffice_backend_requests_total",
			Help: "Requests sent to the REST backend, partitioned by method, resource and outcome.",
		},
		[]string{"method", "resource", "status"},
	)
	BackendDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backoffice_backend_request_duration_seconds",
			Help:    "Latency of REST backend requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "resource"},
	)
	Uploads = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "backoffice_image_uploads_total",
			Help: "Image uploads, partitioned by gateway and outcome.",
		},
		[]string{"gateway", "status"},
	)
	UploadBytes = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Name: "backoffice_image_upload_bytes_total",
			Help: "Bytes of image data sent to an upload gateway.",
		},
	)
	Submits = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "backoffice_form_submits_total",
			Help: "Form submissions, partitioned by resource and outcome.",
		},
		[]string{"resource", "outcome"},
	)
	OpenDrafts = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "backoffice_open_drafts",
			Help: "Draft sessions currently held in memory.",
		},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

// Outcome maps an error to a low-cardinality label value.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
