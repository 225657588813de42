// Package metrics holds the Prometheus collectors shared by the API and the worker.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yokitheyo/imagetransfer/internal/domain"
)

const namespace = "imagetransfer"

var (
	TransfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfers_total",
			Help:      "Transfers run, by outcome",
		},
		[]string{"outcome"},
	)

	TransferDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transfer_duration_seconds",
			Help:      "Wall time of a whole transfer, fetch to last upload",
			Buckets:   prometheus.DefBuckets,
		},
	)

	FetchedBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetched_bytes",
			Help:      "Size of fetched source images",
			Buckets:   prometheus.ExponentialBuckets(4<<10, 4, 8),
		},
	)

	BlobsStored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blobs_stored_total",
			Help:      "Blobs uploaded, by backend and kind",
		},
		[]string{"backend", "kind"},
	)

	TasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_tasks_total",
			Help:      "Kafka transfer tasks handled by the worker, by result",
		},
		[]string{"result"},
	)
)

// Outcome maps a transfer error onto a low-cardinality label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, domain.ErrSourceUnavailable):
		return "source_unavailable"
	case errors.Is(err, domain.ErrInvalidGeometry):
		return "invalid_geometry"
	case errors.Is(err, domain.ErrUnsupportedFormat):
		return "unsupported_format"
	case errors.Is(err, domain.ErrDecodeFailed):
		return "decode_failed"
	case errors.Is(err, domain.ErrNotConnected):
		return "not_connected"
	default:
		return "error"
	}
}

func RecordTransfer(err error, seconds float64) {
	TransfersTotal.WithLabelValues(Outcome(err)).Inc()
	TransferDuration.Observe(seconds)
}

func Handler() http.Handler {
	return promhttp.Handler()
}
