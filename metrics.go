package odbcarrow

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sink names used as the "sink" label.
const (
	sinkStream   = "stream"
	sinkZeroCopy = "zero_copy"
	sinkTable    = "table"
)

type metrics struct {
	queries       *prometheus.CounterVec
	queryDuration *prometheus.HistogramVec
	batches       prometheus.Counter
	rows          prometheus.Counter
	encodedBytes  prometheus.Counter
}

var (
	registeredMu sync.Mutex
	registered   = map[prometheus.Registerer]*metrics{}
)

// metricsFor returns the query metrics registered with r, registering them
// on first use. Connections sharing a registerer share their collectors. A
// nil registerer gets a fresh, unregistered set.
func metricsFor(r prometheus.Registerer) *metrics {
	if r == nil {
		return newMetrics(nil)
	}

	registeredMu.Lock()
	defer registeredMu.Unlock()

	if m, ok := registered[r]; ok {
		return m
	}
	m := newMetrics(r)
	registered[r] = m
	return m
}

// newMetrics registers the query metrics with r. A nil registerer creates
// unregistered metrics.
func newMetrics(r prometheus.Registerer) *metrics {
	return &metrics{
		queries: promauto.With(r).NewCounterVec(prometheus.CounterOpts{
			Name: "odbcarrow_queries_total",
			Help: "Total number of queries by sink and outcome.",
		}, []string{"sink", "outcome"}),
		queryDuration: promauto.With(r).NewHistogramVec(prometheus.HistogramOpts{
			Name: "odbcarrow_query_duration_seconds",
			Help: "Time taken by a query, from connect to the last batch.",

			Buckets:                         prometheus.DefBuckets,
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 0,
		}, []string{"sink"}),
		batches: promauto.With(r).NewCounter(prometheus.CounterOpts{
			Name: "odbcarrow_batches_total",
			Help: "Total number of Arrow batches produced.",
		}),
		rows: promauto.With(r).NewCounter(prometheus.CounterOpts{
			Name: "odbcarrow_rows_total",
			Help: "Total number of rows converted to Arrow.",
		}),
		encodedBytes: promauto.With(r).NewCounter(prometheus.CounterOpts{
			Name: "odbcarrow_encoded_bytes_total",
			Help: "Total number of bytes written as Arrow IPC streams.",
		}),
	}
}

// outcomeLabel returns the "outcome" label for a query result.
func outcomeLabel(err *Error) string {
	if err == nil {
		return "success"
	}
	switch err.Type {
	case ErrConnection:
		return "connection_error"
	case ErrSQL:
		return "sql_error"
	case ErrArrow:
		return "arrow_error"
	default:
		return "runtime_error"
	}
}
