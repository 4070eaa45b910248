package remote

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"jvanrhyn.dev/remotetree/internal/filemeta"
)

var errNoRemove = stderrors.New("transport does not support removal")

// Metrics are the Prometheus collectors recorded by Instrumented.
type Metrics struct {
	requests  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	bytesDown prometheus.Counter
}

// NewMetrics registers the remote call collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		requests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "remotetree_remote_requests_total",
				Help: "Total number of remote calls by operation and outcome",
			},
			[]string{"op", "outcome"},
		),
		duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "remotetree_remote_request_duration_seconds",
				Help:    "Remote call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		bytesDown: f.NewCounter(
			prometheus.CounterOpts{
				Name: "remotetree_remote_bytes_downloaded_total",
				Help: "Total bytes downloaded from the remote store",
			},
		),
	}
}

func (m *Metrics) observe(op string, start time.Time, err error) {
	m.requests.WithLabelValues(op, Classify(err).String()).Inc()
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// Instrumented records metrics for every call made through it.
type Instrumented struct {
	next    Transport
	metrics *Metrics
}

// NewInstrumented wraps next.
func NewInstrumented(next Transport, m *Metrics) *Instrumented {
	return &Instrumented{next: next, metrics: m}
}

func (i *Instrumented) List(ctx context.Context, dir string) ([]filemeta.Record, error) {
	start := time.Now()
	recs, err := i.next.List(ctx, dir)
	i.metrics.observe("list", start, err)
	return recs, err
}

func (i *Instrumented) Download(ctx context.Context, file string) ([]byte, error) {
	start := time.Now()
	data, err := i.next.Download(ctx, file)
	i.metrics.observe("download", start, err)
	if err == nil {
		i.metrics.bytesDown.Add(float64(len(data)))
	}
	return data, err
}

func (i *Instrumented) Remove(ctx context.Context, p string) error {
	r, ok := i.next.(Remover)
	if !ok {
		return Unavailable("remove", p, errNoRemove)
	}
	start := time.Now()
	err := r.Remove(ctx, p)
	i.metrics.observe("remove", start, err)
	return err
}

// CanRemove reports whether t can delete remote entries. Wrappers always
// implement Remover, so this looks through them.
func CanRemove(t Transport) bool {
	switch w := t.(type) {
	case *Coalescing:
		return CanRemove(w.next)
	case *Instrumented:
		return CanRemove(w.next)
	}
	_, ok := t.(Remover)
	return ok
}
