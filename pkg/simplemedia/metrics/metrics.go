// Package metrics records ingest lifecycle events as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tendant/simple-media/pkg/simplemedia"
)

const namespace = "simplemedia"

// Sink is a simplemedia.EventSink backed by Prometheus collectors
type Sink struct {
	registry *prometheus.Registry

	ingestsStarted   *prometheus.CounterVec
	ingestsTotal     *prometheus.CounterVec
	deriveDuration   *prometheus.HistogramVec
	thumbnailFailure prometheus.Counter
	deletions        prometheus.Counter
}

// New creates a sink and registers its collectors on registry. A nil
// registry gets a fresh one that also carries the Go and process collectors.
func New(registry *prometheus.Registry) (*Sink, error) {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	var err error
	s := &Sink{registry: registry}

	s.ingestsStarted, err = register(registry, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingests_started_total",
		Help:      "Ingests that reached derivation, by processing type.",
	}, []string{"processing_type"}))
	if err != nil {
		return nil, err
	}
	s.ingestsTotal, err = register(registry, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingests_total",
		Help:      "Resolved ingests, by outcome.",
	}, []string{"outcome"}))
	if err != nil {
		return nil, err
	}
	s.deriveDuration, err = register(registry, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "derivation_duration_seconds",
		Help:      "Time from derivation start to commit.",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"processing_type"}))
	if err != nil {
		return nil, err
	}
	s.thumbnailFailure, err = register(registry, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "thumbnail_failures_total",
		Help:      "Committed ingests that have no thumbnail.",
	}))
	if err != nil {
		return nil, err
	}
	s.deletions, err = register(registry, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "content_deleted_total",
		Help:      "Deleted content records.",
	}))
	if err != nil {
		return nil, err
	}
	return s, nil
}

// register adds c to registry, reusing the collector already registered
// under the same descriptor.
func register[T prometheus.Collector](registry *prometheus.Registry, c T) (T, error) {
	if err := registry.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

var _ simplemedia.EventSink = (*Sink)(nil)

// Handler serves the registry in the Prometheus exposition format
func (s *Sink) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry})
}

func (s *Sink) IngestStarted(ctx context.Context, contentID string, pt simplemedia.ProcessingType) error {
	s.ingestsStarted.WithLabelValues(string(pt)).Inc()
	return nil
}

func (s *Sink) IngestCompleted(ctx context.Context, record *simplemedia.ContentRecord, elapsed time.Duration) error {
	s.ingestsTotal.WithLabelValues("committed").Inc()
	s.deriveDuration.WithLabelValues(string(record.ProcessingType)).Observe(elapsed.Seconds())
	return nil
}

func (s *Sink) IngestFailed(ctx context.Context, contentID string, reason string) error {
	s.ingestsTotal.WithLabelValues("failed").Inc()
	return nil
}

func (s *Sink) ThumbnailFailed(ctx context.Context, contentID string) error {
	s.thumbnailFailure.Inc()
	return nil
}

func (s *Sink) ContentDeleted(ctx context.Context, contentID string) error {
	s.deletions.Inc()
	return nil
}
