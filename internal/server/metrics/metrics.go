// Package metrics exports media lifecycle telemetry to Prometheus.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Observer captures telemetry for lifecycle operations.
type Observer interface {
	RecordStage(kind string, sizeBytes int64, err error)
	RecordCommit(items int, duration time.Duration, err error)
	RecordCollect(deleted int, duration time.Duration, err error)
	RecordSweep(reaped int, err error)
	// RecordFileDeleteFailure counts tolerated file deletion failures.
	RecordFileDeleteFailure(op string)
}

// PrometheusObserver exports lifecycle metrics to Prometheus.
type PrometheusObserver struct {
	duration          *prometheus.HistogramVec
	operationErrors   *prometheus.CounterVec
	stagedBytes       *prometheus.CounterVec
	photos            *prometheus.CounterVec
	fileDeleteFailure *prometheus.CounterVec
}

// NewPrometheusObserver registers the lifecycle metrics on reg. Collectors
// that are already registered are reused.
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = "gophtour_media"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	o := &PrometheusObserver{}
	var err error

	if o.duration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "operation_duration_seconds",
		Help:      "Latency of media lifecycle operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})); err != nil {
		return nil, err
	}
	if o.operationErrors, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operation_errors_total",
		Help:      "Count of failed media lifecycle operations.",
	}, []string{"operation"})); err != nil {
		return nil, err
	}
	if o.stagedBytes, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "staged_bytes_total",
		Help:      "Cumulative size of staged uploads.",
	}, []string{"owner_kind"})); err != nil {
		return nil, err
	}
	if o.photos, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "photos_total",
		Help:      "Photos moved through lifecycle transitions.",
	}, []string{"transition"})); err != nil {
		return nil, err
	}
	if o.fileDeleteFailure, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "file_delete_failures_total",
		Help:      "File deletions that failed and were tolerated.",
	}, []string{"operation"})); err != nil {
		return nil, err
	}

	return o, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, fmt.Errorf("register media metric: %w", err)
	}
	return c, nil
}

func (o *PrometheusObserver) RecordStage(kind string, sizeBytes int64, err error) {
	if o == nil {
		return
	}
	if err != nil {
		o.operationErrors.WithLabelValues("stage").Inc()
		return
	}
	o.stagedBytes.WithLabelValues(kind).Add(float64(sizeBytes))
	o.photos.WithLabelValues("staged").Inc()
}

func (o *PrometheusObserver) RecordCommit(items int, duration time.Duration, err error) {
	if o == nil {
		return
	}
	o.record("commit", duration, err)
	if err == nil {
		o.photos.WithLabelValues("committed").Add(float64(items))
	}
}

func (o *PrometheusObserver) RecordCollect(deleted int, duration time.Duration, err error) {
	if o == nil {
		return
	}
	o.record("collect", duration, err)
	if err == nil {
		o.photos.WithLabelValues("collected").Add(float64(deleted))
	}
}

func (o *PrometheusObserver) RecordSweep(reaped int, err error) {
	if o == nil {
		return
	}
	if err != nil {
		o.operationErrors.WithLabelValues("sweep").Inc()
		return
	}
	o.photos.WithLabelValues("expired").Add(float64(reaped))
}

func (o *PrometheusObserver) RecordFileDeleteFailure(op string) {
	if o == nil {
		return
	}
	o.fileDeleteFailure.WithLabelValues(op).Inc()
}

func (o *PrometheusObserver) record(op string, duration time.Duration, err error) {
	o.duration.WithLabelValues(op).Observe(duration.Seconds())
	if err != nil {
		o.operationErrors.WithLabelValues(op).Inc()
	}
}

type nopObserver struct{}

// Nop returns an Observer that records nothing.
func Nop() Observer { return nopObserver{} }

func (nopObserver) RecordStage(string, int64, error) {}

func (nopObserver) RecordCommit(int, time.Duration, error) {}

func (nopObserver) RecordCollect(int, time.Duration, error) {}

func (nopObserver) RecordSweep(int, error) {}

func (nopObserver) RecordFileDeleteFailure(string) {}
