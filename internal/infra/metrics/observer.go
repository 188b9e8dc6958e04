package metrics

import (
	"time"

	"github.com/pkg/errors"
	promclient "github.com/prometheus/client_golang/prometheus"

	"github.com/totegamma/oaipmh/internal/usecase"
)

// PrometheusObserver exports OAI request metrics to Prometheus.
type PrometheusObserver struct {
	requests *promclient.CounterVec
	duration *promclient.HistogramVec
}

var _ usecase.Observer = (*PrometheusObserver)(nil)

// NewPrometheusObserver registers the request counter and latency histogram.
// Registering twice against the same registry reuses the existing collectors.
func NewPrometheusObserver(namespace string, reg promclient.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = "oaipmh"
	}
	if reg == nil {
		reg = promclient.DefaultRegisterer
	}
	observer := &PrometheusObserver{
		requests: promclient.NewCounterVec(promclient.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "OAI-PMH requests by verb and outcome.",
		}, []string{"verb", "outcome"}),
		duration: promclient.NewHistogramVec(promclient.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Latency of OAI-PMH requests.",
			Buckets:   promclient.DefBuckets,
		}, []string{"verb"}),
	}

	if err := reg.Register(observer.requests); err != nil {
		are, ok := err.(promclient.AlreadyRegisteredError)
		if !ok {
			return nil, errors.Wrap(err, "register request counter")
		}
		existing, ok := are.ExistingCollector.(*promclient.CounterVec)
		if !ok {
			return nil, errors.Wrap(err, "register request counter")
		}
		observer.requests = existing
	}
	if err := reg.Register(observer.duration); err != nil {
		are, ok := err.(promclient.AlreadyRegisteredError)
		if !ok {
			return nil, errors.Wrap(err, "register request histogram")
		}
		existing, ok := are.ExistingCollector.(*promclient.HistogramVec)
		if !ok {
			return nil, errors.Wrap(err, "register request histogram")
		}
		observer.duration = existing
	}
	return observer, nil
}

func (o *PrometheusObserver) RecordRequest(verb, outcome string, duration time.Duration) {
	if o == nil {
		return
	}
	o.requests.WithLabelValues(verb, outcome).Inc()
	o.duration.WithLabelValues(verb).Observe(duration.Seconds())
}
