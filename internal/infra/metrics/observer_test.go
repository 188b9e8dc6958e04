package metrics

import (
	"testing"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusObserver(t *testing.T) {
	reg := promclient.NewRegistry()
	observer, err := NewPrometheusObserver("", reg)
	require.NoError(t, err)

	observer.RecordRequest("ListRecords", "ok", 20*time.Millisecond)
	observer.RecordRequest("ListRecords", "ok", 30*time.Millisecond)
	observer.RecordRequest("ListRecords", "badResumptionToken", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(observer.requests.WithLabelValues("ListRecords", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(observer.requests.WithLabelValues("ListRecords", "badResumptionToken")))
	assert.Equal(t, 1, testutil.CollectAndCount(observer.duration))

	// a second observer on the same registry shares the collectors
	again, err := NewPrometheusObserver("", reg)
	require.NoError(t, err)
	again.RecordRequest("ListRecords", "ok", time.Millisecond)
	assert.Equal(t, 3.0, testutil.ToFloat64(observer.requests.WithLabelValues("ListRecords", "ok")))
}

func TestNilObserver(t *testing.T) {
	var observer *PrometheusObserver
	assert.NotPanics(t, func() {
		observer.RecordRequest("Identify", "ok", time.Millisecond)
	})
}
