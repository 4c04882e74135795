package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetState() {
	mu.Lock()
	enabled = false
	registry = nil
	recorder = nil
	mu.Unlock()
}

func TestNilRecorderMethodsAreNoOps(t *testing.T) {
	resetState()
	var rec *Recorder

	assert.NotPanics(t, func() {
		rec.ObserveDriverOp("default", "get", time.Millisecond, nil)
		rec.RecordDriverBytes("default", "read", 10)
		rec.ObserveHTTPServe("default", 200, time.Millisecond)
		rec.SetRegistryStoreCount(1, 0)
	})
}

func TestInitEnablesRecorderAndRegistry(t *testing.T) {
	resetState()
	defer resetState()

	rec := Init()
	require.NotNil(t, rec)
	assert.True(t, IsEnabled())
	require.NotNil(t, GetRegistry())
	assert.Same(t, rec, GetRecorder())
}

func TestObserveDriverOpIncrementsCounterByResult(t *testing.T) {
	resetState()
	defer resetState()

	rec := Init()
	rec.ObserveDriverOp("default", "get", 5*time.Millisecond, nil)
	rec.ObserveDriverOp("default", "get", 5*time.Millisecond, errors.New("boom"))

	assert.Equal(t, float64(1), testutil.ToFloat64(rec.driverOpsTotal.WithLabelValues("default", "get", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(rec.driverOpsTotal.WithLabelValues("default", "get", "error")))
}

func TestRecordDriverBytesIgnoresNonPositive(t *testing.T) {
	resetState()
	defer resetState()

	rec := Init()
	rec.RecordDriverBytes("default", "write", 0)
	rec.RecordDriverBytes("default", "write", -5)
	rec.RecordDriverBytes("default", "write", 100)

	assert.Equal(t, float64(100), testutil.ToFloat64(rec.driverBytesTotal.WithLabelValues("default", "write")))
}

func TestObserveHTTPServeBucketsByStatusClass(t *testing.T) {
	resetState()
	defer resetState()

	rec := Init()
	rec.ObserveHTTPServe("default", 200, time.Millisecond)
	rec.ObserveHTTPServe("default", 404, time.Millisecond)
	rec.ObserveHTTPServe("default", 500, time.Millisecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(rec.httpRequestsTotal.WithLabelValues("default", "2xx")))
	assert.Equal(t, float64(1), testutil.ToFloat64(rec.httpRequestsTotal.WithLabelValues("default", "4xx")))
	assert.Equal(t, float64(1), testutil.ToFloat64(rec.httpRequestsTotal.WithLabelValues("default", "5xx")))
}

func TestSetRegistryStoreCountSetsGauges(t *testing.T) {
	resetState()
	defer resetState()

	rec := Init()
	rec.SetRegistryStoreCount(3, 2)

	assert.Equal(t, float64(3), testutil.ToFloat64(rec.registryStores.WithLabelValues("store")))
	assert.Equal(t, float64(2), testutil.ToFloat64(rec.registryStores.WithLabelValues("alias")))
}

func TestGetRecorderNilBeforeInit(t *testing.T) {
	resetState()
	defer resetState()

	assert.False(t, IsEnabled())
	assert.Nil(t, GetRegistry())
	assert.Nil(t, GetRecorder())
}
