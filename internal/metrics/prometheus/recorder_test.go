package prometheus

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordCallObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordCall("100003.1", 5*time.Millisecond, "ok")

	count := testutil.CollectAndCount(r.callDuration)
	assert.Equal(t, 1, count)
}

func TestRecordBytesAccumulatesByDirection(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordBytes("read", 100)
	r.RecordBytes("read", 50)
	r.RecordBytes("write", 10)

	assert.Equal(t, float64(150), testutil.ToFloat64(r.bytesTransferred.WithLabelValues("read")))
	assert.Equal(t, float64(10), testutil.ToFloat64(r.bytesTransferred.WithLabelValues("write")))
}

func TestSetActiveConnectionsReportsGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.SetActiveConnections(7)
	assert.Equal(t, float64(7), testutil.ToFloat64(r.activeConnections))

	r.SetActiveConnections(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(r.activeConnections))
}

func TestConnectionLifecycleCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordConnectionAccepted()
	r.RecordConnectionAccepted()
	r.RecordConnectionClosed()
	r.RecordConnectionForceClosed()

	assert.Equal(t, float64(2), testutil.ToFloat64(r.connectionsAccepted))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.connectionsClosed))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.connectionsForced))
}

func TestRecordMountLabelsMountVsUnmount(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordMount(true)
	r.RecordMount(false)
	r.RecordMount(false)

	assert.Equal(t, float64(1), testutil.ToFloat64(r.mounts.WithLabelValues("mount")))
	assert.Equal(t, float64(2), testutil.ToFloat64(r.mounts.WithLabelValues("unmount")))
}

func TestNewRegistersAgainstGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	_ = New(reg)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
