package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServiceSnapshotAggregates(t *testing.T) {
	svc := NewMetricsService()

	svc.ObserveHTTPRequest("GET", "/api/v1/courses", 200, 20*time.Millisecond)
	svc.ObserveHTTPRequest("GET", "/api/v1/courses", 200, 40*time.Millisecond)
	svc.RecordCacheOperation(true, time.Millisecond)
	svc.RecordCacheOperation(false, time.Millisecond)
	svc.ObserveDBQuery("list_courses", 10*time.Millisecond)

	snap := svc.Snapshot()
	assert.Equal(t, uint64(2), snap.RequestsTotal)
	assert.InDelta(t, 30.0, snap.AverageRequestDurationMs, 0.01)
	assert.Equal(t, uint64(1), snap.CacheHits)
	assert.Equal(t, uint64(1), snap.CacheMisses)
	assert.InDelta(t, 0.5, snap.CacheHitRatio, 0.0001)
	assert.Equal(t, uint64(1), snap.DBQueryCount)
	assert.False(t, snap.GeneratedAt.IsZero())
}

func TestMetricsServiceNilReceiverIsSafe(t *testing.T) {
	var svc *MetricsService

	svc.ObserveHTTPRequest("GET", "/", 200, time.Millisecond)
	svc.RecordCacheOperation(true, time.Millisecond)
	svc.ObserveDBQuery("noop", time.Millisecond)

	assert.Zero(t, svc.Snapshot().RequestsTotal)
	require.NotNil(t, svc.Handler())
}
