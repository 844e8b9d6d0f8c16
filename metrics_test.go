package litecache

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// counterValue returns the value of an int64 counter for pool, or 0.
func counterValue(t *testing.T, reader *sdkmetric.ManualReader, name, pool string) int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("expected Sum[int64] for %s, got %T", name, m.Data)
			}
			for _, dp := range sum.DataPoints {
				if v, ok := dp.Attributes.Value(attribute.Key("litecache.pool")); ok && v.AsString() == pool {
					return dp.Value
				}
			}
		}
	}
	return 0
}

func TestMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	cache, memFs, _ := setupTestCache(t, "metrics-test", WithMeter(mp.Meter("test")), WithPool("metered"))

	assertSet(t, cache, "k", "v", Never)
	assertGet(t, cache, "k", "v")
	assertGet(t, cache, "k", "v")
	assertMiss(t, cache, "absent")

	_, _ = cache.Cache("produced", func() (any, error) { return 1, nil }, Never)
	_, _ = cache.Cache("failing", func() (any, error) { return nil, errors.New("boom") }, Never)

	path, _ := cache.pathFor("corrupt")
	if err := writeRawArtifact(memFs, path, "garbage"); err != nil {
		t.Fatalf("Failed to write artifact: %v", err)
	}
	_, _ = cache.Get("corrupt")

	tests := []struct {
		name string
		want int64
	}{
		{"litecache.get.hits", 2},
		{"litecache.get.misses", 3}, // absent, produced, failing
		{"litecache.set.writes", 2},
		{"litecache.producer.calls", 2},
		{"litecache.errors", 2}, // failing producer, corrupt read
	}
	for _, tt := range tests {
		if got := counterValue(t, reader, tt.name, "metered"); got != tt.want {
			t.Errorf("%s = %d, want %d", tt.name, got, tt.want)
		}
	}
}
