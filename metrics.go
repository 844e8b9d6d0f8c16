package litecache

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// cacheMetrics counts cache activity for one pool.
type cacheMetrics struct {
	hits          metric.Int64Counter
	misses        metric.Int64Counter
	writes        metric.Int64Counter
	errors        metric.Int64Counter
	producerCalls metric.Int64Counter
	attrs         metric.MeasurementOption
}

func newCacheMetrics(meter metric.Meter, pool string) (*cacheMetrics, error) {
	m := &cacheMetrics{
		attrs: metric.WithAttributes(attribute.String("litecache.pool", pool)),
	}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
		unit string
	}{
		{&m.hits, "litecache.get.hits", "Reads that returned a fresh value", "{read}"},
		{&m.misses, "litecache.get.misses", "Reads that found no fresh value", "{read}"},
		{&m.writes, "litecache.set.writes", "Artifacts written", "{write}"},
		{&m.errors, "litecache.errors", "Failed reads, writes and producer calls", "{error}"},
		{&m.producerCalls, "litecache.producer.calls", "Producer invocations on cache misses", "{call}"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}
	return m, nil
}

func (m *cacheMetrics) hit()     { m.hits.Add(context.Background(), 1, m.attrs) }
func (m *cacheMetrics) miss()    { m.misses.Add(context.Background(), 1, m.attrs) }
func (m *cacheMetrics) write()   { m.writes.Add(context.Background(), 1, m.attrs) }
func (m *cacheMetrics) failure() { m.errors.Add(context.Background(), 1, m.attrs) }
func (m *cacheMetrics) produce() { m.producerCalls.Add(context.Background(), 1, m.attrs) }
