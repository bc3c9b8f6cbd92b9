package otel

import (
	"context"
	"sync"
	"testing"

	"github.com/MrEthical07/authform"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot authform.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() authform.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := authform.MetricsSnapshot{
		Counters:   make(map[authform.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[authform.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		next := make([]uint64, len(buckets))
		copy(next, buckets)
		out.Histograms[k] = next
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("authform-test")

	src := &fakeSource{
		snapshot: authform.MetricsSnapshot{
			Counters: map[authform.MetricID]uint64{
				authform.MetricEmailCheckStarted: 3,
			},
			Histograms: map[authform.MetricID][]uint64{
				authform.MetricLookupLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 1,
	}

	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(rm.ScopeMetrics) == 0 {
		t.Fatal("expected collected metrics, got none")
	}

	var started, bucketInf int64 = -1, -1
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch m.Name {
			case "authform_email_check_started_total":
				if sum, ok := m.Data.(metricdata.Sum[int64]); ok && len(sum.DataPoints) == 1 {
					started = sum.DataPoints[0].Value
				}
			case "authform_lookup_latency_seconds_bucket_le_inf":
				if g, ok := m.Data.(metricdata.Gauge[int64]); ok && len(g.DataPoints) == 1 {
					bucketInf = g.DataPoints[0].Value
				}
			}
		}
	}
	if started != 3 {
		t.Fatalf("expected email check counter 3, got %d", started)
	}
	if bucketInf != 8 {
		t.Fatalf("expected cumulative +Inf bucket 8, got %d", bucketInf)
	}
}

func TestExporterRejectsNilSource(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("authform-test")

	if _, err := NewOTelExporterFromSource(meter, nil); err == nil {
		t.Fatal("expected error for nil source")
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("authform-test")

	src := &fakeSource{
		snapshot: authform.MetricsSnapshot{
			Counters: map[authform.MetricID]uint64{
				authform.MetricEmailCheckStarted: 1,
			},
			Histograms: map[authform.MetricID][]uint64{
				authform.MetricLookupLatency: {1, 0, 0, 0, 0, 0, 0, 0},
			},
		},
	}

	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[authform.MetricEmailCheckStarted] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
