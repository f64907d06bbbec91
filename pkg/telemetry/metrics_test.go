// SPDX-License-Identifier: Apache-2.0
package telemetry

import (
	"context"
	"fmt"
	"sync"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/jllopis/swarm/pkg/errors"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := NewMetricsWithProvider(mp)
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}
	return m, reader
}

func counterTotal(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("%s is not an int64 sum", name)
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

func TestNewMetrics(t *testing.T) {
	m, err := NewMetrics()
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}
	if m == nil {
		t.Fatal("expected non-nil Metrics")
	}
}

func TestRecordCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordStep(ctx, "Coordinator")
	m.RecordStep(ctx, "MedicalAdvisor")
	m.RecordHandoff(ctx, "Coordinator", "MedicalAdvisor")
	m.RecordToolCall(ctx, "MedicalAdvisor", "assess_medical_urgency", true)
	m.RecordError(ctx, errors.New(errors.CodeMalformedOutput, "bad", nil).WithRecoverable(true), "engine")
	m.RecordError(ctx, fmt.Errorf("plain"), "engine")
	m.RecordError(ctx, nil, "engine")
	m.RecordRetry(ctx, errors.New(errors.CodeLLMError, "down", nil))
	m.RecordCircuitBreakerState(ctx, "llm", 2)

	checks := map[string]int64{
		"swarm.steps.total":      2,
		"swarm.handoffs.total":   1,
		"swarm.tool_calls.total": 1,
		"swarm.errors.total":     2,
		"swarm.retries.total":    1,
	}
	for name, want := range checks {
		if got := counterTotal(t, reader, name); got != want {
			t.Errorf("%s: got %d, want %d", name, got, want)
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordStep(ctx, "a")
	m.RecordHandoff(ctx, "a", "b")
	m.RecordToolCall(ctx, "a", "t", false)
	m.RecordError(ctx, fmt.Errorf("x"), "engine")
	m.RecordRetry(ctx, nil)
	m.RecordCircuitBreakerState(ctx, "llm", 0)
}

func TestConcurrentMetrics(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				m.RecordStep(ctx, fmt.Sprintf("agent-%d", i))
			}
		}(i)
	}
	wg.Wait()

	if got := counterTotal(t, reader, "swarm.steps.total"); got != 100 {
		t.Errorf("expected 100 steps, got %d", got)
	}
}
