// Package telemetry wires the bot's cycle/order counters into an OpenTelemetry
// meter backed by a Prometheus exporter, matching SPEC_FULL.md §10.
package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"go.opentelemetry.io/otel/metric"
)

const meterName = "deltaarb"

// Metrics holds every counter/gauge the orchestrator and executor report
// against (scan duration is recorded by the orchestrator around each scan).
type Metrics struct {
	CyclesTotal           metric.Int64Counter
	ScanDuration          metric.Float64Histogram
	OpensTotal            metric.Int64Counter
	ClosesTotal           metric.Int64Counter
	RotationsTotal        metric.Int64Counter
	RollbackInvokedTotal  metric.Int64Counter
	RollbackFailedTotal   metric.Int64Counter

	mu             sync.RWMutex
	positionAgeSec float64
	positionGauge  metric.Float64ObservableGauge
}

var (
	global     *Metrics
	globalOnce sync.Once
)

// Init builds the Prometheus exporter, registers it as the global meter
// provider, and constructs every instrument. Call once at startup; the
// exporter's registry is served by the /metrics HTTP handler.
func Init() (*Metrics, error) {
	var initErr error
	globalOnce.Do(func() {
		global, initErr = build()
	})
	return global, initErr
}

func build() (*Metrics, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, err
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(meterName)
	m := &Metrics{}

	var err2 error
	m.CyclesTotal, err2 = meter.Int64Counter("deltaarb_cycles_total", metric.WithDescription("Orchestrator cycles completed"))
	if err2 != nil {
		return nil, err2
	}
	m.ScanDuration, err2 = meter.Float64Histogram("deltaarb_scan_duration_seconds", metric.WithDescription("Scan stage wall time"), metric.WithUnit("s"))
	if err2 != nil {
		return nil, err2
	}
	m.OpensTotal, err2 = meter.Int64Counter("deltaarb_opens_total", metric.WithDescription("Positions opened"))
	if err2 != nil {
		return nil, err2
	}
	m.ClosesTotal, err2 = meter.Int64Counter("deltaarb_closes_total", metric.WithDescription("Positions closed"))
	if err2 != nil {
		return nil, err2
	}
	m.RotationsTotal, err2 = meter.Int64Counter("deltaarb_rotations_total", metric.WithDescription("Scheduled rotations completed"))
	if err2 != nil {
		return nil, err2
	}
	m.RollbackInvokedTotal, err2 = meter.Int64Counter("deltaarb_rollback_invoked_total", metric.WithDescription("Leg-A rollbacks invoked after leg-B exhaustion"))
	if err2 != nil {
		return nil, err2
	}
	m.RollbackFailedTotal, err2 = meter.Int64Counter("deltaarb_rollback_failed_total", metric.WithDescription("Leg-A rollbacks that themselves failed (critical imbalance)"))
	if err2 != nil {
		return nil, err2
	}
	m.positionGauge, err2 = meter.Float64ObservableGauge("deltaarb_position_age_seconds", metric.WithDescription("Age of the current position, if any"),
		metric.WithFloat64Callback(func(ctx context.Context, obs metric.Float64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			obs.Observe(m.positionAgeSec)
			return nil
		}))
	if err2 != nil {
		return nil, err2
	}

	return m, nil
}

// SetPositionAge updates the observable gauge backing the position-age
// metric; called once per cycle by the orchestrator.
func (m *Metrics) SetPositionAge(seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positionAgeSec = seconds
}
