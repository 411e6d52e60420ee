package coverage

import (
	"context"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/Faultbox/objscan/internal/logger"
)

const instrumentationName = "github.com/Faultbox/objscan/internal/coverage"

type metrics struct {
	samples  metric.Int64Counter
	rejects  metric.Int64Counter
	progress metric.Int64ObservableGauge
	reg      metric.Registration

	current atomic.Int64
}

// newMetrics registers the tracker instruments on the global meter
// provider. Instruments that fail to register are left nil and skipped.
func newMetrics() *metrics {
	m := &metrics{}
	meter := otel.Meter(instrumentationName)

	var err error
	m.samples, err = meter.Int64Counter(
		"objscan.coverage.samples",
		metric.WithDescription("Camera ray samples recorded"),
	)
	if err != nil {
		logger.Warn("creating samples counter: " + err.Error())
	}

	m.rejects, err = meter.Int64Counter(
		"objscan.coverage.rejected",
		metric.WithDescription("Camera ray samples dropped as near duplicates"),
	)
	if err != nil {
		logger.Warn("creating rejected counter: " + err.Error())
	}

	m.progress, err = meter.Int64ObservableGauge(
		"objscan.coverage.progress",
		metric.WithDescription("Scan coverage percentage"),
		metric.WithUnit("%"),
	)
	if err != nil {
		logger.Warn("creating progress gauge: " + err.Error())
		return m
	}
	m.reg, err = meter.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			o.ObserveInt64(m.progress, m.current.Load())
			return nil
		},
		m.progress,
	)
	if err != nil {
		logger.Warn("registering progress callback: " + err.Error())
	}
	return m
}

func (m *metrics) recorded() {
	if m.samples != nil {
		m.samples.Add(context.Background(), 1)
	}
}

func (m *metrics) rejected() {
	if m.rejects != nil {
		m.rejects.Add(context.Background(), 1)
	}
}

func (m *metrics) setProgress(pct int) {
	m.current.Store(int64(pct))
}

// close removes the progress callback from the meter.
func (m *metrics) close() {
	if m.reg == nil {
		return
	}
	if err := m.reg.Unregister(); err != nil {
		logger.Warn("unregistering progress callback: " + err.Error())
	}
	m.reg = nil
}
