package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/customs-duty-engine/internal/core/domain"
)

// CalculationMetrics records duty calculation outcomes. It satisfies ports.CalculationObserver.
type CalculationMetrics struct {
	service string

	calculationsTotal   *prometheus.CounterVec
	calculationDuration *prometheus.HistogramVec
	warningsTotal       *prometheus.CounterVec
	batchSize           *prometheus.HistogramVec
	batchFailedItems    *prometheus.CounterVec
	breakerState        *prometheus.GaugeVec
}

func newCalculationMetrics(registry prometheus.Registerer, service string) *CalculationMetrics {
	calculationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "duty",
			Subsystem: "calculation",
			Name:      "total",
			Help:      "Total duty calculations by outcome and winning regime.",
		},
		[]string{"service", "status", "best_regime"},
	)
	calculationDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "duty",
			Subsystem: "calculation",
			Name:      "duration_seconds",
			Help:      "Duty calculation duration in seconds, including rate lookups.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"service", "status"},
	)
	warningsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "duty",
			Subsystem: "calculation",
			Name:      "warnings_total",
			Help:      "Total warnings attached to calculation results.",
		},
		[]string{"service"},
	)
	batchSize := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "duty",
			Subsystem: "batch",
			Name:      "items",
			Help:      "Distribution of items per calculation batch.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500},
		},
		[]string{"service"},
	)
	batchFailedItems := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "duty",
			Subsystem: "batch",
			Name:      "failed_items_total",
			Help:      "Total batch items that failed individually.",
		},
		[]string{"service"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "duty",
			Subsystem: "resilience",
			Name:      "breaker_state",
			Help:      "Circuit breaker state per operation (0 closed, 1 half-open, 2 open).",
		},
		[]string{"service", "operation"},
	)

	registry.MustRegister(calculationsTotal, calculationDuration, warningsTotal, batchSize, batchFailedItems, breakerState)

	return &CalculationMetrics{
		service:             service,
		calculationsTotal:   calculationsTotal,
		calculationDuration: calculationDuration,
		warningsTotal:       warningsTotal,
		batchSize:           batchSize,
		batchFailedItems:    batchFailedItems,
		breakerState:        breakerState,
	}
}

func (m *CalculationMetrics) ObserveCalculation(result *domain.CalculationResult, duration time.Duration, err error) {
	status := calculationStatus(err)
	regime := "none"
	if result != nil {
		regime = string(result.BestRegime)
		if n := len(result.Warnings); n > 0 {
			m.warningsTotal.WithLabelValues(m.service).Add(float64(n))
		}
	}
	m.calculationsTotal.WithLabelValues(m.service, status, regime).Inc()
	m.calculationDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
}

func (m *CalculationMetrics) ObserveBatch(size, failed int, _ time.Duration) {
	m.batchSize.WithLabelValues(m.service).Observe(float64(size))
	if failed > 0 {
		m.batchFailedItems.WithLabelValues(m.service).Add(float64(failed))
	}
}

// ObserveBreakerState matches resilience.StateListener.
func (m *CalculationMetrics) ObserveBreakerState(operation string, _, to gobreaker.State) {
	m.breakerState.WithLabelValues(m.service, operation).Set(float64(to))
}

func calculationStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case domain.IsKind(err, domain.ErrInvalidInput):
		return "invalid_input"
	case domain.IsKind(err, domain.ErrCalculationUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
