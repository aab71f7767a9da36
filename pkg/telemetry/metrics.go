package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names
const (
	MetricOrdersActive       = "gridbot_orders_active"
	MetricOrdersPlacedTotal  = "gridbot_orders_placed_total"
	MetricOrdersFilledTotal  = "gridbot_orders_filled_total"
	MetricVolumeTotal        = "gridbot_volume_total"
	MetricLatencyExchange    = "gridbot_latency_exchange_ms"
	MetricRMSDivergence      = "gridbot_rms_divergence"
	MetricRegenerationsTotal = "gridbot_grid_regenerations_total"
	MetricCircuitBreakerOpen = "gridbot_circuit_breaker_open"
	MetricFeesOwed           = "gridbot_fees_owed"
)

// MetricsHolder holds initialized instruments. Gauge state is keyed by bot
// key for active orders, by account for circuit-breaker state, and by bot
// and side for RMS divergence and fees owed.
type MetricsHolder struct {
	OrdersActive       metric.Int64ObservableGauge
	OrdersPlacedTotal  metric.Int64Counter
	OrdersFilledTotal  metric.Int64Counter
	VolumeTotal        metric.Float64Counter
	LatencyExchange    metric.Float64Histogram
	RMSDivergence      metric.Float64ObservableGauge
	RegenerationsTotal metric.Int64Counter
	CircuitBreakerOpen metric.Int64ObservableGauge
	FeesOwed           metric.Float64ObservableGauge

	// State for observable gauges
	mu               sync.RWMutex
	activeOrdersMap  map[string]int64
	rmsDivergenceMap map[string]float64
	cbOpenMap        map[string]int64
	feesOwedMap      map[string]float64
}

var (
	globalMetrics *MetricsHolder
	initOnce      sync.Once
)

// GetGlobalMetrics returns the singleton metrics holder
func GetGlobalMetrics() *MetricsHolder {
	initOnce.Do(func() {
		globalMetrics = &MetricsHolder{
			activeOrdersMap:  make(map[string]int64),
			rmsDivergenceMap: make(map[string]float64),
			cbOpenMap:        make(map[string]int64),
			feesOwedMap:      make(map[string]float64),
		}
		// Initialization of instruments happens in InitMetrics
	})
	return globalMetrics
}

// InitMetrics initializes instruments using the meter
func (m *MetricsHolder) InitMetrics(meter metric.Meter) error {
	var err error

	m.OrdersPlacedTotal, err = meter.Int64Counter(MetricOrdersPlacedTotal, metric.WithDescription("Total orders placed"))
	if err != nil {
		return err
	}

	m.OrdersFilledTotal, err = meter.Int64Counter(MetricOrdersFilledTotal, metric.WithDescription("Total orders filled"))
	if err != nil {
		return err
	}

	m.VolumeTotal, err = meter.Float64Counter(MetricVolumeTotal, metric.WithDescription("Total trading volume in base asset"))
	if err != nil {
		return err
	}

	m.RegenerationsTotal, err = meter.Int64Counter(MetricRegenerationsTotal, metric.WithDescription("Total grid regenerations triggered"))
	if err != nil {
		return err
	}

	m.LatencyExchange, err = meter.Float64Histogram(MetricLatencyExchange, metric.WithDescription("Latency of chain adapter calls"), metric.WithUnit("ms"))
	if err != nil {
		return err
	}

	// Observables
	m.OrdersActive, err = meter.Int64ObservableGauge(MetricOrdersActive, metric.WithDescription("Number of currently active grid slots"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for bot, val := range m.activeOrdersMap {
				obs.Observe(val, metric.WithAttributes(attribute.String("bot", bot)))
			}
			return nil
		}))
	if err != nil {
		return err
	}

	m.RMSDivergence, err = meter.Float64ObservableGauge(MetricRMSDivergence, metric.WithDescription("RMS divergence of live slot sizes from freshly calculated weighted sizes"),
		metric.WithFloat64Callback(func(ctx context.Context, obs metric.Float64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for key, val := range m.rmsDivergenceMap {
				obs.Observe(val, metric.WithAttributes(attribute.String("bot_side", key)))
			}
			return nil
		}))
	if err != nil {
		return err
	}

	m.CircuitBreakerOpen, err = meter.Int64ObservableGauge(MetricCircuitBreakerOpen, metric.WithDescription("Chain adapter circuit breaker open state (1=open, 0=closed)"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for account, val := range m.cbOpenMap {
				obs.Observe(val, metric.WithAttributes(attribute.String("account", account)))
			}
			return nil
		}))
	if err != nil {
		return err
	}

	m.FeesOwed, err = meter.Float64ObservableGauge(MetricFeesOwed, metric.WithDescription("Accrued native-asset fees owed, by bot and side"),
		metric.WithFloat64Callback(func(ctx context.Context, obs metric.Float64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for key, val := range m.feesOwedMap {
				obs.Observe(val, metric.WithAttributes(attribute.String("bot_side", key)))
			}
			return nil
		}))
	if err != nil {
		return err
	}

	return nil
}

// Helpers to update observable state

func (m *MetricsHolder) SetActiveOrders(bot string, count int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeOrdersMap[bot] = count
}

func (m *MetricsHolder) SetRMSDivergence(botSide string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rmsDivergenceMap[botSide] = value
}

func (m *MetricsHolder) SetCircuitBreakerOpen(account string, open bool) {
	val := int64(0)
	if open {
		val = 1
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cbOpenMap[account] = val
}

func (m *MetricsHolder) SetFeesOwed(botSide string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feesOwedMap[botSide] = value
}

func (m *MetricsHolder) GetActiveOrders() map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make(map[string]int64)
	for k, v := range m.activeOrdersMap {
		res[k] = v
	}
	return res
}

func (m *MetricsHolder) GetRMSDivergence() map[string]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make(map[string]float64)
	for k, v := range m.rmsDivergenceMap {
		res[k] = v
	}
	return res
}
