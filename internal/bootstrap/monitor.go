package bootstrap

import (
	"context"
	"time"

	"gridbot/internal/alert"
	"gridbot/internal/core"
	"gridbot/pkg/telemetry"
)

// breakerAware is satisfied by rpcclient.Client; the fake chain adapter has
// no transport breaker and is left unmonitored.
type breakerAware interface {
	CircuitBreakerOpen() bool
}

// CircuitBreakerMonitor polls the Chain Adapter's transport breaker and
// mirrors its state onto the gridbot_circuit_breaker_open gauge, firing a
// Critical alert on each closed->open transition rather than once per poll.
type CircuitBreakerMonitor struct {
	chain    breakerAware
	account  string
	alerts   *alert.AlertManager
	metrics  *telemetry.MetricsHolder
	interval time.Duration
	logger   core.ILogger

	wasOpen bool
}

// NewCircuitBreakerMonitor returns nil if chain doesn't expose breaker
// state, so callers can skip adding it to the runner list.
func NewCircuitBreakerMonitor(chain interface{}, account string, alerts *alert.AlertManager, metrics *telemetry.MetricsHolder, logger core.ILogger) *CircuitBreakerMonitor {
	aware, ok := chain.(breakerAware)
	if !ok {
		return nil
	}
	return &CircuitBreakerMonitor{
		chain: aware, account: account, alerts: alerts, metrics: metrics,
		interval: 10 * time.Second, logger: logger.WithField("component", "circuit_breaker_monitor"),
	}
}

func (m *CircuitBreakerMonitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

func (m *CircuitBreakerMonitor) check(ctx context.Context) {
	open := m.chain.CircuitBreakerOpen()
	if m.metrics != nil {
		m.metrics.SetCircuitBreakerOpen(m.account, open)
	}
	if open && !m.wasOpen {
		m.logger.Warn("chain adapter circuit breaker opened", "account", m.account)
		if m.alerts != nil {
			m.alerts.Alert(ctx, "Circuit breaker open",
				"Chain adapter requests are being short-circuited after repeated failures",
				alert.Critical, map[string]string{"account": m.account})
		}
	}
	if !open && m.wasOpen {
		m.logger.Info("chain adapter circuit breaker closed", "account", m.account)
	}
	m.wasOpen = open
}
