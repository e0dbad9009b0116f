package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "signal_trader"

// Metrics holds the trader's Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	cyclesTotal        *prometheus.CounterVec
	cycleDuration      prometheus.Histogram
	signalsTotal       *prometheus.CounterVec
	tradesOpened       *prometheus.CounterVec
	tradesClosed       *prometheus.CounterVec
	realisedPnL        *prometheus.GaugeVec
	protectionDegraded *prometheus.CounterVec
	currentPrice       *prometheus.GaugeVec
	openPositions      prometheus.Gauge
	balance            *prometheus.GaugeVec
	errorsTotal        *prometheus.CounterVec
}

// NewMetrics creates the collectors on a private registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		cyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cycles_total",
				Help:      "Trading cycles run, by outcome",
			},
			[]string{"outcome"},
		),
		cycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "cycle_duration_seconds",
				Help:      "Wall time of one trading cycle",
				Buckets:   prometheus.DefBuckets,
			},
		),
		signalsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "signals_total",
				Help:      "Approved signals handled by the cycle, by outcome",
			},
			[]string{"outcome"},
		),
		tradesOpened: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trades_opened_total",
				Help:      "Trades opened",
			},
			[]string{"symbol", "side"},
		),
		tradesClosed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trades_closed_total",
				Help:      "Trades closed, by terminal status",
			},
			[]string{"symbol", "status"},
		),
		realisedPnL: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "realised_pnl",
				Help:      "Cumulative realised profit and loss in quote currency",
			},
			[]string{"symbol"},
		),
		protectionDegraded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "protection_degraded_total",
				Help:      "Protective legs the venue did not accept",
			},
			[]string{"leg"},
		),
		currentPrice: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "current_price",
				Help:      "Last price seen by the position monitor",
			},
			[]string{"symbol"},
		),
		openPositions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "open_positions",
				Help:      "OPEN trades after the last cycle",
			},
		),
		balance: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "balance",
				Help:      "Last synced wallet balance",
			},
			[]string{"asset", "kind"},
		),
		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Unit failures, by error category",
			},
			[]string{"category"},
		),
	}

	m.registry.MustRegister(
		m.cyclesTotal,
		m.cycleDuration,
		m.signalsTotal,
		m.tradesOpened,
		m.tradesClosed,
		m.realisedPnL,
		m.protectionDegraded,
		m.currentPrice,
		m.openPositions,
		m.balance,
		m.errorsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the Prometheus metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordCycle records one cycle's outcome and duration
func (m *Metrics) RecordCycle(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.cyclesTotal.WithLabelValues(outcome).Inc()
	m.cycleDuration.Observe(took.Seconds())
}

// RecordSignal counts a signal outcome
func (m *Metrics) RecordSignal(outcome string) {
	if m == nil {
		return
	}
	m.signalsTotal.WithLabelValues(outcome).Inc()
}

// RecordTradeOpened counts an opened trade
func (m *Metrics) RecordTradeOpened(symbol, side string) {
	if m == nil {
		return
	}
	m.tradesOpened.WithLabelValues(symbol, side).Inc()
}

// RecordTradeClosed counts a closed trade and adds its realised pnl
func (m *Metrics) RecordTradeClosed(symbol, status string, pnl float64) {
	if m == nil {
		return
	}
	m.tradesClosed.WithLabelValues(symbol, status).Inc()
	m.realisedPnL.WithLabelValues(symbol).Add(pnl)
}

// RecordProtectionDegraded counts a rejected protective leg
func (m *Metrics) RecordProtectionDegraded(leg string) {
	if m == nil {
		return
	}
	m.protectionDegraded.WithLabelValues(leg).Inc()
}

// UpdatePrice updates the current price metric
func (m *Metrics) UpdatePrice(symbol string, price float64) {
	if m == nil {
		return
	}
	m.currentPrice.WithLabelValues(symbol).Set(price)
}

// SetOpenPositions sets the open position gauge
func (m *Metrics) SetOpenPositions(n int) {
	if m == nil {
		return
	}
	m.openPositions.Set(float64(n))
}

// UpdateBalance records a synced wallet balance
func (m *Metrics) UpdateBalance(asset string, total, available, locked float64) {
	if m == nil {
		return
	}
	m.balance.WithLabelValues(asset, "total").Set(total)
	m.balance.WithLabelValues(asset, "available").Set(available)
	m.balance.WithLabelValues(asset, "locked").Set(locked)
}

// RecordError records an error metric
func (m *Metrics) RecordError(category string) {
	if m == nil {
		return
	}
	m.errorsTotal.WithLabelValues(category).Inc()
}
