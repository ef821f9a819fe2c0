package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	ticksTotal   *prometheus.CounterVec
	candlesTotal *prometheus.CounterVec
	signalsTotal *prometheus.CounterVec
	ordersTotal  *prometheus.CounterVec
	statusTotal  *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	lastPrice    *prometheus.GaugeVec
	latency      *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		ticksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "breakout_ticks_total",
				Help: "Total number of quote ticks accepted by the aggregator",
			},
			[]string{"symbol"},
		),
		candlesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "breakout_candles_total",
				Help: "Total number of finalized one-minute candles published",
			},
			[]string{"symbol"},
		),
		signalsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "breakout_signals_total",
				Help: "Total number of breakout signals detected",
			},
			[]string{"symbol"},
		),
		ordersTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "breakout_orders_total",
				Help: "Total number of broker order submissions by kind",
			},
			[]string{"kind"},
		),
		statusTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "breakout_trade_transitions_total",
				Help: "Total number of trade state transitions by target status",
			},
			[]string{"status"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "breakout_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "breakout_last_price",
				Help: "Last traded price for a symbol",
			},
			[]string{"symbol"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "breakout_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordTick(symbol string)   { r.ticksTotal.WithLabelValues(symbol).Inc() }
func (r *Recorder) RecordCandle(symbol string) { r.candlesTotal.WithLabelValues(symbol).Inc() }
func (r *Recorder) RecordSignal(symbol string) { r.signalsTotal.WithLabelValues(symbol).Inc() }
func (r *Recorder) RecordOrder(kind string)    { r.ordersTotal.WithLabelValues(kind).Inc() }

func (r *Recorder) RecordTradeStatus(status string) { r.statusTotal.WithLabelValues(status).Inc() }

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) { r.errorsTotal.WithLabelValues(kind).Inc() }

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
