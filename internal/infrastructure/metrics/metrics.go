package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// reservationsTotal counts order reservation attempts by outcome
	reservationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "larder_reservations_total",
		Help: "Order reservation attempts by result",
	}, []string{"result"})

	reservedUnits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "larder_reserved_units_total",
		Help: "Units reserved against inventory batches",
	})

	orderTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "larder_order_transitions_total",
		Help: "Order lifecycle actions by action and result",
	}, []string{"action", "result"})

	// txDuration tracks how long stock-affecting transactions hold their locks
	txDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "larder_stock_tx_duration_seconds",
		Help:    "Duration of stock-affecting database transactions",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
	}, []string{"operation"})

	txRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "larder_stock_tx_retries_total",
		Help: "Transactions retried after a deadlock or lock wait timeout",
	}, []string{"operation"})
)

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

func ObserveReservation(err error, units int) {
	if err != nil {
		reservationsTotal.WithLabelValues(ResultFailure).Inc()
		return
	}
	reservationsTotal.WithLabelValues(ResultSuccess).Inc()
	reservedUnits.Add(float64(units))
}

func ObserveTransition(action string, err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	orderTransitionsTotal.WithLabelValues(action, result).Inc()
}

func ObserveTx(operation string, start time.Time) {
	txDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func ObserveRetry(operation string) {
	txRetries.WithLabelValues(operation).Inc()
}
