package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var SignalsReceived = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "revbot_signals_received_total",
		Help: "Number of parsed signals received from the monitored channel",
	},
	[]string{"action"},
)

var SignalsIgnored = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "revbot_signals_ignored_total",
		Help: "Number of inbound texts that matched no signal layout",
	},
)

var OrdersSubmitted = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "revbot_orders_submitted_total",
		Help: "Number of market orders submitted to the venue",
	},
	[]string{"side"},
)

var PositionsClosed = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "revbot_positions_closed_total",
		Help: "Number of positions closed, by strategy and reason",
	},
	[]string{"strategy", "reason"},
)

func init() {
	prometheus.MustRegister(
		SignalsReceived,
		SignalsIgnored,
		OrdersSubmitted,
		PositionsClosed,
	)
}
