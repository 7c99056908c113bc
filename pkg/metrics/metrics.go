package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// OrdersProcessed counts accepted orders by side (buy/sell) and type (market/limit)
var OrdersProcessed = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pincex_orders_processed_total",
		Help: "Total number of orders processed by the engine",
	},
	[]string{"side", "type"},
)

// OrdersRejected counts intake failures by reason
var OrdersRejected = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pincex_orders_rejected_total",
		Help: "Total number of orders rejected at intake",
	},
	[]string{"reason"},
)

// OrderLatency records latency distribution for order processing
var OrderLatency = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "pincex_order_processing_latency_seconds",
		Help:    "Latency in seconds to process individual orders",
		Buckets: prometheus.DefBuckets,
	},
)

// Trade flow
var (
	TradesExecuted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pincex_trades_executed_total",
			Help: "Total number of trades appended to the tape",
		},
	)

	TradedVolume = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pincex_traded_quantity_total",
			Help: "Sum of traded quantity",
		},
	)

	UnfilledVolume = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pincex_market_unfilled_quantity_total",
			Help: "Market order quantity discarded for lack of liquidity",
		},
	)

	TradesPublishFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pincex_trades_publish_failed_total",
			Help: "Trade batches the publisher failed to deliver",
		},
	)
)

// Book maintenance
var (
	OrdersCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pincex_cancel_requests_total",
			Help: "Total number of cancel requests handled",
		},
	)

	OrdersModified = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pincex_modify_requests_total",
			Help: "Total number of modify requests handled",
		},
	)

	RestingOrders = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pincex_resting_orders",
			Help: "Number of orders resting in the book",
		},
		[]string{"side"},
	)
)

func init() {
	prometheus.MustRegister(OrdersProcessed, OrdersRejected, OrderLatency)
	prometheus.MustRegister(TradesExecuted, TradedVolume, UnfilledVolume, TradesPublishFailed)
	prometheus.MustRegister(OrdersCancelled, OrdersModified, RestingOrders)
}
