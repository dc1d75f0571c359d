package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DepositsReconciled counts deposit reconciliation outcomes per trigger source.
	DepositsReconciled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deposits_reconciled_total",
		Help: "Deposit reconciliation attempts by source and outcome",
	}, []string{"source", "outcome"})

	// OrdersPlacedTotal counts successfully placed orders by bundle type.
	OrdersPlacedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Orders placed by bundle type",
	}, []string{"bundle_type"})

	// OrdersRejectedTotal counts orders rejected before persistence.
	OrdersRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_rejected_total",
		Help: "Orders rejected before persistence, by reason",
	}, []string{"reason"})

	// OrdersRefundedTotal counts refunded orders.
	OrdersRefundedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_refunded_total",
		Help: "Orders refunded",
	})

	// StockReservationsTotal counts stock engine operations.
	StockReservationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_reservations_total",
		Help: "Stock reservation engine operations by action",
	}, []string{"action"})

	// StaleClaimsReleased counts deposit claims released by the sweeper.
	StaleClaimsReleased = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deposit_stale_claims_released_total",
		Help: "Stale deposit processing claims released by the sweep job",
	})
)
