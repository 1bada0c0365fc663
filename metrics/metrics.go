package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Real-time broadcast metrics
var (
	// BroadcastsTotal counts Broadcast calls by event kind.
	BroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kds_broadcasts_total",
			Help: "Total broadcasts dispatched by event kind",
		},
		[]string{"event"},
	)

	// DeliveriesTotal counts per-connection delivery outcomes (delivered/evicted).
	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kds_deliveries_total",
			Help: "Per-connection broadcast deliveries by outcome",
		},
		[]string{"outcome"},
	)

	// ConnectedClients tracks registered connections by role.
	ConnectedClients = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kds_connected_clients",
			Help: "Currently registered WebSocket clients by role",
		},
		[]string{"role"},
	)

	// InboundFramesTotal counts inbound client frames by message kind.
	InboundFramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kds_inbound_frames_total",
			Help: "Inbound WebSocket frames by message kind",
		},
		[]string{"kind"},
	)
)

// Order lifecycle metrics
var (
	OrdersCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Total orders committed",
		},
	)

	OrderStatusChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_status_changes_total",
			Help: "Order status changes by new status",
		},
		[]string{"status"},
	)

	TableNotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "table_notifications_total",
			Help: "Waiter calls and bill requests by kind",
		},
		[]string{"kind"},
	)
)
