// Package metrics exposes the relay's operational counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectionsOpen is the number of currently open websocket
	// connections, identified or not.
	ConnectionsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flock_connections_open",
		Help: "Number of open websocket connections.",
	})

	// EventsPublished counts location events accepted for fan-out.
	EventsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flock_location_events_published_total",
		Help: "Location events accepted for broadcast.",
	})

	// EventsDelivered counts per-subscriber deliveries.
	EventsDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flock_location_events_delivered_total",
		Help: "Per-subscriber location event deliveries.",
	})

	// DeadConnections counts connections torn down after a failed
	// delivery rather than a client-initiated close.
	DeadConnections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flock_dead_connections_total",
		Help: "Connections reaped after a failed delivery.",
	})
)
