package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// StoreErrors counts remote store failures by operation.
var StoreErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "snappit_store_errors_total",
		Help: "Remote store operation failures",
	},
	[]string{"operation"},
)

// Rollbacks counts optimistic mutations that were rolled back after a
// failed authoritative write.
var Rollbacks = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "snappit_optimistic_rollbacks_total",
		Help: "Optimistic mutations reverted after a remote failure",
	},
	[]string{"view", "operation"},
)

// FeedRebuilds counts full list rebuilds triggered by subscription events.
var FeedRebuilds = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "snappit_feed_rebuilds_total",
		Help: "Full view rebuilds triggered by remote change notifications",
	},
	[]string{"view"},
)

// WebSocketBackpressureDrops counts messages dropped because a websocket
// client's send buffer was closed or full.
var WebSocketBackpressureDrops = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "snappit_ws_backpressure_drops_total",
		Help: "Websocket messages dropped due to backpressure",
	},
	[]string{"hub", "reason"},
)
