package broadcast

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// eventsPublished counts hub publishes by event kind.
	eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "broadcast_events_published_total",
		Help: "Total number of events published to the hub by kind",
	}, []string{"kind"})

	// subscribersDropped counts subscribers dropped on buffer overflow.
	subscribersDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "broadcast_subscribers_dropped_total",
		Help: "Total number of subscribers dropped because their buffer overflowed",
	})

	// subscriberCount tracks the number of active subscriptions.
	subscriberCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "broadcast_subscribers",
		Help: "Number of active hub subscriptions",
	})
)
