// Package metrics exposes Prometheus collectors for the party server.
//
// Metrics are served at /metrics in the Prometheus text format.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PartiesActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "watchparty_parties_active",
		Help: "Number of parties held by the store at the last sweep",
	})

	PartiesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "watchparty_parties_created_total",
		Help: "Total number of parties created",
	})

	PartiesEnded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "watchparty_parties_ended_total",
		Help: "Total number of parties removed from the store",
	}, []string{"reason"}) // left, expired, emptied

	MembersDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "watchparty_members_dropped_total",
		Help: "Members removed by the presence sweep",
	})

	PlaybackSyncs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "watchparty_playback_syncs_total",
		Help: "Playback sync attempts by outcome",
	}, []string{"result"}) // accepted, forbidden, not_found, invalid

	ChatMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "watchparty_chat_messages_total",
		Help: "Chat messages accepted",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "watchparty_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
	}, []string{"method", "route", "status"})
)
