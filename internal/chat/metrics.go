// internal/chat/metrics.go

package chat

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_events_applied_total",
			Help: "Total number of server events applied to the local view",
		},
		[]string{"type"},
	)

	duplicateEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_duplicate_events_total",
			Help: "Total number of redelivered events dropped as idempotent no-ops",
		},
		[]string{"type"},
	)

	referentialMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_referential_miss_total",
			Help: "Total number of updates dropped because the target message was not loaded",
		},
		[]string{"type"},
	)

	pagesLoaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_pages_loaded_total",
			Help: "Total number of older-message pages merged into the window",
		},
	)

	staleResponses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_stale_responses_discarded_total",
			Help: "Total number of late pagination responses discarded by generation check",
		},
	)

	reconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_reconnects_total",
			Help: "Total number of transport reconnections observed",
		},
	)

	messagesInStore = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_messages_in_store",
			Help: "Number of messages currently held in the local window",
		},
	)

	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_uploads_total",
			Help: "Total number of media uploads by outcome",
		},
		[]string{"status"},
	)
)
