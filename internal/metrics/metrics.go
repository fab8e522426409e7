package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "guidena_ws_connections",
			Help: "Currently registered websocket connections",
		},
	)

	OnlineUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "guidena_online_users",
			Help: "Users with at least one registered connection",
		},
	)

	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "guidena_chat_messages_sent_total",
			Help: "Chat messages persisted and broadcast",
		},
	)

	MessageSendFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "guidena_chat_message_failures_total",
			Help: "Chat sends rejected or failed before broadcast",
		},
	)
)
