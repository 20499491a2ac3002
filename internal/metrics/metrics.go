package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	MessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "msggw_messages_total",
			Help: "Message lifecycle counter by stage and provider",
		},
		[]string{"stage", "provider"}, // queued|sent|failed , whatsapp|telegram|sms
	)

	WebhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "msggw_webhook_events_total",
			Help: "Webhook status events by provider and outcome",
		},
		[]string{"provider", "outcome"}, // applied|unknown_target|ignored|malformed
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		MessagesTotal,
		WebhookEventsTotal,
	)
}
