package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		telegramCommandsReceivedTotal,
		telegramRateLimitTriggeredTotal,
		telegramUpdatePanics,
		telegramSendsTotal,
	)
}

var (
	telegramCommandsReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_commands_received_total",
			Help: "Counts incoming messages and commands from users.",
		},
		[]string{"command"},
	)

	telegramRateLimitTriggeredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "telegram_rate_limit_triggered_total",
			Help: "Total number of times users have been rate-limited.",
		},
	)

	telegramSendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_sends_total",
			Help: "Outgoing Bot API messages by result, after the retry.",
		},
		[]string{"result"},
	)

	telegramUpdatePanics = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "telegram_update_panics_total",
			Help: "Panics recovered while handling a single update.",
		},
	)
)

func IncTelegramCommand(command string) {
	telegramCommandsReceivedTotal.WithLabelValues(norm(command)).Inc()
}

func IncRateLimitTriggered() {
	telegramRateLimitTriggeredTotal.Inc()
}

func IncUpdatePanic() {
	telegramUpdatePanics.Inc()
}

func IncTelegramSend(result string) {
	telegramSendsTotal.WithLabelValues(result).Inc()
}
