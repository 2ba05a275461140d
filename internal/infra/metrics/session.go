package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(sessionTransitions, sessionsSwept, staleReplies)
}

var (
	sessionTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_transitions_total",
			Help: "Session stage changes by target stage.",
		},
		[]string{"stage"},
	)

	sessionsSwept = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sessions_swept_total",
			Help: "Idle sessions evicted by the sweeper.",
		},
	)

	staleReplies = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ai_stale_replies_total",
			Help: "Generative replies dropped because the session changed in flight.",
		},
	)
)

func IncSessionTransition(stage string) {
	sessionTransitions.WithLabelValues(norm(stage)).Inc()
}

func AddSessionsSwept(n int) {
	sessionsSwept.Add(float64(n))
}

func IncStaleReply() {
	staleReplies.Inc()
}
