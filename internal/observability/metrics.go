package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quill_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// PostsCreatedTotal counts posts created since process start.
	PostsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quill_posts_created_total",
		Help: "Total number of posts created",
	})

	// CommentsCreatedTotal counts comments created since process start.
	CommentsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quill_comments_created_total",
		Help: "Total number of comments created",
	})

	// LikeTogglesTotal counts like toggles by direction (liked/unliked).
	LikeTogglesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quill_like_toggles_total",
		Help: "Total number of like toggles by direction",
	}, []string{"direction"})

	// AuthAttemptsTotal counts login and signup attempts by outcome.
	AuthAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quill_auth_attempts_total",
		Help: "Total number of authentication attempts by action and outcome",
	}, []string{"action", "outcome"})

	// AuthorizationDeniedTotal counts gate denials by action.
	AuthorizationDeniedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quill_authorization_denied_total",
		Help: "Total number of authorization denials by action",
	}, []string{"action"})

	// RedisErrors counts Redis command failures by command name.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quill_redis_errors_total",
		Help: "Total number of Redis command errors by command",
	}, []string{"command"})
)
