// Package metrics registers the Prometheus instruments exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RefreshTokensIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tokengate_refresh_tokens_issued_total",
			Help: "Total number of refresh tokens issued",
		},
	)

	RefreshTokensRotated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tokengate_refresh_tokens_rotated_total",
			Help: "Total number of refresh tokens rotated",
		},
	)

	RefreshTokensRevoked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tokengate_refresh_tokens_revoked_total",
			Help: "Total number of refresh tokens revoked",
		},
	)

	RefreshValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokengate_refresh_validations_total",
			Help: "Refresh token validation outcomes",
		},
		[]string{"outcome"},
	)

	VerificationTokensIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tokengate_verification_tokens_issued_total",
			Help: "Total number of verification tokens issued",
		},
	)

	VerificationTokensConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokengate_verification_tokens_consumed_total",
			Help: "Verification token consumption outcomes",
		},
		[]string{"outcome"},
	)

	RateLimitDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokengate_rate_limit_decisions_total",
			Help: "Rate limiter admission decisions",
		},
		[]string{"decision"},
	)

	RateLimitFailOpen = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tokengate_rate_limit_fail_open_total",
			Help: "Requests admitted because the counter store was unreachable",
		},
	)

	MailEnqueued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tokengate_mail_enqueued_total",
			Help: "Mail jobs accepted by the delivery queue",
		},
	)

	MailDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tokengate_mail_dropped_total",
			Help: "Mail jobs dropped because the delivery queue was full",
		},
	)

	MailDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tokengate_mail_delivered_total",
			Help: "Mail jobs delivered successfully",
		},
	)

	MailFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tokengate_mail_failed_total",
			Help: "Mail jobs abandoned after exhausting retries",
		},
	)
)
