// Package metrics defines and registers all custom Prometheus metrics for
// the verimail auth API. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics register with the default Prometheus registry at package init;
// the /metrics route exposes them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "auth"

// ── Account lifecycle metrics ─────────────────────────────────────────────────

// SignupsTotal counts signup attempts by outcome.
// Label:
//   - outcome: "created", "conflict", "invalid", "error"
var SignupsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "signups_total",
		Help:      "Total number of signup attempts, by outcome.",
	},
	[]string{"outcome"},
)

// VerificationsTotal counts email verification attempts by outcome.
// Label:
//   - outcome: "verified", "already_verified", "invalid_token", "error"
var VerificationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "verifications_total",
		Help:      "Total number of email verification attempts, by outcome.",
	},
	[]string{"outcome"},
)

// LoginsTotal counts login attempts by outcome.
// Label:
//   - outcome: "success", "invalid_credentials", "not_verified", "invalid", "error"
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of login attempts, by outcome.",
	},
	[]string{"outcome"},
)

// ── Mail queue metrics ────────────────────────────────────────────────────────

// MailSentTotal counts messages delivered by the mail workers.
var MailSentTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mail_sent_total",
		Help:      "Total number of emails delivered successfully.",
	},
)

// MailErrorsTotal counts delivery failures. Failures are terminal; there
// are no retries.
var MailErrorsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mail_errors_total",
		Help:      "Total number of emails that failed delivery.",
	},
)

// MailDroppedTotal counts messages dropped because a worker shard was full.
var MailDroppedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mail_dropped_total",
		Help:      "Total number of emails dropped due to a full queue shard.",
	},
)

// MailQueueDepth tracks the number of messages waiting in each worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var MailQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "mail_queue_depth",
		Help:      "Current number of emails pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)
