package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "slc"

// Payment outcome labels
const (
	OutcomeGranted      = "granted"
	OutcomeBelowMinimum = "below_minimum"
	OutcomeNoMemo       = "no_memo"
	OutcomeUnknownPayer = "unknown_payer"
	OutcomeFailedTx     = "failed_tx"
)

// Upstream source labels
const (
	SourceSolscan  = "solscan"
	SourceTelegram = "telegram"
	SourceStore    = "store"
)

// Metrics holds the bot's collectors
type Metrics struct {
	TransactionsSeen prometheus.Counter
	Payments         *prometheus.CounterVec
	Grants           prometheus.Counter
	Revocations      prometheus.Counter
	Commands         *prometheus.CounterVec
	UpstreamErrors   *prometheus.CounterVec
	Members          prometheus.Gauge
}

// New registers all collectors with reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TransactionsSeen: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_seen_total",
			Help:      "Ledger transactions processed for the first time.",
		}),
		Payments: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_total",
			Help:      "Processed transactions partitioned by outcome.",
		}, []string{"outcome"}),
		Grants: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grants_total",
			Help:      "Access grants issued.",
		}),
		Revocations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "revocations_total",
			Help:      "Memberships removed by the expiry sweep.",
		}),
		Commands: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Bot commands handled, partitioned by command.",
		}, []string{"command"}),
		UpstreamErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_errors_total",
			Help:      "Failed calls to external systems, partitioned by source.",
		}, []string{"source"}),
		Members: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "members",
			Help:      "Membership records currently stored.",
		}),
	}
}
