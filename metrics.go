package nostrcrdt

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts what the replication engine does. Registration is the
// session owner's choice; NewManager always allocates them so counting
// is never conditional.
type Metrics struct {
	Applied         *prometheus.CounterVec
	PublishAttempts prometheus.Counter
	PublishFailures prometheus.Counter
	InboundDropped  *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		Applied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nostr_crdt_ops_applied_total",
			Help: "Operations merged into local state, by type and origin.",
		}, []string{"type", "origin"}),
		PublishAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nostr_crdt_publish_attempts_total",
			Help: "Publish attempts, retries included.",
		}),
		PublishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nostr_crdt_publish_failures_total",
			Help: "Publishes that exhausted their retry budget.",
		}),
		InboundDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nostr_crdt_inbound_dropped_total",
			Help: "Inbound events dropped during ingestion, by reason.",
		}, []string{"reason"}),
	}
}

func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.Applied, m.PublishAttempts, m.PublishFailures, m.InboundDropped,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
