package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics shared across the security core.
// Store-local metrics (e.g. revocation lookup latency) are registered where
// they are observed.
type Metrics struct {
	AuditAppends     *prometheus.CounterVec
	ChainVerifyMs    prometheus.Histogram
	TokensIssued     *prometheus.CounterVec
	TokenRejections  prometheus.Counter
	AuthzDecisions   *prometheus.CounterVec
	EncryptOps       prometheus.Counter
	DecryptOps       prometheus.Counter
	DecryptFailures  prometheus.Counter
	KeyRotations     prometheus.Counter
	ConsentDecisions *prometheus.CounterVec
}

// New creates and registers all shared Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		AuditAppends: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "caretrust_audit_appends_total",
			Help: "Total audit chain appends by outcome",
		}, []string{"outcome"}),
		ChainVerifyMs: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "caretrust_chain_verify_duration_ms",
			Help:    "Latency of full audit chain verification in milliseconds",
			Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
		}),
		TokensIssued: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "caretrust_tokens_issued_total",
			Help: "Total session tokens issued by kind (access, refresh)",
		}, []string{"kind"}),
		TokenRejections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caretrust_token_rejections_total",
			Help: "Total tokens rejected as expired, malformed, or badly signed",
		}),
		AuthzDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "caretrust_authz_decisions_total",
			Help: "Total authorization decisions by result (allowed, denied)",
		}, []string{"result"}),
		EncryptOps: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caretrust_encrypt_ops_total",
			Help: "Total envelope encryption operations",
		}),
		DecryptOps: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caretrust_decrypt_ops_total",
			Help: "Total envelope decryption operations",
		}),
		DecryptFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caretrust_decrypt_failures_total",
			Help: "Total decryption failures (authentication or key lookup)",
		}),
		KeyRotations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caretrust_key_rotations_total",
			Help: "Total encryption key rotations",
		}),
		ConsentDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "caretrust_consent_decisions_total",
			Help: "Total consent checks by result (granted, denied)",
		}, []string{"result"}),
	}
}
