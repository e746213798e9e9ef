package metrics

import "github.com/prometheus/client_golang/prometheus"

// Ledger operation labels.
const (
	OpScan      = "scan"
	OpPay       = "pay"
	OpPayGroup  = "pay_group"
	OpGift      = "gift"
	OpGiftGroup = "gift_group"
	OpTopUp     = "top_up"

	OutcomeSuccess      = "success"
	OutcomeInsufficient = "insufficient_funds"
	OutcomeRejected     = "rejected"
	OutcomeError        = "error"
)

// LedgerMetrics counts balance mutations.
type LedgerMetrics struct {
	ops *prometheus.CounterVec
}

func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	ops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_operations_total",
		Help: "Balance ledger operations by operation and outcome.",
	}, []string{"operation", "outcome"})
	reg.MustRegister(ops)
	return &LedgerMetrics{ops: ops}
}

func (l *LedgerMetrics) Inc(operation, outcome string) {
	if l == nil || l.ops == nil {
		return
	}
	l.ops.WithLabelValues(normalizeLabel(operation), normalizeLabel(outcome)).Inc()
}
