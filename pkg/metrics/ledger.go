package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fooddash"

// LedgerMetrics tracks wallet movements and top-up reconciliation outcomes.
type LedgerMetrics struct {
	entries      *prometheus.CounterVec
	volume       *prometheus.CounterVec
	insufficient prometheus.Counter
	topups       *prometheus.CounterVec
}

func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	entries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "wallet_entries_total",
		Help:      "Ledger entries appended, by type.",
	}, []string{"type"})
	volume := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "wallet_volume_minor_total",
		Help:      "Sum of ledger entry amounts in minor units, by type.",
	}, []string{"type"})
	insufficient := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "wallet_insufficient_funds_total",
		Help:      "Debits rejected for insufficient balance.",
	})
	topups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "wallet_topups_total",
		Help:      "Top-up lifecycle outcomes, by gateway.",
	}, []string{"gateway", "outcome"})
	reg.MustRegister(entries, volume, insufficient, topups)
	return &LedgerMetrics{
		entries:      entries,
		volume:       volume,
		insufficient: insufficient,
		topups:       topups,
	}
}

// ObserveEntry records one appended ledger row.
func (m *LedgerMetrics) ObserveEntry(entryType string, amountMinor int64) {
	if m == nil || m.entries == nil {
		return
	}
	label := normalizeLabel(entryType)
	m.entries.WithLabelValues(label).Inc()
	m.volume.WithLabelValues(label).Add(float64(amountMinor))
}

func (m *LedgerMetrics) IncInsufficientFunds() {
	if m == nil || m.insufficient == nil {
		return
	}
	m.insufficient.Inc()
}

// IncTopup records a top-up outcome such as initialized, completed, failed or duplicate.
func (m *LedgerMetrics) IncTopup(gateway, outcome string) {
	if m == nil || m.topups == nil {
		return
	}
	m.topups.WithLabelValues(normalizeLabel(gateway), normalizeLabel(outcome)).Inc()
}

// normalizeLabel keeps blank label values out of the series set.
func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
