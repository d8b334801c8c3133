// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bayanihan-data/povassess/types"
)

// Metrics holds the application collectors.
type Metrics struct {
	HouseholdsScored    *prometheus.CounterVec
	ImportRows          *prometheus.CounterVec
	ReferralTransitions *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg. A nil reg uses
// the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		HouseholdsScored: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "povassess_households_scored_total",
			Help: "Households scored on create, update or import, by risk level",
		}, []string{"risk_level"}),
		ImportRows: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "povassess_import_rows_total",
			Help: "Imported household rows by outcome (inserted, skipped)",
		}, []string{"outcome"}),
		ReferralTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "povassess_referral_transitions_total",
			Help: "Referral status changes by target status",
		}, []string{"status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "povassess_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern and status class",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

// ObserveScore counts one scored household. Safe on a nil receiver.
func (m *Metrics) ObserveScore(level types.RiskLevel) {
	if m == nil {
		return
	}
	m.HouseholdsScored.WithLabelValues(string(level)).Inc()
}

// ObserveImport counts inserted and skipped import rows. Safe on a nil receiver.
func (m *Metrics) ObserveImport(inserted, skipped int) {
	if m == nil {
		return
	}
	m.ImportRows.WithLabelValues("inserted").Add(float64(inserted))
	m.ImportRows.WithLabelValues("skipped").Add(float64(skipped))
}

// ObserveTransition counts one referral status change. Safe on a nil receiver.
func (m *Metrics) ObserveTransition(status types.ReferralStatus) {
	if m == nil {
		return
	}
	m.ReferralTransitions.WithLabelValues(string(status)).Inc()
}
