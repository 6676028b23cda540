// Package metrics holds the Prometheus collectors for authentication
// activity. A nil *Metrics is valid and records nothing.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "identity"

// Login methods.
const (
	MethodPassword = "password"
	MethodExternal = "external"
	MethodMFA      = "mfa"
	MethodRegister = "register"
)

// Outcomes recorded alongside a method.
const (
	OutcomeIssued      = "issued"
	OutcomeMFARequired = "mfa_required"
	OutcomeRejected    = "rejected"
	OutcomeError       = "error"
)

type Metrics struct {
	registry *prometheus.Registry

	LoginsTotal           *prometheus.CounterVec
	RefreshesTotal        *prometheus.CounterVec
	MFAEventsTotal        *prometheus.CounterVec
	ProviderRequestsTotal *prometheus.CounterVec
	RevocationsTotal      *prometheus.CounterVec

	ActiveSessions  prometheus.Gauge
	MFAEnabledUsers prometheus.Gauge
}

// New creates the collectors and registers them on a fresh registry that
// also carries the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		LoginsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by method and outcome.",
		}, []string{"method", "outcome"}),
		RefreshesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_rotations_total",
			Help:      "Refresh token rotations by outcome.",
		}, []string{"outcome"}),
		MFAEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mfa_events_total",
			Help:      "MFA enrollment transitions and code checks.",
		}, []string{"event"}),
		ProviderRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Calls to external identity providers.",
		}, []string{"provider", "operation", "result"}),
		RevocationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_revocations_total",
			Help:      "Refresh tokens revoked, by reason.",
		}, []string{"reason"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Unrevoked, unexpired refresh tokens.",
		}),
		MFAEnabledUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mfa_enabled_users",
			Help:      "Users with MFA enabled.",
		}),
	}

	reg.MustRegister(
		m.LoginsTotal,
		m.RefreshesTotal,
		m.MFAEventsTotal,
		m.ProviderRequestsTotal,
		m.RevocationsTotal,
		m.ActiveSessions,
		m.MFAEnabledUsers,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Login(method, outcome string) {
	if m == nil {
		return
	}
	m.LoginsTotal.WithLabelValues(method, outcome).Inc()
}

func (m *Metrics) Refresh(outcome string) {
	if m == nil {
		return
	}
	m.RefreshesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) MFAEvent(event string) {
	if m == nil {
		return
	}
	m.MFAEventsTotal.WithLabelValues(event).Inc()
}

// ProviderCall records one provider round trip; result is "ok" or the
// sentinel the call failed with.
func (m *Metrics) ProviderCall(provider, operation string, err error, sentinels ...error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
		for _, s := range sentinels {
			if errors.Is(err, s) {
				result = s.Error()
				break
			}
		}
	}
	m.ProviderRequestsTotal.WithLabelValues(provider, operation, result).Inc()
}

func (m *Metrics) Revoked(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RevocationsTotal.WithLabelValues(reason).Add(float64(n))
}

func (m *Metrics) SetSessionStats(activeSessions, mfaEnabledUsers int64) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(activeSessions))
	m.MFAEnabledUsers.Set(float64(mfaEnabledUsers))
}
