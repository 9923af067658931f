package authapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts authentication outcomes. Labels carry only outcome classes,
// never identifiers.
type Metrics struct {
	logins    *prometheus.CounterVec
	otpChecks *prometheus.CounterVec
	refreshes *prometheus.CounterVec
}

// NewMetrics registers the auth counters on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		logins: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aegis",
			Subsystem: "auth",
			Name:      "login_attempts_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		otpChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aegis",
			Subsystem: "auth",
			Name:      "otp_verifications_total",
			Help:      "OTP verification attempts by outcome.",
		}, []string{"outcome"}),
		refreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aegis",
			Subsystem: "auth",
			Name:      "refresh_rotations_total",
			Help:      "Refresh rotations by outcome, including reuse detections.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) login(outcome string) {
	if m != nil {
		m.logins.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) otp(outcome string) {
	if m != nil {
		m.otpChecks.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) refresh(outcome string) {
	if m != nil {
		m.refreshes.WithLabelValues(outcome).Inc()
	}
}
