// Package metrics holds the prometheus counters for the credential lifecycle.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Label values shared with the services.
const (
	ResultOK      = "ok"
	ResultFailed  = "failed"
	ResultInvalid = "invalid"
	ResultTheft   = "theft"

	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"

	ResetRequested = "requested"
	ResetCompleted = "completed"
	ResetRejected  = "rejected"
)

// Metrics is safe to use as a nil pointer; every method becomes a no-op.
type Metrics struct {
	logins          *prometheus.CounterVec
	rotations       *prometheus.CounterVec
	theft           prometheus.Counter
	denylistWrites  prometheus.Counter
	permissionCache *prometheus.CounterVec
	passwordResets  *prometheus.CounterVec
}

// New creates the counters and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_logins_total",
			Help: "Password login attempts by result.",
		}, []string{"result"}),
		rotations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_refresh_rotations_total",
			Help: "Refresh token rotations by result.",
		}, []string{"result"}),
		theft: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_token_theft_detected_total",
			Help: "Refresh families revoked because a rotated token was replayed.",
		}),
		denylistWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_denylist_writes_total",
			Help: "Access token jtis written to the deny-list.",
		}),
		permissionCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_permission_cache_total",
			Help: "Permission cache lookups by result.",
		}, []string{"result"}),
		passwordResets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_password_resets_total",
			Help: "Password reset flow events by stage.",
		}, []string{"stage"}),
	}

	reg.MustRegister(
		m.logins,
		m.rotations,
		m.theft,
		m.denylistWrites,
		m.permissionCache,
		m.passwordResets,
	)

	return m
}

func (m *Metrics) Login(result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(result).Inc()
}

func (m *Metrics) Rotation(result string) {
	if m == nil {
		return
	}
	m.rotations.WithLabelValues(result).Inc()
}

func (m *Metrics) TheftDetected() {
	if m == nil {
		return
	}
	m.theft.Inc()
}

func (m *Metrics) DenylistWrite() {
	if m == nil {
		return
	}
	m.denylistWrites.Inc()
}

func (m *Metrics) PermissionCache(result string) {
	if m == nil {
		return
	}
	m.permissionCache.WithLabelValues(result).Inc()
}

func (m *Metrics) PasswordReset(stage string) {
	if m == nil {
		return
	}
	m.passwordResets.WithLabelValues(stage).Inc()
}
