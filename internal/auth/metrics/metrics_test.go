package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

// counterValue looks a counter up in the registry by name and one optional
// label value.
func counterValue(t *testing.T, reg *prometheus.Registry, name, label string) float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if label == "" {
				return m.GetCounter().GetValue()
			}
			for _, lp := range m.GetLabel() {
				if lp.GetValue() == label {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Login(ResultOK)
	m.Login(ResultOK)
	m.Login(ResultFailed)
	m.Rotation(ResultTheft)
	m.TheftDetected()
	m.DenylistWrite()
	m.PermissionCache(CacheHit)
	m.PasswordReset(ResetRequested)

	require.Equal(t, 2.0, counterValue(t, reg, "auth_logins_total", ResultOK))
	require.Equal(t, 1.0, counterValue(t, reg, "auth_logins_total", ResultFailed))
	require.Equal(t, 1.0, counterValue(t, reg, "auth_refresh_rotations_total", ResultTheft))
	require.Equal(t, 1.0, counterValue(t, reg, "auth_token_theft_detected_total", ""))
	require.Equal(t, 1.0, counterValue(t, reg, "auth_denylist_writes_total", ""))
	require.Equal(t, 1.0, counterValue(t, reg, "auth_permission_cache_total", CacheHit))
	require.Equal(t, 1.0, counterValue(t, reg, "auth_password_resets_total", ResetRequested))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.Login(ResultOK)
		m.Rotation(ResultOK)
		m.TheftDetected()
		m.DenylistWrite()
		m.PermissionCache(CacheMiss)
		m.PasswordReset(ResetCompleted)
	})
}
