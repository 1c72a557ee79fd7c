package sync

import (
	"errors"

	"github.com/dmesh-net/dmesh-core/wire"
	"github.com/prometheus/client_golang/prometheus"
)

// SessionMetrics exports Prometheus counters for sync session outcomes,
// following the same thin-decorator pattern as store.MetricsStore: a
// small struct that registers its own collectors and is threaded in by
// the caller (via SessionLimits.Metrics) rather than a package-level
// singleton. A nil *SessionMetrics is safe to call methods on and
// simply records nothing, so it stays optional in tests.
type SessionMetrics struct {
	sessionsTotal  *prometheus.CounterVec
	itemsOffered   prometheus.Counter
	itemsRequested prometheus.Counter
	itemsReceived  prometheus.Counter
	itemsConfirmed prometheus.Counter
}

// NewSessionMetrics wraps reg, registering its collectors. Pass
// prometheus.DefaultRegisterer for the global registry, or a fresh
// prometheus.NewRegistry() in tests to avoid collisions across cases.
func NewSessionMetrics(reg prometheus.Registerer) *SessionMetrics {
	m := &SessionMetrics{
		sessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dmesh",
			Subsystem: "sync",
			Name:      "sessions_total",
			Help:      "Sync sessions by terminal outcome.",
		}, []string{"outcome"}),
		itemsOffered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dmesh",
			Subsystem: "sync",
			Name:      "items_offered_total",
			Help:      "Inventory items offered to peers across completed sessions.",
		}),
		itemsRequested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dmesh",
			Subsystem: "sync",
			Name:      "items_requested_total",
			Help:      "Items requested from peers across completed sessions.",
		}),
		itemsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dmesh",
			Subsystem: "sync",
			Name:      "items_received_total",
			Help:      "Items received and decrypted or acknowledged across completed sessions.",
		}),
		itemsConfirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dmesh",
			Subsystem: "sync",
			Name:      "items_confirmed_total",
			Help:      "Items the peer acknowledged receiving, marked forwarded.",
		}),
	}
	reg.MustRegister(m.sessionsTotal, m.itemsOffered, m.itemsRequested, m.itemsReceived, m.itemsConfirmed)
	return m
}

// observe records one completed RunSession call's terminal outcome and,
// on success, its item counts. Classification by error code rather than
// by phase name keeps this independent of where in the state machine
// RunSession happened to return.
func (m *SessionMetrics) observe(result *SessionResult, err error) {
	if m == nil {
		return
	}
	m.sessionsTotal.WithLabelValues(outcomeLabel(err)).Inc()
	if err != nil || result == nil {
		return
	}
	m.itemsOffered.Add(float64(result.ItemsOffered))
	m.itemsRequested.Add(float64(result.ItemsRequested))
	m.itemsReceived.Add(float64(result.ItemsReceived))
	m.itemsConfirmed.Add(float64(result.ItemsConfirmed))
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, wire.ErrSessionRateLimited):
		return "rate_limited"
	case errors.Is(err, wire.ErrTransportError):
		return "transport_error"
	case errors.Is(err, wire.ErrSignatureInvalid):
		return "signature_invalid"
	case errors.Is(err, wire.ErrJsonParseFailed):
		return "parse_error"
	case errors.Is(err, wire.ErrInvalidMessageFormat):
		return "invalid_format"
	default:
		return "other_error"
	}
}
