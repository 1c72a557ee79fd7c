package store

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsStore wraps a Store and exports table sizes and seen/chunk
// cleanup outcomes as Prometheus metrics, following the corpus's pattern
// of a thin decorator registering its own collectors rather than
// threading a registry through every call site.
type MetricsStore struct {
	Store

	tableSize     *prometheus.GaugeVec
	seenRemoved   prometheus.Counter
	chunksRemoved prometheus.Counter
	checkAndMark  *prometheus.CounterVec
}

// NewMetricsStore wraps inner, registering its collectors on reg. Pass
// prometheus.DefaultRegisterer for the global registry, or a fresh
// prometheus.NewRegistry() in tests to avoid collisions across cases.
func NewMetricsStore(inner Store, reg prometheus.Registerer) *MetricsStore {
	m := &MetricsStore{
		Store: inner,
		tableSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "dmesh",
			Subsystem: "store",
			Name:      "table_size",
			Help:      "Number of rows currently held in each store table.",
		}, []string{"table"}),
		seenRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dmesh",
			Subsystem: "store",
			Name:      "seen_entries_removed_total",
			Help:      "Total seen-set entries removed by retention cleanup.",
		}),
		chunksRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dmesh",
			Subsystem: "store",
			Name:      "partial_chunks_removed_total",
			Help:      "Total partial chunk entries removed by age-based cleanup.",
		}),
		checkAndMark: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dmesh",
			Subsystem: "store",
			Name:      "check_and_mark_total",
			Help:      "Outcomes of the replay-protection CheckAndMark call.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.tableSize, m.seenRemoved, m.chunksRemoved, m.checkAndMark)
	return m
}

func (m *MetricsStore) CheckAndMark(ctx context.Context, msgID [32]byte, senderFp [16]byte) (bool, error) {
	allowed, err := m.Store.CheckAndMark(ctx, msgID, senderFp)
	if err != nil {
		m.checkAndMark.WithLabelValues("error").Inc()
		return allowed, err
	}
	if allowed {
		m.checkAndMark.WithLabelValues("accepted").Inc()
	} else {
		m.checkAndMark.WithLabelValues("replay").Inc()
	}
	return allowed, nil
}

func (m *MetricsStore) CleanupSeen(ctx context.Context, maxAge time.Duration) (int, error) {
	n, err := m.Store.CleanupSeen(ctx, maxAge)
	if err == nil {
		m.seenRemoved.Add(float64(n))
	}
	return n, err
}

func (m *MetricsStore) CleanupChunks(ctx context.Context, maxAge time.Duration) (int, error) {
	n, err := m.Store.CleanupChunks(ctx, maxAge)
	if err == nil {
		m.chunksRemoved.Add(float64(n))
	}
	return n, err
}

// RunMaintenance delegates to the wrapped Store's cleanup and then
// refreshes the table_size gauges from Stats.
func (m *MetricsStore) RunMaintenance(ctx context.Context) error {
	if err := m.Store.RunMaintenance(ctx); err != nil {
		return err
	}
	return m.refreshGauges(ctx)
}

func (m *MetricsStore) refreshGauges(ctx context.Context) error {
	st, err := m.Store.Stats(ctx)
	if err != nil {
		return err
	}
	m.tableSize.WithLabelValues("contacts").Set(float64(st.Contacts))
	m.tableSize.WithLabelValues("outbox").Set(float64(st.Outbox))
	m.tableSize.WithLabelValues("inbox").Set(float64(st.Inbox))
	m.tableSize.WithLabelValues("seen").Set(float64(st.Seen))
	m.tableSize.WithLabelValues("forwarded").Set(float64(st.Forwarded))
	m.tableSize.WithLabelValues("partial_chunks").Set(float64(st.PartialChunks))
	return nil
}

var _ Store = (*MetricsStore)(nil)
