package main

import (
	"github.com/dmesh-net/dmesh-core/store"
	"github.com/prometheus/client_golang/prometheus"
)

// openStore opens the sqlite-backed store named by the --store flag,
// wrapped with Prometheus counters the same way an embedding application
// would wrap it before handing it to the sync engine. Each invocation
// registers against its own registry since dmeshctl is a one-shot
// process, not a long-lived server exporting /metrics.
func openStore() (store.Store, error) {
	s, err := store.NewSQLiteStore(storePath)
	if err != nil {
		return nil, err
	}
	return store.NewMetricsStore(s, prometheus.NewRegistry()), nil
}
