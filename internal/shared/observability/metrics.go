package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ResolveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mappings_resolve_seconds",
		Help:    "Time spent resolving one cross-reference.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	ResolveOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mappings_resolve_outcomes_total",
		Help: "Cross-reference resolutions by kind and outcome (found, missing, error).",
	}, []string{"kind", "outcome"})

	ResolverCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mappings_resolver_cache_hits_total",
		Help: "Total number of cross-references served from the resolver cache.",
	})

	ResolverCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mappings_resolver_cache_misses_total",
		Help: "Total number of cross-references that had to be queried.",
	})

	IngestedRowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mappings_ingested_rows_total",
		Help: "Rows written by ingestion batches, by table.",
	}, []string{"table"})

	BatchCommitDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mappings_batch_commit_seconds",
		Help:    "Lifetime of an ingestion batch from begin to commit.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
	}, []string{"kind"})

	BatchRollbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mappings_batch_rollbacks_total",
		Help: "Ingestion batches discarded without commit.",
	}, []string{"kind"})

	ReleasesLoadedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mappings_releases_loaded_total",
		Help: "Mapping releases transitioned to loaded.",
	})

	StoreWriteGeneration = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mappings_store_write_generation",
		Help: "Number of committed writes since the store was opened.",
	})
)
