// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package metrics exposes Prometheus counters/histograms for the ingest
// and housekeeping paths, so operators can alert on error-kind rates
// without parsing logs (§7).
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ErrorsTotal counts errors returned by ProcessDatapoint/housekeeping,
	// labeled by the sentinel error kind (e.g. "OverlapConflict",
	// "StorageError", "HandlerError").
	ErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dp3",
		Subsystem: "history_manager",
		Name:      "errors_total",
		Help:      "Count of errors returned by the History Manager, labeled by error kind.",
	}, []string{"kind"})

	// DatapointsIngestedTotal counts successful ProcessDatapoint calls,
	// labeled by entity type and attribute id.
	DatapointsIngestedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dp3",
		Subsystem: "history_manager",
		Name:      "datapoints_ingested_total",
		Help:      "Count of datapoints successfully processed.",
	}, []string{"etype", "attr"})

	// IngestDuration observes how long ProcessDatapoint took, labeled the
	// same way as DatapointsIngestedTotal.
	IngestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "dp3",
		Subsystem: "history_manager",
		Name:      "ingest_duration_seconds",
		Help:      "Duration of ProcessDatapoint calls.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"etype", "attr"})

	// HousekeepingDuration observes the wall time of each housekeeping
	// job run, labeled by job name ("delete_old_datapoints" or
	// "manage_current_entity_values").
	HousekeepingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "dp3",
		Subsystem: "history_manager",
		Name:      "housekeeping_duration_seconds",
		Help:      "Duration of a full housekeeping job pass.",
		Buckets:   []float64{.1, .5, 1, 5, 15, 30, 60, 120, 300},
	}, []string{"job"})
)

// ObserveIngest records one ProcessDatapoint call's outcome.
func ObserveIngest(etype, attr string, started time.Time, err error) {
	IngestDuration.WithLabelValues(etype, attr).Observe(time.Since(started).Seconds())
	if err != nil {
		return
	}
	DatapointsIngestedTotal.WithLabelValues(etype, attr).Inc()
}

// ObserveHousekeeping records one housekeeping job run's duration.
func ObserveHousekeeping(job string, started time.Time) {
	HousekeepingDuration.WithLabelValues(job).Observe(time.Since(started).Seconds())
}

// CountError increments ErrorsTotal for kind. Callers pass the sentinel
// error's name (see historymanager/errors.go), not the wrapped message, so
// cardinality stays bounded.
func CountError(kind string) {
	ErrorsTotal.WithLabelValues(kind).Inc()
}
