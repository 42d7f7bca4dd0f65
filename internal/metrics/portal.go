// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	portalRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "zkh_portal_request_duration_seconds",
		Help:    "Latency of single portal HTTP attempts",
		Buckets: prometheus.DefBuckets,
	}, []string{"op", "status"})

	portalRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zkh_portal_retries_total",
		Help: "Portal HTTP attempts that were retried",
	}, []string{"op"})
)

// ObservePortalAttempt records one HTTP attempt against the portal.
// status is 0 for transport failures.
func ObservePortalAttempt(op string, status int, d time.Duration, retried bool) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	portalRequestDuration.WithLabelValues(op, label).Observe(d.Seconds())
	if retried {
		portalRetriesTotal.WithLabelValues(op).Inc()
	}
}
