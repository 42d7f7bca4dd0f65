// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics holds the Prometheus collectors of the bridge.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	refreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "zkh_refresh_duration_seconds",
		Help:    "Duration of complete portal refresh cycles",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	})

	refreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zkh_refresh_total",
		Help: "Portal refresh cycles by outcome",
	}, []string{"outcome"}) // outcome=success|failure

	refreshFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zkh_refresh_failures_total",
		Help: "Refresh failures by stage",
	}, []string{"stage"}) // stage=preflight|login|meters|tariffs|circuit

	lastSuccessTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "zkh_refresh_last_success_timestamp_seconds",
		Help: "Unix time of the last successful refresh",
	})

	metersTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "zkh_meters_total",
		Help: "Number of meters in the last snapshot",
	})

	tariffsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "zkh_tariffs_total",
		Help: "Number of tariffs in the last snapshot",
	})

	meterValue = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "zkh_meter_value",
		Help: "Last reading per meter",
	}, []string{"meter", "units"})

	tariffValue = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "zkh_tariff_rub",
		Help: "Tariff per unit in rubles",
	}, []string{"tariff", "unit"})

	tariffNorm = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "zkh_tariff_norm",
		Help: "Consumption norm per tariff",
	}, []string{"tariff", "unit"})
)

// ObserveRefresh records the outcome of one refresh cycle.
func ObserveRefresh(d time.Duration, err error) {
	refreshDuration.Observe(d.Seconds())
	if err != nil {
		refreshTotal.WithLabelValues("failure").Inc()
		return
	}
	refreshTotal.WithLabelValues("success").Inc()
	lastSuccessTimestamp.Set(float64(time.Now().Unix()))
}

// IncRefreshFailure counts a failed refresh stage.
func IncRefreshFailure(stage string) { refreshFailuresTotal.WithLabelValues(stage).Inc() }

// ResetReadings drops per-meter and per-tariff series before a new snapshot is recorded,
// so meters that vanished from the portal stop being exported.
func ResetReadings() {
	meterValue.Reset()
	tariffValue.Reset()
	tariffNorm.Reset()
}

// RecordCounts stores the size of the current snapshot.
func RecordCounts(meters, tariffs int) {
	metersTotal.Set(float64(meters))
	tariffsTotal.Set(float64(tariffs))
}

// RecordMeter exports one meter reading.
func RecordMeter(key, units string, value float64) {
	meterValue.WithLabelValues(key, units).Set(value)
}

// RecordTariff exports one tariff. Nil values are skipped.
func RecordTariff(key, unit string, tariff, norm *float64) {
	if tariff != nil {
		tariffValue.WithLabelValues(key, unit).Set(*tariff)
	}
	if norm != nil {
		tariffNorm.WithLabelValues(key, unit).Set(*norm)
	}
}
