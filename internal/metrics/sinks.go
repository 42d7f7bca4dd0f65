// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sinkDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zkh_sink_deliveries_total",
		Help: "Snapshot deliveries to downstream sinks by outcome",
	}, []string{"sink", "outcome"}) // sink=store|cache|file|hass|stream

	hassStatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zkh_hass_states_total",
		Help: "Home Assistant state updates by outcome",
	}, []string{"outcome"})

	streamClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "zkh_stream_clients",
		Help: "Connected websocket snapshot subscribers",
	})
)

// RecordSinkDelivery counts one snapshot delivery.
func RecordSinkDelivery(sink string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	sinkDeliveriesTotal.WithLabelValues(sink, outcome).Inc()
}

// RecordHassState counts one Home Assistant state POST.
func RecordHassState(ok bool) {
	if ok {
		hassStatesTotal.WithLabelValues("success").Inc()
		return
	}
	hassStatesTotal.WithLabelValues("failure").Inc()
}

// SetStreamClients exports the websocket subscriber count.
func SetStreamClients(n int) { streamClients.Set(float64(n)) }
