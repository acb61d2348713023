// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FramesDecodedTotal counts frames decoded successfully by protocol
	FramesDecodedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "procbus_frames_decoded_total",
			Help: "Total number of process-bus frames decoded",
		},
		[]string{"proto"},
	)

	// DecodeErrorsTotal counts frames that failed to decode
	DecodeErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "procbus_decode_errors_total",
			Help: "Total number of frames that failed to decode",
		},
		[]string{"proto"},
	)

	// GooseTransmitsTotal counts GOOSE frames put on the wire,
	// split into state changes and repeats
	GooseTransmitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "procbus_goose_transmits_total",
			Help: "Total number of GOOSE frames transmitted",
		},
		[]string{"go_cb_ref", "kind"},
	)

	// PublishErrorsTotal counts encode and transmit failures per reference
	PublishErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "procbus_publish_errors_total",
			Help: "Total number of publication failures",
		},
		[]string{"go_cb_ref", "stage"},
	)

	// ActivePublications tracks the number of running GOOSE publications
	ActivePublications = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "procbus_active_publications",
			Help: "Number of GOOSE publications currently running",
		},
	)

	// CapturePacketsTotal counts raw packets delivered by the capture ring
	CapturePacketsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "procbus_capture_packets_total",
			Help: "Total number of packets read from the capture interface",
		},
		[]string{"interface"},
	)
)
