// internal/metrics/metrics.go
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"cyton-service/internal/cyton"
)

const namespace = "cyton"

// Metrics turns session events into Prometheus series
type Metrics struct {
	Connected     prometheus.Gauge
	Streaming     prometheus.Gauge
	Events        *prometheus.CounterVec
	Samples       prometheus.Counter
	BadPackets    prometheus.Counter
	DroppedPacket prometheus.Counter
	Errors        prometheus.Counter
	SyncOffset    prometheus.Gauge
	SyncResults   *prometheus.CounterVec
	Impedance     *prometheus.GaugeVec
}

// New creates the collectors and registers them on reg. Passing nil uses
// the default registerer together with the Go runtime and process
// collectors.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "board_connected",
			Help:      "Whether a board is connected (1) or not (0).",
		}),
		Streaming: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "board_streaming",
			Help:      "Whether the board is streaming samples.",
		}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Session events by type.",
		}, []string{"type"}),
		Samples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_total",
			Help:      "Decoded samples.",
		}),
		BadPackets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bad_packets_total",
			Help:      "Packets rejected by the codec or skipped while realigning.",
		}),
		DroppedPacket: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_packets_total",
			Help:      "Sample numbers missing from the stream.",
		}),
		Errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_errors_total",
			Help:      "Fatal session errors that tore down the connection.",
		}),
		SyncOffset: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "time_offset_master_ms",
			Help:      "Rolling mean offset between board and host clock.",
		}),
		SyncResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "time_sync_total",
			Help:      "Time sync attempts by outcome.",
		}, []string{"result"}),
		Impedance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "impedance_ohms",
			Help:      "Last measured electrode impedance.",
		}, []string{"channel", "input"}),
	}

	reg.MustRegister(
		m.Connected, m.Streaming, m.Events, m.Samples, m.BadPackets,
		m.DroppedPacket, m.Errors, m.SyncOffset, m.SyncResults, m.Impedance,
	)
	if reg == prometheus.DefaultRegisterer {
		// the default registry already carries go and process collectors
		return m
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Observe is a cyton.EventHandler
func (m *Metrics) Observe(e cyton.Event) {
	m.Events.WithLabelValues(string(e.Type)).Inc()

	switch e.Type {
	case cyton.EventConnected:
		m.Connected.Set(1)
	case cyton.EventDisconnected:
		m.Connected.Set(0)
		m.Streaming.Set(0)
	case cyton.EventStreamStarted:
		m.Streaming.Set(1)
	case cyton.EventStreamStopped:
		m.Streaming.Set(0)
	case cyton.EventSample:
		m.Samples.Inc()
	case cyton.EventBadPacket:
		m.BadPackets.Inc()
	case cyton.EventDroppedPackets:
		m.DroppedPacket.Add(float64(len(e.Missed)))
	case cyton.EventError:
		m.Errors.Inc()
		m.Connected.Set(0)
		m.Streaming.Set(0)
	case cyton.EventSynced:
		if e.Sync == nil {
			return
		}
		if !e.Sync.Valid {
			m.SyncResults.WithLabelValues("invalid").Inc()
			return
		}
		result := "valid"
		if e.Sync.CorrectedTransmission {
			result = "corrected"
		}
		m.SyncResults.WithLabelValues(result).Inc()
		m.SyncOffset.Set(float64(e.Sync.OffsetMaster))
	case cyton.EventImpedance:
		if e.Impedance != nil {
			m.observeImpedance(e.Impedance.Channels)
		}
	}
}

func (m *Metrics) observeImpedance(channels []cyton.ChannelImpedance) {
	for _, ch := range channels {
		label := strconv.Itoa(ch.Channel)
		if ch.P.Raw >= 0 {
			m.Impedance.WithLabelValues(label, "p").Set(ch.P.Raw)
		}
		if ch.N.Raw >= 0 {
			m.Impedance.WithLabelValues(label, "n").Set(ch.N.Raw)
		}
	}
}
