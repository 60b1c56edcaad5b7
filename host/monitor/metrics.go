package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gobldc/core"
	"gobldc/protocol"
)

const namespace = "bldc"

// exportedFaults are the faults exported as labels
var exportedFaults = []core.FaultID{core.FaultClosedLoop, core.FaultVoltage, core.FaultThrottleHigh}

// Metrics exports decoded telemetry on its own registry
type Metrics struct {
	registry *prometheus.Registry

	seq         prometheus.Gauge
	state       prometheus.Gauge
	throttle    prometheus.Gauge
	speed       prometheus.Gauge
	period      prometheus.Gauge
	duty        prometheus.Gauge
	battery     prometheus.Gauge
	timingError prometheus.Gauge
	hysteresis  prometheus.Gauge
	bemf        *prometheus.GaugeVec
	faults      *prometheus.GaugeVec
	events      *prometheus.CounterVec
	statuses    prometheus.Counter
}

// NewMetrics creates the collectors and registers them on a new registry
func NewMetrics() *Metrics {
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
	}
	m := &Metrics{
		registry:    prometheus.NewRegistry(),
		seq:         gauge("status_seq", "Sequence number of the last status frame."),
		state:       gauge("state", "Operating state of the commutation state machine."),
		throttle:    gauge("throttle_counts", "Filtered throttle input in PWM counts."),
		speed:       gauge("speed_counts", "Commanded duty in PWM counts."),
		period:      gauge("period_counts", "Commutation period in counter counts."),
		duty:        gauge("duty_counts", "Duty applied by the last control tick."),
		battery:     gauge("battery_counts", "Battery voltage in ADC counts."),
		timingError: gauge("timing_error", "Back-EMF timing error, 0 when in sync."),
		hysteresis:  gauge("hysteresis_counter", "Remaining closed-loop rejections before a fault."),
		bemf: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "bemf_counts", Help: "Filtered back-EMF samples in ADC counts.",
		}, []string{"edge"}),
		faults: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "fault", Help: "1 while the fault is latched.",
		}, []string{"fault"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "events_total", Help: "Firmware events received.",
		}, []string{"type"}),
		statuses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "status_frames_total", Help: "Status frames received.",
		}),
	}
	m.registry.MustRegister(
		m.seq, m.state, m.throttle, m.speed, m.period, m.duty, m.battery,
		m.timingError, m.hysteresis, m.bemf, m.faults, m.events, m.statuses,
	)
	return m
}

// Registry returns the registry holding every collector
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(
		m.registry,
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		},
	)
}

// Observe updates the gauges from one status sample
func (m *Metrics) Observe(st *core.Status) {
	m.statuses.Inc()
	m.seq.Set(float64(st.Seq))
	m.state.Set(float64(st.State))
	m.throttle.Set(float64(st.Throttle))
	m.speed.Set(float64(st.Speed))
	m.period.Set(float64(st.Period))
	m.duty.Set(float64(st.Duty))
	m.battery.Set(float64(st.Battery))
	m.timingError.Set(float64(st.TimingError))
	m.hysteresis.Set(float64(st.Hysteresis))
	m.bemf.WithLabelValues("rising").Set(float64(st.BEMFRising))
	m.bemf.WithLabelValues("falling").Set(float64(st.BEMFFalling))
	for _, id := range exportedFaults {
		v := 0.0
		if st.Faults.Has(id) {
			v = 1
		}
		m.faults.WithLabelValues(id.String()).Set(v)
	}
}

// ObserveEvent counts one firmware event
func (m *Metrics) ObserveEvent(evt *core.Event) {
	m.events.WithLabelValues(evt.Name()).Inc()
}

// RegisterLink exports the frame decoder counters of a link
func (m *Metrics) RegisterLink(stats func() protocol.DecoderStats) {
	counter := func(name, help string, value func(protocol.DecoderStats) uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "link", Name: name, Help: help,
		}, func() float64 {
			return float64(value(stats()))
		})
	}
	m.registry.MustRegister(
		counter("frames_total", "Frames decoded.", func(s protocol.DecoderStats) uint64 { return s.Frames }),
		counter("crc_errors_total", "Frames dropped for a bad CRC.", func(s protocol.DecoderStats) uint64 { return s.CRCErrors }),
		counter("resyncs_total", "Times the decoder lost frame sync.", func(s protocol.DecoderStats) uint64 { return s.Resyncs }),
		counter("sequence_gaps_total", "Frames missing between sequence numbers.", func(s protocol.DecoderStats) uint64 { return s.SeqGaps }),
		counter("skipped_bytes_total", "Bytes discarded while resynchronizing.", func(s protocol.DecoderStats) uint64 { return s.SkippedBytes }),
	)
}
