// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package metrics exposes capture counters and the latest reading to
// Prometheus.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Thermoquad/dl24log/pkg/dl24"
	"github.com/Thermoquad/dl24log/pkg/session"
)

// Snapshot is the latest emitted reading
type Snapshot struct {
	Session      string   `json:"session"`
	State        string   `json:"state"`
	ReceivedAt   string   `json:"received_at"`
	Timestamp    int64    `json:"timestamp"`
	Voltage      float64  `json:"voltage"`
	Current      int      `json:"current"`
	Capacity     int      `json:"capacity"`
	Power        float64  `json:"power"`
	MosfetTemp   int      `json:"mos_temp"`
	ExternalTemp *float64 `json:"ext_temp,omitempty"`
	Resistance   *float64 `json:"resistance,omitempty"`
}

// Collector records capture events. It owns its registry so several
// collectors can coexist in one process.
type Collector struct {
	registry *prometheus.Registry
	session  string

	frames         *prometheus.CounterVec
	checksumErrors prometheus.Counter
	emitted        prometheus.Counter
	suppressed     prometheus.Counter
	sensorErrors   prometheus.Counter
	publishErrors  *prometheus.CounterVec

	voltage      prometheus.Gauge
	current      prometheus.Gauge
	capacity     prometheus.Gauge
	power        prometheus.Gauge
	mosfetTemp   prometheus.Gauge
	externalTemp prometheus.Gauge
	state        prometheus.Gauge

	mu     sync.Mutex
	latest *Snapshot
	now    func() time.Time
}

// NewCollector creates and registers the dl24 metrics. sessionID is
// attached to every metric as a constant label.
func NewCollector(sessionID string) *Collector {
	labels := prometheus.Labels{"session": sessionID}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help, ConstLabels: labels})
	}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help, ConstLabels: labels})
	}

	c := &Collector{
		registry: prometheus.NewRegistry(),
		session:  sessionID,
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "dl24_frames_total",
			Help:        "Frames read from the transport by kind.",
			ConstLabels: labels,
		}, []string{"kind"}),
		checksumErrors: counter("dl24_checksum_errors_total", "Data frames discarded for a bad checksum."),
		emitted:        counter("dl24_readings_emitted_total", "Readings written to the outputs."),
		suppressed:     counter("dl24_readings_suppressed_total", "Readings dropped by capacity-diff suppression."),
		sensorErrors:   counter("dl24_sensor_errors_total", "Failed external probe reads."),
		publishErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "dl24_publish_errors_total",
			Help:        "Failed publishes by sink.",
			ConstLabels: labels,
		}, []string{"sink"}),
		voltage:      gauge("dl24_voltage_volts", "Latest voltage."),
		current:      gauge("dl24_current_milliamps", "Latest current."),
		capacity:     gauge("dl24_capacity_milliamp_hours", "Latest accumulated capacity."),
		power:        gauge("dl24_power_watts", "Latest power."),
		mosfetTemp:   gauge("dl24_mosfet_temperature", "Latest MOSFET temperature in the instrument unit."),
		externalTemp: gauge("dl24_external_temperature", "Latest external probe temperature."),
		state:        gauge("dl24_session_state", "Session state (0 started, 1 working, 2 stopped)."),
		now:          time.Now,
	}

	c.registry.MustRegister(
		c.frames,
		c.checksumErrors,
		c.emitted,
		c.suppressed,
		c.sensorErrors,
		c.publishErrors,
		c.voltage,
		c.current,
		c.capacity,
		c.power,
		c.mosfetTemp,
		c.externalTemp,
		c.state,
	)

	for _, kind := range []dl24.FrameKind{dl24.FrameData, dl24.FrameCommandEcho, dl24.FrameUnknown} {
		c.frames.WithLabelValues(kind.String())
	}

	return c
}

// Registry returns the registry holding the collector's metrics
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) FrameRead(kind dl24.FrameKind) {
	c.frames.WithLabelValues(kind.String()).Inc()
}

func (c *Collector) ChecksumFailed() {
	c.checksumErrors.Inc()
}

func (c *Collector) ReadingSuppressed() {
	c.suppressed.Inc()
}

func (c *Collector) SensorFailed() {
	c.sensorErrors.Inc()
}

func (c *Collector) StateChanged(s session.State) {
	c.state.Set(float64(s))
}

// PublishFailed matches publish.Writer.OnFailure
func (c *Collector) PublishFailed(sink string, _ error) {
	c.publishErrors.WithLabelValues(sink).Inc()
}

// ReadingEmitted updates the gauges and the latest snapshot
func (c *Collector) ReadingEmitted(r *dl24.Reading, s session.State) {
	c.emitted.Inc()
	c.voltage.Set(r.Voltage)
	c.current.Set(float64(r.Current))
	c.capacity.Set(float64(r.Capacity))
	c.power.Set(r.Power)
	c.mosfetTemp.Set(float64(r.MosfetTemp))
	if r.ExternalTemp != nil {
		c.externalTemp.Set(*r.ExternalTemp)
	}
	c.state.Set(float64(s))

	snap := &Snapshot{
		Session:      c.session,
		State:        s.String(),
		ReceivedAt:   c.now().UTC().Format(time.RFC3339),
		Timestamp:    r.Timestamp,
		Voltage:      r.Voltage,
		Current:      r.Current,
		Capacity:     r.Capacity,
		Power:        r.Power,
		MosfetTemp:   r.MosfetTemp,
		ExternalTemp: r.ExternalTemp,
		Resistance:   r.Resistance,
	}

	c.mu.Lock()
	c.latest = snap
	c.mu.Unlock()
}

// Latest returns the most recent snapshot, or nil before the first reading
func (c *Collector) Latest() *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest
}
