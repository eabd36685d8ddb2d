// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/dl24log/pkg/capture"
	"github.com/Thermoquad/dl24log/pkg/config"
	"github.com/Thermoquad/dl24log/pkg/metrics"
	"github.com/Thermoquad/dl24log/pkg/output"
	"github.com/Thermoquad/dl24log/pkg/publish"
	"github.com/Thermoquad/dl24log/pkg/sensor"
	"github.com/Thermoquad/dl24log/pkg/session"
)

// Capture flags shared by log and monitor
var (
	consoleFormat  string
	fileFormat     string
	filePrefix     string
	noTimestamp    bool
	capacityDiff   bool
	autostop       bool
	strictChecksum bool
	powerOn        bool
	sensorID       string
	sensorOffset   float64
	metricsEnabled bool
	metricsListen  string
	redisEnabled   bool
	mqttEnabled    bool
	kafkaEnabled   bool
)

func addCaptureFlags(cmd *cobra.Command, console bool) {
	f := cmd.Flags()
	if console {
		f.StringVarP(&consoleFormat, "sformat", "s", "", "Console data format (none, bin, json, tab)")
	}
	f.StringVar(&fileFormat, "fformat", "", "File data format (none, json, tab, cbor)")
	f.StringVar(&filePrefix, "filename", "", "File name prefix; a timestamp and extension are appended")
	f.BoolVar(&noTimestamp, "no-timestamp", false, "Do not append the start time to the file name")
	f.BoolVar(&capacityDiff, "capdiff", false, "Only emit readings whose capacity changed")
	f.BoolVar(&autostop, "autostop", false, "Stop when the load current drops to zero after working")
	f.BoolVar(&strictChecksum, "strict-checksum", false, "Discard data frames with a bad checksum")
	f.BoolVar(&powerOn, "onoff", false, "Toggle the load output before logging")
	f.StringVar(&sensorID, "sensor", "", "1-Wire probe id for an external temperature (e.g. 28-0000075e1a2b)")
	f.Float64Var(&sensorOffset, "sensor-offset", 0, "Calibration offset added to the probe temperature")
	f.BoolVar(&metricsEnabled, "metrics", false, "Serve Prometheus metrics")
	f.StringVar(&metricsListen, "metrics-listen", "", "Metrics listen address (default :9124)")
	f.BoolVar(&redisEnabled, "redis", false, "Publish readings to Redis")
	f.BoolVar(&mqttEnabled, "mqtt", false, "Publish readings to MQTT")
	f.BoolVar(&kafkaEnabled, "kafka", false, "Publish readings to Kafka")
}

// applyCaptureFlags copies explicitly set capture flags into c
func applyCaptureFlags(cmd *cobra.Command, c *config.Config) {
	f := cmd.Flags()
	if f.Changed("sformat") {
		c.Output.ConsoleFormat = consoleFormat
	}
	if f.Changed("fformat") {
		c.Output.FileFormat = fileFormat
	}
	if f.Changed("filename") {
		c.Output.FilePrefix = filePrefix
	}
	if f.Changed("no-timestamp") {
		c.Output.TimestampSuffix = !noTimestamp
	}
	if f.Changed("capdiff") {
		c.Session.CapacityDiff = capacityDiff
	}
	if f.Changed("autostop") {
		c.Session.Autostop = autostop
	}
	if f.Changed("strict-checksum") {
		c.Session.StrictChecksum = strictChecksum
	}
	if f.Changed("onoff") {
		c.Session.PowerOn = powerOn
	}
	if f.Changed("sensor") {
		c.Sensor.ID = sensorID
	}
	if f.Changed("sensor-offset") {
		c.Sensor.Offset = sensorOffset
	}
	if f.Changed("metrics") {
		c.Metrics.Enabled = metricsEnabled
	}
	if f.Changed("metrics-listen") {
		c.Metrics.Listen = metricsListen
	}
	if f.Changed("redis") {
		c.Redis.Enabled = redisEnabled
	}
	if f.Changed("mqtt") {
		c.MQTT.Enabled = mqttEnabled
	}
	if f.Changed("kafka") {
		c.Kafka.Enabled = kafkaEnabled
	}
}

// pipeline holds the sinks of one run
type pipeline struct {
	sessionID string
	log       *logrus.Entry
	fileName  string

	writers   *output.Multi
	frames    output.FrameWriter
	merger    *sensor.Merger
	collector *metrics.Collector

	closers []func() error
}

// newPipeline creates every configured sink. The output file is created
// last, once every step that can fail has succeeded, so it must run after
// the transport has opened. stdout is nil when the console stream is
// replaced by the dashboard.
func newPipeline(ctx context.Context, c *config.Config, stdout io.Writer) (p *pipeline, err error) {
	id := uuid.NewString()
	p = &pipeline{
		sessionID: id,
		log:       logger.WithField("session", id),
		writers:   output.NewMulti(),
	}
	defer func() {
		if err != nil {
			p.abort()
			p = nil
		}
	}()

	if c.Sensor.ID != "" {
		probe, err := sensor.NewW1Probe(c.Sensor.BaseDir, c.Sensor.ID)
		if err != nil {
			return p, err
		}
		p.merger = sensor.NewMerger(probe, c.Sensor.Offset)
		p.log.WithField("path", probe.Path()).Info("external probe configured")
	}

	if c.Metrics.Enabled {
		p.collector = metrics.NewCollector(id)
		srv := metrics.NewServer(c.Metrics.Listen, p.collector, logger)
		if err := srv.Start(); err != nil {
			return p, fmt.Errorf("metrics server: %w", err)
		}
		p.closers = append(p.closers, srv.Shutdown)
	}

	pubs, err := publish.FromConfig(ctx, c, id, logger)
	if err != nil {
		return p, err
	}
	for _, w := range pubs {
		if p.collector != nil {
			w.OnFailure = p.collector.PublishFailed
		}
		p.writers.Add(w)
	}

	if stdout != nil {
		f, err := output.ParseFormat(c.Output.ConsoleFormat, output.ConsoleFormats)
		if err != nil {
			return p, err
		}
		switch f {
		case output.FormatBin:
			p.frames = output.NewHexWriter(stdout)
		case output.FormatJSON:
			p.writers.Add(output.NewJSONStream(stdout))
		case output.FormatTab:
			p.writers.Add(output.NewTabWriter(stdout))
		}
	}

	if err := p.openFile(c.Output); err != nil {
		return p, err
	}

	return p, nil
}

func (p *pipeline) openFile(oc config.OutputConfig) error {
	f, err := output.ParseFormat(oc.FileFormat, output.FileFormats)
	if err != nil || f == output.FormatNone {
		return err
	}

	name := output.FileName(oc.FilePrefix, f, time.Now(), oc.TimestampSuffix)
	file, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	p.closers = append(p.closers, file.Close)
	p.fileName = name

	switch f {
	case output.FormatJSON:
		p.writers.Add(output.NewJSONDocument(file))
	case output.FormatTab:
		p.writers.Add(output.NewTabWriter(file))
	case output.FormatCBOR:
		p.writers.Add(output.NewCBORWriter(file))
	}
	p.log.WithField("file", name).Info("writing readings to file")
	return nil
}

// captureConfig builds the loop configuration. extra receives pipeline
// events in addition to the metrics collector.
func (p *pipeline) captureConfig(c *config.Config, extra capture.Recorder) capture.Config {
	var rec capture.Recorder
	if p.collector != nil {
		rec = capture.Recorders(p.collector, extra)
	} else if extra != nil {
		rec = extra
	}
	return capture.Config{
		Session:  c.SessionOptions(),
		Strict:   c.Session.StrictChecksum,
		Writer:   p.writers,
		Frames:   p.frames,
		Merger:   p.merger,
		Recorder: rec,
		Log:      p.log,
	}
}

// abort finalizes the writers created so far with an empty summary, then
// releases files and servers. Used when setup fails before capture runs.
func (p *pipeline) abort() {
	if err := p.writers.Close(session.Summary{}); err != nil {
		p.log.WithError(err).Warn("closing outputs after failed setup")
	}
	p.close()
}

// close releases files and servers in reverse order of creation. Writers
// are closed by the capture loop before this runs.
func (p *pipeline) close() error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		errs = append(errs, p.closers[i]())
	}
	p.closers = nil
	return errors.Join(errs...)
}
