// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package capture runs the logging loop: it pulls frames from the
// transport, decodes them, applies the session rules, merges the external
// probe and hands accepted readings to the outputs.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Thermoquad/dl24log/pkg/dl24"
	"github.com/Thermoquad/dl24log/pkg/output"
	"github.com/Thermoquad/dl24log/pkg/sensor"
	"github.com/Thermoquad/dl24log/pkg/session"
)

// Reason tells why a run ended
type Reason int

const (
	ReasonAutostop    Reason = iota // load stopped with autostop enabled
	ReasonInterrupted               // context cancelled
	ReasonEOF                       // transport closed by the peer
	ReasonTransport                 // transport read failed
	ReasonOutput                    // an output rejected a record
)

func (r Reason) String() string {
	switch r {
	case ReasonAutostop:
		return "autostop"
	case ReasonInterrupted:
		return "interrupted"
	case ReasonEOF:
		return "transport closed"
	case ReasonTransport:
		return "transport error"
	case ReasonOutput:
		return "output error"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// Recorder observes pipeline events. Implementations must be cheap; they
// run on the loop.
type Recorder interface {
	FrameRead(kind dl24.FrameKind)
	ChecksumFailed()
	ReadingEmitted(r *dl24.Reading, state session.State)
	ReadingSuppressed()
	SensorFailed()
	StateChanged(state session.State)
}

// Config wires one run
type Config struct {
	Session session.Options

	// Strict discards data frames with a bad trailing checksum
	Strict bool

	// Writer receives accepted readings. Required.
	Writer output.Writer

	// Frames receives every raw frame before decoding. Optional.
	Frames output.FrameWriter

	// Merger adds the external probe temperature. Optional.
	Merger *sensor.Merger

	// Recorder observes pipeline events. Optional.
	Recorder Recorder

	Log *logrus.Entry

	// Now stamps readings; defaults to time.Now
	Now func() time.Time
}

// Result describes a finished run
type Result struct {
	Reason     Reason
	Summary    session.Summary
	Statistics *dl24.Statistics
}

// Run processes frames from src until autostop, cancellation or a
// transport error. The writer is always closed with the session summary,
// whatever ended the run. Cancellation is observed between frames; to
// interrupt a blocked read the caller closes the transport.
//
// The returned error is nil for autostop, cancellation and a clean EOF.
func Run(ctx context.Context, src io.Reader, cfg Config) (res *Result, err error) {
	if cfg.Writer == nil {
		return nil, errors.New("capture: no writer")
	}
	log := cfg.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	rec := cfg.Recorder
	if rec == nil {
		rec = nopRecorder{}
	}

	decoder := dl24.NewDecoder()
	decoder.Strict = cfg.Strict
	if cfg.Now != nil {
		decoder.Now = cfg.Now
	}

	sess := session.New(cfg.Session)
	stats := dl24.NewStatistics()
	frames := dl24.NewFrameReader(src)
	res = &Result{Statistics: stats}

	defer func() {
		stats.ResyncBytes = frames.Skipped()
		res.Summary = sess.Summary()
		if closeErr := cfg.Writer.Close(res.Summary); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close outputs: %w", closeErr))
		}
		log.WithFields(logrus.Fields{
			"reason":  res.Reason.String(),
			"state":   res.Summary.State.String(),
			"samples": res.Summary.Samples,
		}).Info("capture finished")
	}()

	if err := cfg.Writer.Open(); err != nil {
		res.Reason = ReasonOutput
		return res, fmt.Errorf("open outputs: %w", err)
	}

	for {
		if ctx.Err() != nil {
			res.Reason = ReasonInterrupted
			return res, nil
		}

		frame, readErr := frames.Next()
		if readErr != nil {
			switch {
			case ctx.Err() != nil:
				res.Reason = ReasonInterrupted
				return res, nil
			case errors.Is(readErr, io.EOF), errors.Is(readErr, io.ErrUnexpectedEOF):
				res.Reason = ReasonEOF
				return res, nil
			default:
				res.Reason = ReasonTransport
				return res, fmt.Errorf("read frame: %w", readErr)
			}
		}

		kind := dl24.Classify(frame)
		stats.UpdateFrame(kind)
		rec.FrameRead(kind)

		if cfg.Frames != nil {
			if err := cfg.Frames.WriteFrame(frame); err != nil {
				res.Reason = ReasonOutput
				return res, fmt.Errorf("write frame: %w", err)
			}
		}

		if kind != dl24.FrameData {
			continue
		}

		reading, decErr := decoder.Decode(frame)
		if decErr != nil {
			if errors.Is(decErr, dl24.ErrChecksum) {
				stats.ChecksumErrors++
				rec.ChecksumFailed()
				log.WithError(decErr).Debug("frame discarded")
			}
			continue
		}

		decision := sess.Observe(reading)
		if decision.Transition {
			rec.StateChanged(decision.State)
			log.WithField("state", decision.State.String()).Info("session state changed")
		}
		if !decision.Emit {
			stats.SuppressedReadings++
			rec.ReadingSuppressed()
			continue
		}

		if mergeErr := cfg.Merger.Merge(reading, sess); mergeErr != nil {
			stats.SensorErrors++
			rec.SensorFailed()
			log.WithError(mergeErr).Debug("external probe unavailable")
		}

		if err := cfg.Writer.Emit(reading); err != nil {
			res.Reason = ReasonOutput
			return res, fmt.Errorf("emit reading: %w", err)
		}
		stats.EmittedReadings++
		rec.ReadingEmitted(reading, decision.State)

		if decision.Stop {
			res.Reason = ReasonAutostop
			return res, nil
		}
	}
}

type nopRecorder struct{}

func (nopRecorder) FrameRead(dl24.FrameKind)                    {}
func (nopRecorder) ChecksumFailed()                             {}
func (nopRecorder) ReadingEmitted(*dl24.Reading, session.State) {}
func (nopRecorder) ReadingSuppressed()                          {}
func (nopRecorder) SensorFailed()                               {}
func (nopRecorder) StateChanged(session.State)                  {}

// Recorders fans events out to several recorders, skipping nil entries
func Recorders(recs ...Recorder) Recorder {
	var m multiRecorder
	for _, r := range recs {
		if r != nil {
			m = append(m, r)
		}
	}
	return m
}

type multiRecorder []Recorder

func (m multiRecorder) FrameRead(kind dl24.FrameKind) {
	for _, r := range m {
		r.FrameRead(kind)
	}
}

func (m multiRecorder) ChecksumFailed() {
	for _, r := range m {
		r.ChecksumFailed()
	}
}

func (m multiRecorder) ReadingEmitted(reading *dl24.Reading, state session.State) {
	for _, r := range m {
		r.ReadingEmitted(reading, state)
	}
}

func (m multiRecorder) ReadingSuppressed() {
	for _, r := range m {
		r.ReadingSuppressed()
	}
}

func (m multiRecorder) SensorFailed() {
	for _, r := range m {
		r.SensorFailed()
	}
}

func (m multiRecorder) StateChanged(state session.State) {
	for _, r := range m {
		r.StateChanged(state)
	}
}
