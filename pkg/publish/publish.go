// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package publish forwards accepted readings to message brokers. Publishing
// is best effort: failures are logged and counted but never end a run.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Thermoquad/dl24log/pkg/dl24"
	"github.com/Thermoquad/dl24log/pkg/session"
)

// DefaultTimeout bounds one publish call
const DefaultTimeout = 2 * time.Second

// Publisher sends one payload. key identifies the session and is used for
// partitioning or list naming where the broker supports it.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, key string, payload []byte) error
	Close() error
}

// Record is the published form of a reading
type Record struct {
	Session      string   `json:"session"`
	Timestamp    int64    `json:"timestamp"`
	Voltage      float64  `json:"voltage"`
	Current      int      `json:"current"`
	Capacity     int      `json:"capacity"`
	Power        float64  `json:"power"`
	MosfetTemp   int      `json:"mos_temp"`
	ExternalTemp *float64 `json:"ext_temp,omitempty"`
	Resistance   *float64 `json:"resistance,omitempty"`
}

// Summary is published once when the run ends
type Summary struct {
	Session     string   `json:"session"`
	State       string   `json:"state"`
	AverageTemp *float64 `json:"average_temp,omitempty"`
	Samples     int      `json:"samples"`
}

// NewRecord converts a reading for publishing
func NewRecord(sessionID string, r *dl24.Reading) Record {
	return Record{
		Session:      sessionID,
		Timestamp:    r.Timestamp,
		Voltage:      r.Voltage,
		Current:      r.Current,
		Capacity:     r.Capacity,
		Power:        r.Power,
		MosfetTemp:   r.MosfetTemp,
		ExternalTemp: r.ExternalTemp,
		Resistance:   r.Resistance,
	}
}

// Writer adapts a Publisher to the output writer contract so the capture
// loop can treat brokers like any other sink
type Writer struct {
	pub     Publisher
	session string
	log     *logrus.Entry
	timeout time.Duration
	closed  bool

	published atomic.Uint64
	failures  atomic.Uint64

	// OnFailure, if set, is called for every failed publish
	OnFailure func(sink string, err error)
}

// NewWriter wraps pub. Records are tagged with sessionID.
func NewWriter(pub Publisher, sessionID string, log *logrus.Logger) *Writer {
	return &Writer{
		pub:     pub,
		session: sessionID,
		log:     log.WithFields(logrus.Fields{"sink": pub.Name(), "session": sessionID}),
		timeout: DefaultTimeout,
	}
}

// Name returns the publisher name
func (w *Writer) Name() string {
	return w.pub.Name()
}

func (w *Writer) Open() error { return nil }

// Emit publishes r. Broker errors are reported through the logger and
// OnFailure, not returned.
func (w *Writer) Emit(r *dl24.Reading) error {
	if w.closed {
		return nil
	}
	payload, err := json.Marshal(NewRecord(w.session, r))
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	w.send(payload)
	return nil
}

// Close publishes the session summary and releases the broker connection
func (w *Writer) Close(sum session.Summary) error {
	if w.closed {
		return nil
	}
	w.closed = true

	payload, err := json.Marshal(Summary{
		Session:     w.session,
		State:       sum.State.String(),
		AverageTemp: sum.AverageTemp,
		Samples:     sum.Samples,
	})
	if err == nil {
		w.send(payload)
	}

	w.log.WithFields(logrus.Fields{
		"published": w.published.Load(),
		"failed":    w.failures.Load(),
	}).Info("publisher closed")

	if err := w.pub.Close(); err != nil {
		return fmt.Errorf("close %s: %w", w.pub.Name(), err)
	}
	return nil
}

// Published returns the number of successful publishes
func (w *Writer) Published() uint64 {
	return w.published.Load()
}

// Failures returns the number of failed publishes
func (w *Writer) Failures() uint64 {
	return w.failures.Load()
}

func (w *Writer) send(payload []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	if err := w.pub.Publish(ctx, w.session, payload); err != nil {
		w.failures.Add(1)
		w.log.WithError(err).Warn("publish failed")
		if w.OnFailure != nil {
			w.OnFailure(w.pub.Name(), err)
		}
		return
	}
	w.published.Add(1)
}
