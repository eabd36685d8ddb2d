// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package output streams readings to consoles, files and other sinks as
// well-formed documents without holding earlier records in memory.
package output

import (
	"errors"

	"github.com/Thermoquad/dl24log/pkg/dl24"
	"github.com/Thermoquad/dl24log/pkg/session"
)

// ErrClosed is returned when emitting to a writer that was already closed
var ErrClosed = errors.New("writer closed")

// Writer is one output sink. Open writes the opening tokens, Emit appends
// one record with the separator it needs, Close writes the closing tokens
// and the session summary. Each writer keeps its own separator state.
type Writer interface {
	Open() error
	Emit(r *dl24.Reading) error
	Close(sum session.Summary) error
}

// FrameWriter receives every raw frame read from the transport
type FrameWriter interface {
	WriteFrame(frame []byte) error
}

// lifecycle enforces open-once / close-once for writers with structural
// tokens. Emit and Close open the writer first if Open was never called
// so the output is always well-formed.
type lifecycle struct {
	opened bool
	closed bool
}

func (l *lifecycle) open(fn func() error) error {
	if l.opened {
		return nil
	}
	l.opened = true
	return fn()
}

func (l *lifecycle) close(openFn, closeFn func() error) error {
	if l.closed {
		return nil
	}
	if err := l.open(openFn); err != nil {
		return err
	}
	l.closed = true
	return closeFn()
}

// Multi fans a reading out to several writers. Errors from one writer do
// not prevent delivery to the others; they are joined.
type Multi struct {
	writers []Writer
}

// NewMulti creates a fan-out writer, skipping nil entries
func NewMulti(writers ...Writer) *Multi {
	m := &Multi{}
	for _, w := range writers {
		if w != nil {
			m.writers = append(m.writers, w)
		}
	}
	return m
}

// Add appends a writer
func (m *Multi) Add(w Writer) {
	if w != nil {
		m.writers = append(m.writers, w)
	}
}

// Len returns the number of writers
func (m *Multi) Len() int {
	return len(m.writers)
}

func (m *Multi) Open() error {
	var errs []error
	for _, w := range m.writers {
		errs = append(errs, w.Open())
	}
	return errors.Join(errs...)
}

func (m *Multi) Emit(r *dl24.Reading) error {
	var errs []error
	for _, w := range m.writers {
		errs = append(errs, w.Emit(r))
	}
	return errors.Join(errs...)
}

func (m *Multi) Close(sum session.Summary) error {
	var errs []error
	for _, w := range m.writers {
		errs = append(errs, w.Close(sum))
	}
	return errors.Join(errs...)
}
