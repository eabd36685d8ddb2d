// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package output

import (
	"io"

	"github.com/Thermoquad/dl24log/pkg/dl24"
	"github.com/Thermoquad/dl24log/pkg/session"
)

// TabWriter writes one bracketed row per reading. It has no opening or
// closing tokens.
type TabWriter struct {
	w      io.Writer
	closed bool
}

// NewTabWriter creates a tabular writer
func NewTabWriter(w io.Writer) *TabWriter {
	return &TabWriter{w: w}
}

func (t *TabWriter) Open() error { return nil }

func (t *TabWriter) Emit(r *dl24.Reading) error {
	if t.closed {
		return ErrClosed
	}
	_, err := io.WriteString(t.w, FormatTabRecord(r)+"\n")
	return err
}

func (t *TabWriter) Close(session.Summary) error {
	t.closed = true
	return nil
}
