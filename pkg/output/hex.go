// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package output

import (
	"io"

	"github.com/Thermoquad/dl24log/pkg/dl24"
)

// HexWriter dumps raw frames, one per line
type HexWriter struct {
	w io.Writer
}

// NewHexWriter creates a raw frame dumper
func NewHexWriter(w io.Writer) *HexWriter {
	return &HexWriter{w: w}
}

func (h *HexWriter) WriteFrame(frame []byte) error {
	_, err := io.WriteString(h.w, dl24.FormatHex(frame)+"\n")
	return err
}
