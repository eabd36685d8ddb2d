// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package output

import (
	"io"
	"math"

	"github.com/fxamacker/cbor/v2"

	"github.com/Thermoquad/dl24log/pkg/dl24"
	"github.com/Thermoquad/dl24log/pkg/session"
)

// cborRecord mirrors the JSON record keys
type cborRecord struct {
	Timestamp  int64    `cbor:"timestamp"`
	Voltage    float64  `cbor:"voltage"`
	Current    int      `cbor:"current"`
	Capacity   int      `cbor:"capacity"`
	Power      float64  `cbor:"power"`
	MosTemp    int      `cbor:"mos_temp"`
	ExtTemp    *float64 `cbor:"ext_temp,omitempty"`
	Resistance *float64 `cbor:"resistance,omitempty"`
}

type cborSummary struct {
	AverageTemp float64 `cbor:"average_temp"`
}

// CBORWriter writes an RFC 8742 CBOR sequence: one map per reading and,
// when external temperature data was collected, a trailing summary map.
type CBORWriter struct {
	enc    *cbor.Encoder
	closed bool
}

// NewCBORWriter creates a CBOR sequence writer
func NewCBORWriter(w io.Writer) *CBORWriter {
	return &CBORWriter{enc: cbor.NewEncoder(w)}
}

func (c *CBORWriter) Open() error { return nil }

func (c *CBORWriter) Emit(r *dl24.Reading) error {
	if c.closed {
		return ErrClosed
	}
	return c.enc.Encode(cborRecord{
		Timestamp:  r.Timestamp,
		Voltage:    round(r.Voltage, 1),
		Current:    r.Current,
		Capacity:   r.Capacity,
		Power:      round(r.Power, 2),
		MosTemp:    r.MosfetTemp,
		ExtTemp:    roundPtr(r.ExternalTemp, 1),
		Resistance: roundPtr(r.Resistance, 1),
	})
}

func (c *CBORWriter) Close(sum session.Summary) error {
	if c.closed {
		return nil
	}
	c.closed = true
	if sum.AverageTemp == nil {
		return nil
	}
	return c.enc.Encode(cborSummary{AverageTemp: round(*sum.AverageTemp, 2)})
}

func round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

func roundPtr(v *float64, decimals int) *float64 {
	if v == nil {
		return nil
	}
	r := round(*v, decimals)
	return &r
}
