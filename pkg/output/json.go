// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package output

import (
	"io"

	"github.com/Thermoquad/dl24log/pkg/dl24"
	"github.com/Thermoquad/dl24log/pkg/session"
)

// JSON structural tokens
const (
	documentOpen        = "{\n\"data\": [\n"
	documentClose       = "\n]\n}\n"
	documentCloseAvg    = "\n],\n\"average_temp\": "
	documentCloseAvgEnd = "\n}\n"
	streamOpen          = "[\n"
	streamClose         = "\n]\n"
	recordSeparator     = ",\n"
)

// JSONWriter streams readings as a JSON array.
//
// In document mode (files) the array is wrapped in an object that also
// carries the session average temperature:
//
//	{
//	"data": [
//	  {...},
//	  {...}
//	],
//	"average_temp": 21.00
//	}
//
// In stream mode (console) only the bracketed array is written.
type JSONWriter struct {
	w        io.Writer
	document bool
	first    bool
	lc       lifecycle
}

// NewJSONDocument creates a writer for the file document shape
func NewJSONDocument(w io.Writer) *JSONWriter {
	return &JSONWriter{w: w, document: true, first: true}
}

// NewJSONStream creates a writer for the bare console array
func NewJSONStream(w io.Writer) *JSONWriter {
	return &JSONWriter{w: w, first: true}
}

func (j *JSONWriter) Open() error {
	return j.lc.open(j.writeOpen)
}

func (j *JSONWriter) writeOpen() error {
	if j.document {
		return j.write(documentOpen)
	}
	return j.write(streamOpen)
}

func (j *JSONWriter) Emit(r *dl24.Reading) error {
	if j.lc.closed {
		return ErrClosed
	}
	if err := j.Open(); err != nil {
		return err
	}
	record := FormatJSONRecord(r)
	if !j.first {
		record = recordSeparator + record
	}
	j.first = false
	return j.write(record)
}

func (j *JSONWriter) Close(sum session.Summary) error {
	return j.lc.close(j.writeOpen, func() error {
		if !j.document {
			return j.write(streamClose)
		}
		if sum.AverageTemp == nil {
			return j.write(documentClose)
		}
		return j.write(documentCloseAvg + formatAverage(*sum.AverageTemp) + documentCloseAvgEnd)
	})
}

func (j *JSONWriter) write(s string) error {
	_, err := io.WriteString(j.w, s)
	return err
}
