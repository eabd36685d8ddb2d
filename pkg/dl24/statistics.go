// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dl24

import (
	"fmt"
	"time"
)

// Statistics tracks frame and reading counters for one run
type Statistics struct {
	StartTime time.Time

	// Frame counters
	TotalFrames        uint64
	DataFrames         uint64
	CommandEchoes      uint64
	UnknownFrames      uint64
	ChecksumErrors     uint64
	ResyncBytes        uint64
	EmittedReadings    uint64
	SuppressedReadings uint64
	SensorErrors       uint64

	// Rate (calculated)
	FrameRate float64 // frames/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	return &Statistics{StartTime: time.Now()}
}

// UpdateFrame counts a frame by kind
func (s *Statistics) UpdateFrame(kind FrameKind) {
	s.TotalFrames++
	switch kind {
	case FrameData:
		s.DataFrames++
	case FrameCommandEcho:
		s.CommandEchoes++
	default:
		s.UnknownFrames++
	}
}

// CalculateRates calculates the frame rate
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var dataPercent float64
	if s.TotalFrames > 0 {
		dataPercent = float64(s.DataFrames) * 100.0 / float64(s.TotalFrames)
	}

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", time.Since(s.StartTime).Seconds())
	result += fmt.Sprintf("Total Frames:    %8d\n", s.TotalFrames)
	result += fmt.Sprintf("Data Frames:     %8d (%.1f%%)\n", s.DataFrames, dataPercent)
	if s.CommandEchoes > 0 {
		result += fmt.Sprintf("Command Echoes:  %8d\n", s.CommandEchoes)
	}
	if s.UnknownFrames > 0 {
		result += fmt.Sprintf("Unknown Frames:  %8d\n", s.UnknownFrames)
	}
	if s.ChecksumErrors > 0 {
		result += fmt.Sprintf("Checksum Errors: %8d\n", s.ChecksumErrors)
	}
	if s.ResyncBytes > 0 {
		result += fmt.Sprintf("Resync Bytes:    %8d\n", s.ResyncBytes)
	}
	result += fmt.Sprintf("Emitted:         %8d\n", s.EmittedReadings)
	if s.SuppressedReadings > 0 {
		result += fmt.Sprintf("Suppressed:      %8d\n", s.SuppressedReadings)
	}
	if s.SensorErrors > 0 {
		result += fmt.Sprintf("Sensor Errors:   %8d\n", s.SensorErrors)
	}
	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += "================================\n"

	return result
}
