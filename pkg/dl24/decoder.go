// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dl24

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrShortFrame is returned for frames shorter than the expected size
	ErrShortFrame = errors.New("short frame")
	// ErrNotDataFrame is returned by Decode for frames without the data
	// header. Callers discard such frames.
	ErrNotDataFrame = errors.New("not a data frame")
	// ErrChecksum is returned in strict mode when the trailing checksum
	// byte does not match
	ErrChecksum = errors.New("checksum mismatch")
)

// Classify returns the frame kind from its 4 byte header
func Classify(frame []byte) FrameKind {
	if len(frame) < HeaderSize {
		return FrameUnknown
	}
	var h [HeaderSize]byte
	copy(h[:], frame[:HeaderSize])
	switch h {
	case DataHeader:
		return FrameData
	case CommandEchoHeader:
		return FrameCommandEcho
	default:
		return FrameUnknown
	}
}

// Decoder turns data frames into Readings
type Decoder struct {
	// Strict enables inbound checksum validation
	Strict bool
	// Now stamps decoded readings; defaults to time.Now
	Now func() time.Time
}

// NewDecoder creates a decoder that stamps readings with the wall clock
func NewDecoder() *Decoder {
	return &Decoder{Now: time.Now}
}

// Decode extracts a Reading from a data frame.
// Frames with another header return ErrNotDataFrame.
func (d *Decoder) Decode(frame []byte) (*Reading, error) {
	if len(frame) < FrameSize {
		return nil, fmt.Errorf("%w: %d bytes (want %d)", ErrShortFrame, len(frame), FrameSize)
	}
	if Classify(frame) != FrameData {
		return nil, ErrNotDataFrame
	}
	if d.Strict && !VerifyChecksum(frame[:FrameSize]) {
		return nil, fmt.Errorf("%w: got 0x%02X, calculated 0x%02X", ErrChecksum,
			frame[FrameSize-1], Checksum(frame[checksumSkipBytes:FrameSize-1]))
	}

	now := time.Now
	if d.Now != nil {
		now = d.Now
	}

	voltage := float64(uint24(frame, offsetVoltage)) / voltageDivisor
	current := uint24(frame, offsetCurrent)
	capacity := uint24(frame, offsetCapacity) * capacityMultiplier
	temp := uint16be(frame, offsetMosfetTemp)

	return NewReading(now().Unix(), voltage, current, capacity, temp), nil
}

// uint24 reads a big-endian 3 byte integer
func uint24(data []byte, pos int) int {
	return int(data[pos])<<16 | int(data[pos+1])<<8 | int(data[pos+2])
}

// uint16be reads a big-endian 2 byte integer
func uint16be(data []byte, pos int) int {
	return int(data[pos])<<8 | int(data[pos+1])
}
