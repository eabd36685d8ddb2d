// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package dl24 implements the serial telemetry protocol of the Atorch DL24
// electronic load.
//
// The instrument streams fixed-size 36 byte frames. Data frames carry the
// measured voltage, current, accumulated capacity and MOSFET temperature as
// big-endian fixed-point integers. The host drives the front panel with
// 10 byte command frames (SETUP, OK, PLUS, MINUS), which the instrument
// echoes back.
package dl24

// Frame sizes
const (
	FrameSize        = 36
	CommandFrameSize = 10
	HeaderSize       = 4
)

// Sync bytes shared by every frame
const (
	SyncByte1 = 0xFF
	SyncByte2 = 0x55
)

// Frame headers
var (
	DataHeader        = [HeaderSize]byte{SyncByte1, SyncByte2, 0x01, 0x02}
	CommandEchoHeader = [HeaderSize]byte{SyncByte1, SyncByte2, 0x11, 0x02}
)

// Data frame field offsets (0-based)
const (
	offsetVoltage     = 0x04 // 3 bytes, volts x10
	offsetCurrent     = 0x07 // 3 bytes, mA
	offsetCapacity    = 0x0A // 3 bytes, mAh /10
	offsetMosfetTemp  = 0x18 // 2 bytes, device unit (C or F)
	checksumXor       = 0x44
	checksumSkipBytes = 2 // sync bytes are not covered by the checksum
)

// Fixed-point scaling
const (
	voltageDivisor     = 10
	capacityMultiplier = 10
)

// FrameKind classifies a raw frame by its header
type FrameKind int

const (
	FrameUnknown FrameKind = iota
	FrameData
	FrameCommandEcho
)

func (k FrameKind) String() string {
	switch k {
	case FrameData:
		return "data"
	case FrameCommandEcho:
		return "command_echo"
	default:
		return "unknown"
	}
}
