// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dl24

// EncodeCommand builds the 10 byte frame for a command:
// FF 55 11 02 <cmd> 00 00 00 00 <checksum>
func EncodeCommand(c Command) []byte {
	frame := make([]byte, 0, CommandFrameSize)
	frame = append(frame, CommandEchoHeader[:]...)
	frame = append(frame, byte(c), 0x00, 0x00, 0x00, 0x00)
	return append(frame, Checksum(frame[checksumSkipBytes:]))
}

// DataFields are the raw integers carried by a data frame
type DataFields struct {
	VoltageDeci  int // volts x10
	Current      int // mA
	CapacityDeca int // mAh /10
	MosfetTemp   int
}

// EncodeDataFrame builds a 36 byte data frame with a valid trailing
// checksum. The instrument produces these; the encoder exists for
// simulators and tests.
func EncodeDataFrame(f DataFields) []byte {
	frame := make([]byte, FrameSize)
	copy(frame, DataHeader[:])
	putUint24(frame, offsetVoltage, f.VoltageDeci)
	putUint24(frame, offsetCurrent, f.Current)
	putUint24(frame, offsetCapacity, f.CapacityDeca)
	frame[offsetMosfetTemp] = byte(f.MosfetTemp >> 8)
	frame[offsetMosfetTemp+1] = byte(f.MosfetTemp)
	frame[FrameSize-1] = Checksum(frame[checksumSkipBytes : FrameSize-1])
	return frame
}

func putUint24(data []byte, pos, v int) {
	data[pos] = byte(v >> 16)
	data[pos+1] = byte(v >> 8)
	data[pos+2] = byte(v)
}
