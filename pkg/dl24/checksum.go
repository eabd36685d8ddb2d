// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dl24

// Checksum returns (sum(data) XOR 0x44) & 0xFF
func Checksum(data []byte) byte {
	var sum int
	for _, b := range data {
		sum += int(b)
	}
	return byte((sum ^ checksumXor) & 0xFF)
}

// VerifyChecksum reports whether the last byte of frame is the checksum of
// the bytes between the sync bytes and the checksum byte.
//
// The logger does not require this for data frames; it is only enforced in
// strict mode.
func VerifyChecksum(frame []byte) bool {
	if len(frame) <= checksumSkipBytes {
		return false
	}
	last := len(frame) - 1
	return frame[last] == Checksum(frame[checksumSkipBytes:last])
}
