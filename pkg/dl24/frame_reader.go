// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dl24

import (
	"bytes"
	"io"
)

var syncBytes = []byte{SyncByte1, SyncByte2}

// FrameReader pulls fixed-size frames from a byte stream.
//
// A frame always starts with the sync bytes FF 55. When the stream is
// joined mid-frame the reader drops bytes up to the next sync pair and
// completes the frame from the stream, so a misaligned start costs at most
// one frame.
type FrameReader struct {
	r       io.Reader
	buf     [FrameSize]byte
	skipped uint64
}

// NewFrameReader creates a frame reader on top of r
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: r}
}

// Next blocks until a full frame is available and returns a copy of it.
// Read errors from the underlying stream are returned unchanged.
func (fr *FrameReader) Next() ([]byte, error) {
	filled := 0
	for {
		if _, err := io.ReadFull(fr.r, fr.buf[filled:]); err != nil {
			return nil, err
		}

		i := bytes.Index(fr.buf[:], syncBytes)
		switch {
		case i == 0:
			frame := make([]byte, FrameSize)
			copy(frame, fr.buf[:])
			return frame, nil

		case i > 0:
			copy(fr.buf[:], fr.buf[i:])
			filled = FrameSize - i
			fr.skipped += uint64(i)

		case fr.buf[FrameSize-1] == SyncByte1:
			// Possible sync pair split across reads
			fr.buf[0] = SyncByte1
			filled = 1
			fr.skipped += FrameSize - 1

		default:
			filled = 0
			fr.skipped += FrameSize
		}
	}
}

// Skipped returns the number of bytes dropped while searching for sync
func (fr *FrameReader) Skipped() uint64 {
	return fr.skipped
}
