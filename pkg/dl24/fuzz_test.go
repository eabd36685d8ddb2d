// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dl24

import (
	"bytes"
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

// newFuzzRng creates a new random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

func randomBytes(rng *rand.Rand, n int) []byte {
	b := make([]byte, n)
	rng.Read(b)
	return b
}

func TestFuzzChecksum_MatchesDefinition(t *testing.T) {
	rng := newFuzzRng(t)
	for round := 0; round < getFuzzRounds(); round++ {
		data := randomBytes(rng, rng.Intn(64))
		sum := 0
		for _, b := range data {
			sum += int(b)
		}
		want := byte((sum ^ 0x44) & 0xFF)
		if got := Checksum(data); got != want {
			t.Fatalf("round %d: Checksum(%X) = 0x%02X, want 0x%02X", round, data, got, want)
		}
	}
}

func TestFuzzDataFrame_RoundTrip(t *testing.T) {
	rng := newFuzzRng(t)
	d := &Decoder{Strict: true, Now: fixedClock(1)}

	for round := 0; round < getFuzzRounds(); round++ {
		fields := DataFields{
			VoltageDeci:  rng.Intn(1 << 24),
			Current:      rng.Intn(1 << 24),
			CapacityDeca: rng.Intn(1 << 24),
			MosfetTemp:   rng.Intn(1 << 16),
		}
		r, err := d.Decode(EncodeDataFrame(fields))
		if err != nil {
			t.Fatalf("round %d: Decode error: %v", round, err)
		}
		if r.Voltage != float64(fields.VoltageDeci)/10 ||
			r.Current != fields.Current ||
			r.Capacity != fields.CapacityDeca*10 ||
			r.MosfetTemp != fields.MosfetTemp {
			t.Fatalf("round %d: fields %+v decoded as %+v", round, fields, r)
		}
		if r.Capacity%10 != 0 {
			t.Fatalf("round %d: capacity %d not a multiple of 10", round, r.Capacity)
		}
		if (r.Current == 0) != (r.Resistance == nil) {
			t.Fatalf("round %d: resistance presence wrong for current %d", round, r.Current)
		}
	}
}

func TestFuzzDecode_RandomBytesNeverPanic(t *testing.T) {
	rng := newFuzzRng(t)
	d := &Decoder{Now: fixedClock(0)}

	for round := 0; round < getFuzzRounds(); round++ {
		frame := randomBytes(rng, rng.Intn(FrameSize*2))
		if rng.Intn(2) == 0 && len(frame) >= HeaderSize {
			copy(frame, DataHeader[:])
		}
		r, err := d.Decode(frame)
		if err == nil && r == nil {
			t.Fatalf("round %d: nil reading without error", round)
		}
		_, _ = DecodeCommand(frame)
	}
}

func TestFuzzFrameReader_RandomPrefix(t *testing.T) {
	rng := newFuzzRng(t)

	for round := 0; round < getFuzzRounds(); round++ {
		// Prefix without sync pairs so the first frame is the expected one
		prefix := randomBytes(rng, rng.Intn(FrameSize*3))
		for i := range prefix {
			if prefix[i] == SyncByte1 {
				prefix[i] = 0x00
			}
		}
		frames := make([][]byte, 1+rng.Intn(4))
		stream := append([]byte{}, prefix...)
		for i := range frames {
			frames[i] = EncodeDataFrame(DataFields{VoltageDeci: rng.Intn(1000), Current: rng.Intn(1000)})
			stream = append(stream, frames[i]...)
		}

		fr := NewFrameReader(bytes.NewReader(stream))
		for i, want := range frames {
			got, err := fr.Next()
			if err != nil {
				t.Fatalf("round %d frame %d: %v", round, i, err)
			}
			if !bytes.Equal(got, want) {
				t.Fatalf("round %d frame %d: got %s", round, i, FormatHex(got))
			}
		}
		if fr.Skipped() != uint64(len(prefix)) {
			t.Fatalf("round %d: Skipped = %d, want %d", round, fr.Skipped(), len(prefix))
		}
	}
}
