// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package sensor reads an optional secondary temperature probe and merges
// its samples into readings.
package sensor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultW1BaseDir is where the Linux w1 bus exposes its slaves
const DefaultW1BaseDir = "/sys/bus/w1/devices"

var (
	// ErrNotReady is returned while the probe has no valid conversion
	ErrNotReady = errors.New("probe not ready")
	// ErrMalformed is returned when the probe output cannot be parsed
	ErrMalformed = errors.New("malformed probe data")
	// ErrNotConfigured is returned when no probe id was given
	ErrNotConfigured = errors.New("probe not configured")
)

// Probe returns the current temperature, or an error when no value is
// available
type Probe interface {
	ReadTemperature() (float64, error)
}

// W1Probe reads a DS18B20-style thermometer through the w1_slave sysfs file
type W1Probe struct {
	ID      string
	BaseDir string
}

// NewW1Probe creates a probe for the slave with the given id (e.g. 28-0000075e1a2b)
func NewW1Probe(baseDir, id string) (*W1Probe, error) {
	if err := CheckID(id); err != nil {
		return nil, err
	}
	if baseDir == "" {
		baseDir = DefaultW1BaseDir
	}
	return &W1Probe{ID: id, BaseDir: baseDir}, nil
}

// CheckID rejects ids that are empty or would leave the devices directory
func CheckID(id string) error {
	if id == "" {
		return ErrNotConfigured
	}
	if filepath.Base(id) != id || id == "." || id == ".." {
		return fmt.Errorf("invalid probe id %q", id)
	}
	return nil
}

// Path returns the sysfs file the probe reads
func (p *W1Probe) Path() string {
	return filepath.Join(p.BaseDir, p.ID, "w1_slave")
}

// ReadTemperature reads and parses the w1_slave file
func (p *W1Probe) ReadTemperature() (float64, error) {
	data, err := os.ReadFile(p.Path())
	if err != nil {
		return 0, fmt.Errorf("probe %s: %w", p.ID, err)
	}
	return ParseW1Slave(string(data))
}

// ParseW1Slave parses the two-line w1_slave format:
//
//	72 01 4b 46 7f ff 0e 10 57 : crc=57 YES
//	72 01 4b 46 7f ff 0e 10 57 t=23125
//
// The first line must end in YES (CRC valid); t= is in millidegrees Celsius.
func ParseW1Slave(s string) (float64, error) {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) < 2 {
		return 0, fmt.Errorf("%w: %d lines", ErrMalformed, len(lines))
	}
	if !strings.HasSuffix(strings.TrimSpace(lines[0]), "YES") {
		return 0, ErrNotReady
	}

	idx := strings.LastIndex(lines[1], "t=")
	if idx < 0 {
		return 0, fmt.Errorf("%w: no t= field", ErrMalformed)
	}
	milli, err := strconv.Atoi(strings.TrimSpace(lines[1][idx+2:]))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return float64(milli) / 1000, nil
}
