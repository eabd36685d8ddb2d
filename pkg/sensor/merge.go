// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sensor

import (
	"math"

	"github.com/Thermoquad/dl24log/pkg/dl24"
	"github.com/Thermoquad/dl24log/pkg/session"
)

// Merger annotates readings with the probe temperature and feeds the
// session average
type Merger struct {
	probe  Probe
	offset float64
}

// NewMerger creates a merger. offset is added to every raw probe value.
func NewMerger(probe Probe, offset float64) *Merger {
	return &Merger{probe: probe, offset: offset}
}

// Merge reads the probe once. On success the calibrated value, rounded to
// the 0.1 degree written to the outputs, is attached to r and added to the
// session average. On failure r is left without an
// external temperature and the error is returned for reporting only.
// A nil Merger is a no-op.
func (m *Merger) Merge(r *dl24.Reading, s *session.Session) error {
	if m == nil || m.probe == nil {
		return nil
	}
	raw, err := m.probe.ReadTemperature()
	if err != nil {
		return err
	}
	t := math.Round((raw+m.offset)*10) / 10
	r.SetExternalTemp(t)
	s.AddExternalTemp(t)
	return nil
}
