// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package session tracks the state of one logging run: the load
// started/working/stopped state machine, capacity-diff suppression and the
// running average of the external temperature probe.
package session

import (
	"fmt"

	"github.com/Thermoquad/dl24log/pkg/dl24"
)

// State is the load state derived from the current readings
type State int

// Session states
const (
	StateStarted State = iota
	StateWorking
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarted:
		return "started"
	case StateWorking:
		return "working"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Options are the session switches resolved from configuration
type Options struct {
	// Autostop ends the run on the first zero-current reading after the
	// load has been working
	Autostop bool
	// CapacityDiff drops readings whose capacity equals the previously
	// emitted capacity
	CapacityDiff bool
}

// Decision is the outcome of observing one reading
type Decision struct {
	Emit       bool  // write the reading to the sinks
	Stop       bool  // end the run after emitting
	Transition bool  // the reading changed the state
	State      State // state after the reading
}

// Session is the mutable state of one run. It is owned by the capture
// loop and is not safe for concurrent use.
type Session struct {
	opts  Options
	state State

	previousCapacity    int
	hasPreviousCapacity bool

	extTempSum   float64
	extTempCount int
}

// New creates a session in the started state
func New(opts Options) *Session {
	return &Session{opts: opts, state: StateStarted}
}

// State returns the current state
func (s *Session) State() State {
	return s.state
}

// Options returns the options the session was created with
func (s *Session) Options() Options {
	return s.opts
}

// Observe applies the state transition for a reading and decides whether
// it is emitted and whether the run ends.
//
// The transition is applied before suppression. When autostop is enabled
// and the session is stopped, readings are emitted even if their capacity
// repeats so the final record is never lost.
func (s *Session) Observe(r *dl24.Reading) Decision {
	before := s.state
	switch {
	case r.Current != 0 && s.state == StateStarted:
		s.state = StateWorking
	case r.Current == 0 && s.state == StateWorking:
		s.state = StateStopped
	}

	d := Decision{
		Transition: s.state != before,
		State:      s.state,
	}

	flushing := s.opts.Autostop && s.state == StateStopped
	if s.opts.CapacityDiff && !flushing && s.hasPreviousCapacity && r.Capacity == s.previousCapacity {
		return d
	}

	s.previousCapacity = r.Capacity
	s.hasPreviousCapacity = true
	d.Emit = true
	d.Stop = s.opts.Autostop && d.Transition && s.state == StateStopped
	return d
}

// PreviousCapacity returns the last emitted capacity. ok is false before
// the first emitted reading.
func (s *Session) PreviousCapacity() (capacity int, ok bool) {
	return s.previousCapacity, s.hasPreviousCapacity
}

// AddExternalTemp accumulates a successful external temperature sample
func (s *Session) AddExternalTemp(t float64) {
	s.extTempSum += t
	s.extTempCount++
}

// ExternalTempCount returns the number of accumulated samples
func (s *Session) ExternalTempCount() int {
	return s.extTempCount
}

// Summary returns the end-of-run summary
func (s *Session) Summary() Summary {
	sum := Summary{State: s.state, Samples: s.extTempCount}
	if s.extTempCount > 0 {
		avg := s.extTempSum / float64(s.extTempCount)
		sum.AverageTemp = &avg
	}
	return sum
}

// Summary is handed to the writers when the run closes
type Summary struct {
	State State
	// AverageTemp is the mean external temperature, nil when no sample
	// was collected
	AverageTemp *float64
	Samples     int
}
