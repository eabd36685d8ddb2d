// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dl24

import "fmt"

// Reading is the engineering-unit view of one data frame.
//
// Optional values are nil when not applicable: Resistance while no current
// flows, ExternalTemp when no probe is configured or the probe read failed.
type Reading struct {
	Timestamp    int64   // unix seconds
	Voltage      float64 // V, one decimal
	Current      int     // mA
	Capacity     int     // mAh, multiples of 10
	Power        float64 // W
	MosfetTemp   int     // device unit, C or F
	Resistance   *float64
	ExternalTemp *float64
}

// NewReading builds a Reading and derives power and resistance
func NewReading(timestamp int64, voltage float64, current, capacity, mosfetTemp int) *Reading {
	r := &Reading{
		Timestamp:  timestamp,
		Voltage:    voltage,
		Current:    current,
		Capacity:   capacity,
		MosfetTemp: mosfetTemp,
	}
	r.Power = Power(voltage, current)
	if res, ok := Resistance(voltage, current); ok {
		r.Resistance = &res
	}
	return r
}

// Power returns voltage x current in watts (current in mA)
func Power(voltage float64, current int) float64 {
	return voltage * float64(current) / 1000
}

// Resistance returns the load resistance in ohms. ok is false when current
// is zero.
func Resistance(voltage float64, current int) (ohms float64, ok bool) {
	if current == 0 {
		return 0, false
	}
	return voltage / (float64(current) / 1000), true
}

// SetExternalTemp attaches a secondary temperature sample
func (r *Reading) SetExternalTemp(t float64) {
	r.ExternalTemp = &t
}

// String fulfils the Stringer interface
func (r *Reading) String() string {
	s := fmt.Sprintf("%.1f V, %d mA, %d mAh, %.2f W, MOSFET %d", r.Voltage, r.Current, r.Capacity, r.Power, r.MosfetTemp)
	if r.Resistance != nil {
		s += fmt.Sprintf(", %.1f Ohm", *r.Resistance)
	}
	if r.ExternalTemp != nil {
		s += fmt.Sprintf(", ext %.1f", *r.ExternalTemp)
	}
	return s
}
