// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package output

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Thermoquad/dl24log/pkg/dl24"
)

// Format selects how readings are rendered
type Format string

// Output formats
const (
	FormatNone Format = "none"
	FormatBin  Format = "bin" // console only: hex dump of every frame
	FormatJSON Format = "json"
	FormatTab  Format = "tab"
	FormatCBOR Format = "cbor" // file only
)

// ConsoleFormats and FileFormats list the formats each sink accepts
var (
	ConsoleFormats = []Format{FormatNone, FormatBin, FormatJSON, FormatTab}
	FileFormats    = []Format{FormatNone, FormatJSON, FormatTab, FormatCBOR}
)

// ParseFormat validates name against the allowed formats. An empty name
// is FormatNone.
func ParseFormat(name string, allowed []Format) (Format, error) {
	if name == "" {
		return FormatNone, nil
	}
	for _, f := range allowed {
		if strings.EqualFold(name, string(f)) {
			return f, nil
		}
	}
	names := make([]string, len(allowed))
	for i, f := range allowed {
		names[i] = string(f)
	}
	return "", fmt.Errorf("unknown format %q (use %s)", name, strings.Join(names, ", "))
}

// fileTimeLayout is yymmddHHMMSS
const fileTimeLayout = "060102150405"

// FileName builds <prefix>[_yymmddHHMMSS].<format>
func FileName(prefix string, f Format, now time.Time, timestampSuffix bool) string {
	name := prefix
	if timestampSuffix {
		name += "_" + now.Format(fileTimeLayout)
	}
	return filepath.Clean(name + "." + string(f))
}

// FormatJSONRecord renders one reading as a JSON object with keys in fixed
// order. ext_temp and resistance are omitted when not applicable.
func FormatJSONRecord(r *dl24.Reading) string {
	s := fmt.Sprintf(`  {"timestamp": %d, "voltage": %.1f, "current": %d, "capacity": %d, "power": %.2f, "mos_temp": %d`,
		r.Timestamp, r.Voltage, r.Current, r.Capacity, r.Power, r.MosfetTemp)
	if r.ExternalTemp != nil {
		s += fmt.Sprintf(`, "ext_temp": %.1f`, *r.ExternalTemp)
	}
	if r.Resistance != nil {
		s += fmt.Sprintf(`, "resistance": %.1f`, *r.Resistance)
	}
	return s + "}"
}

// FormatTabRecord renders one reading as a bracketed positional row in
// the JSON key order. Optional fields are left out, giving a shorter row.
func FormatTabRecord(r *dl24.Reading) string {
	s := fmt.Sprintf("[%d, %.1f, %d, %d, %.2f, %d", r.Timestamp, r.Voltage, r.Current, r.Capacity, r.Power, r.MosfetTemp)
	if r.ExternalTemp != nil {
		s += fmt.Sprintf(", %.1f", *r.ExternalTemp)
	}
	if r.Resistance != nil {
		s += fmt.Sprintf(", %.1f", *r.Resistance)
	}
	return s + "]"
}

// formatAverage renders the session average temperature
func formatAverage(avg float64) string {
	return fmt.Sprintf("%.2f", avg)
}
