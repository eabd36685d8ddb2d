// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dl24

import (
	"fmt"
	"strings"
)

// FormatHex renders bytes the way the instrument documentation lists them:
// "0xFF 0x55 0x01 ..."
func FormatHex(data []byte) string {
	var sb strings.Builder
	for i, b := range data {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "0x%02X", b)
	}
	return sb.String()
}

// FormatCommandFrame renders an outbound command frame followed by the
// command name
func FormatCommandFrame(c Command) string {
	return fmt.Sprintf("%s COMMAND: %s", FormatHex(EncodeCommand(c)), c)
}
