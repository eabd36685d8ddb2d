// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// dl24log - DL24 Electronic Load Data Logger
//
// A CLI tool for capturing telemetry from an Atorch DL24 electronic load
// and streaming it as JSON, tabular rows or CBOR.

package main

import (
	"fmt"
	"os"

	"github.com/Thermoquad/dl24log/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
