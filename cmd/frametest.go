// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/dl24log/pkg/dl24"
)

var (
	frameTestTimeout int
	frameTestStrict  bool
)

var frameTestCmd = &cobra.Command{
	Use:   "frame_test",
	Short: "Test connection by waiting for a valid DL24 data frame",
	Long: `Wait for a valid DL24 data frame on the connection until timeout.

This command connects to a serial port or WebSocket and waits for a data
frame with the FF 55 01 02 header. With --strict-checksum the trailing
checksum must match too. Bytes before the first frame header are skipped.

Exit codes:
  0 - Data frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error

Useful for checking the Bluetooth serial link before a long capture.`,
	RunE: runFrameTest,
}

func init() {
	rootCmd.AddCommand(frameTestCmd)
	frameTestCmd.Flags().IntVar(&frameTestTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
	frameTestCmd.Flags().BoolVar(&frameTestStrict, "strict-checksum", false, "Require a matching frame checksum")
}

func runFrameTest(cmd *cobra.Command, args []string) error {
	// Open connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection(cmd.Context(), cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("DL24 Logger - Frame Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", frameTestTimeout)
	fmt.Printf("Waiting for valid data frame...\n\n")

	frames := dl24.NewFrameReader(conn)
	decoder := dl24.NewDecoder()
	decoder.Strict = frameTestStrict

	readingChan := make(chan *dl24.Reading, 1)
	errChan := make(chan error, 1)

	// Reader goroutine
	go func() {
		rejected := 0
		for {
			frame, err := frames.Next()
			if err != nil {
				errChan <- err
				return
			}

			reading, err := decoder.Decode(frame)
			if err != nil {
				if errors.Is(err, dl24.ErrChecksum) {
					rejected++
				}
				continue
			}

			if skipped := frames.Skipped(); skipped > 0 {
				fmt.Printf("(skipped %d bytes before sync)\n", skipped)
			}
			if rejected > 0 {
				fmt.Printf("(rejected %d frames with a bad checksum)\n", rejected)
			}
			readingChan <- reading
			return
		}
	}()

	// Wait for frame or timeout
	select {
	case r := <-readingChan:
		fmt.Printf("SUCCESS: Received valid data frame\n")
		fmt.Printf("  Reading: %s\n", r)
		os.Exit(0)

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)

	case <-time.After(time.Duration(frameTestTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid frame received within %d seconds\n", frameTestTimeout)
		os.Exit(1)
	}

	return nil
}
