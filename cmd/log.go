// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Thermoquad/dl24log/pkg/capture"
	"github.com/Thermoquad/dl24log/pkg/dl24"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Log DL24 readings to the console, a file and publishers",
	Long: `Continuously decode DL24 data frames and stream the readings.

Console formats (--sformat):
  bin   every frame read, as hex bytes
  json  a JSON array of readings
  tab   one bracketed row per reading

File formats (--fformat, requires --filename):
  json  {"data": [...], "average_temp": X} document
  tab   one bracketed row per reading
  cbor  CBOR sequence, one map per reading

Output stays well-formed on Ctrl+C, on transport errors and when
--autostop ends the run. Readings go to stdout; logs go to stderr.

Supports both serial and WebSocket connections.`,
	RunE: runLog,
}

func init() {
	rootCmd.AddCommand(logCmd)
	addCaptureFlags(logCmd, true)
}

func runLog(cmd *cobra.Command, args []string) error {
	applyCaptureFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	if !cfg.HasSink() && !cfg.Session.PowerOn {
		return errors.New("nothing to do: set --sformat, --fformat, --onoff or a publisher")
	}

	// Open connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	if cfg.Session.PowerOn {
		if err := sendCommand(conn, dl24.CommandOK); err != nil {
			return err
		}
	}
	if !cfg.HasSink() {
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A pending read only returns once the transport is closed
	stopClose := context.AfterFunc(ctx, func() { conn.Close() })
	defer stopClose()

	p, err := newPipeline(ctx, cfg, os.Stdout)
	if err != nil {
		return err
	}
	defer p.close()

	interactive := term.IsTerminal(int(os.Stderr.Fd()))
	if interactive {
		fmt.Fprintf(os.Stderr, "DL24 Logger\n")
		fmt.Fprintf(os.Stderr, "Connection: %s\n", connInfo)
		if p.fileName != "" {
			fmt.Fprintf(os.Stderr, "File: %s\n", p.fileName)
		}
		fmt.Fprintf(os.Stderr, "Press Ctrl+C to exit\n\n")
	}

	res, err := capture.Run(ctx, conn, p.captureConfig(cfg, nil))
	if res != nil && interactive {
		if res.Reason == capture.ReasonInterrupted {
			fmt.Fprintf(os.Stderr, "\nexit...\n")
		}
		fmt.Fprintf(os.Stderr, "\n%s", res.Statistics)
	}
	return err
}
