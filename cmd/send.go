// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/dl24log/pkg/dl24"
)

// commandDelay gives the instrument time to act on a command
var commandDelay = time.Second

var sendCmd = &cobra.Command{
	Use:   "send <command>",
	Short: "Send a button command to the DL24",
	Long: `Send one of the instrument's button commands:

  setup  enter or leave the setup menu
  ok     confirm; toggles the load output on the main screen
  plus   increase the selected value
  minus  decrease the selected value

The command frame is echoed as hex on stderr.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"setup", "ok", "plus", "minus"},
	RunE:      runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	c, err := dl24.ParseCommand(args[0])
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	conn, connInfo, err := OpenConnection(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Fprintf(os.Stderr, "Connection: %s\n", connInfo)
	return sendCommand(conn, c)
}

// sendCommand writes a command frame, echoes it on stderr and waits for
// the instrument to react
func sendCommand(w io.Writer, c dl24.Command) error {
	return writeCommand(w, os.Stderr, c)
}

func writeCommand(w, echo io.Writer, c dl24.Command) error {
	if _, err := w.Write(dl24.EncodeCommand(c)); err != nil {
		return fmt.Errorf("send %s: %w", c, err)
	}
	fmt.Fprintln(echo, dl24.FormatCommandFrame(c))
	time.Sleep(commandDelay)
	return nil
}
