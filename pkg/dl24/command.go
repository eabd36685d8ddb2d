// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dl24

import (
	"errors"
	"fmt"
	"strings"
)

// Command is a front panel key press sent to the instrument
type Command uint8

// Command values
const (
	CommandSetup Command = 0x31
	CommandOK    Command = 0x32
	CommandPlus  Command = 0x33
	CommandMinus Command = 0x34
)

var (
	// ErrUnknownCommand is returned for command bytes or names outside
	// SETUP, OK, PLUS and MINUS
	ErrUnknownCommand = errors.New("unknown command")
	// ErrNotCommandFrame is returned by DecodeCommand for frames without
	// the command header
	ErrNotCommandFrame = errors.New("not a command frame")
)

// Commands lists every known command in wire order
var Commands = []Command{CommandSetup, CommandOK, CommandPlus, CommandMinus}

func (c Command) String() string {
	switch c {
	case CommandSetup:
		return "SETUP"
	case CommandOK:
		return "OK"
	case CommandPlus:
		return "PLUS"
	case CommandMinus:
		return "MINUS"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02X)", uint8(c))
	}
}

// Valid reports whether c is a known command
func (c Command) Valid() bool {
	return c >= CommandSetup && c <= CommandMinus
}

// ParseCommand maps a case-insensitive name (setup, ok, plus, minus) to a Command
func ParseCommand(name string) (Command, error) {
	for _, c := range Commands {
		if strings.EqualFold(name, c.String()) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q (use setup, ok, plus or minus)", ErrUnknownCommand, name)
}

// DecodeCommand validates a 10 byte command frame and returns its command
func DecodeCommand(frame []byte) (Command, error) {
	if len(frame) != CommandFrameSize {
		return 0, fmt.Errorf("%w: %d bytes (want %d)", ErrShortFrame, len(frame), CommandFrameSize)
	}
	if Classify(frame) != FrameCommandEcho {
		return 0, ErrNotCommandFrame
	}
	if !VerifyChecksum(frame) {
		return 0, fmt.Errorf("%w: got 0x%02X, calculated 0x%02X", ErrChecksum,
			frame[CommandFrameSize-1], Checksum(frame[checksumSkipBytes:CommandFrameSize-1]))
	}
	c := Command(frame[HeaderSize])
	if !c.Valid() {
		return 0, fmt.Errorf("%w: 0x%02X", ErrUnknownCommand, uint8(c))
	}
	return c, nil
}
