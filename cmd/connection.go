// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"
	"golang.org/x/term"

	"github.com/Thermoquad/dl24log/pkg/config"
)

// passwordEnv holds the WebSocket bridge password
const passwordEnv = "DL24_PASSWORD"

const (
	handshakeTimeout = 10 * time.Second
	dialTimeout      = 15 * time.Second
)

// Connection is the byte stream to the instrument, either a serial port or
// a serial-to-WebSocket bridge
type Connection interface {
	io.Reader
	io.Writer
	io.Closer
}

// ErrConnectionClosed is returned once the bridge closes the WebSocket
// normally. It wraps io.EOF so the capture loop ends cleanly.
var ErrConnectionClosed = fmt.Errorf("websocket connection closed: %w", io.EOF)

// OpenSerialConnection opens the instrument port as 8N1. Bytes queued
// before the open are dropped so reading starts on fresh frames.
func OpenSerialConnection(portName string, baudRate int) (Connection, error) {
	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", portName, err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, fmt.Errorf("reset serial port %s: %w", portName, err)
	}
	return port, nil
}

// bridgeConn exposes the binary messages of a WebSocket as one byte stream.
// Text messages from the bridge are status chatter and are skipped.
type bridgeConn struct {
	ws  *websocket.Conn
	msg io.Reader
	err error
}

func (b *bridgeConn) Read(p []byte) (int, error) {
	for {
		if b.err != nil {
			return 0, b.err
		}
		if b.msg == nil {
			kind, r, err := b.ws.NextReader()
			if err != nil {
				b.err = bridgeError(err)
				continue
			}
			if kind != websocket.BinaryMessage {
				continue
			}
			b.msg = r
		}

		n, err := b.msg.Read(p)
		if err == io.EOF {
			b.msg = nil
			if n == 0 {
				continue
			}
			err = nil
		}
		return n, err
	}
}

func bridgeError(err error) error {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return ErrConnectionClosed
	}
	return fmt.Errorf("websocket read: %w", err)
}

func (b *bridgeConn) Write(p []byte) (int, error) {
	if err := b.ws.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, fmt.Errorf("websocket write: %w", err)
	}
	return len(p), nil
}

// Close says goodbye to the bridge, then drops the socket. Safe to call
// more than once.
func (b *bridgeConn) Close() error {
	deadline := time.Now().Add(time.Second)
	_ = b.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return b.ws.Close()
}

// OpenWebSocketConnection dials a serial-to-WebSocket bridge. Credentials,
// when given, are sent as HTTP Basic auth on the upgrade request.
func OpenWebSocketConnection(ctx context.Context, wsURL, username, password string, skipSSLVerify bool) (Connection, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("unsupported URL scheme %q (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: skipSSLVerify}
	}

	header := http.Header{}
	if username != "" {
		header.Set("Authorization", basicAuth(username, password))
	}

	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	ws, resp, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket connection failed: %w", err)
	}
	return &bridgeConn{ws: ws}, nil
}

func basicAuth(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

// bridgePassword takes the password from the environment, or asks for it
// on the terminal without echo. Piped stdin is read as one line.
func bridgePassword() (string, error) {
	if pw := os.Getenv(passwordEnv); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")
	defer fmt.Fprintln(os.Stderr)

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		pw, err := term.ReadPassword(fd)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(pw), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// OpenConnection opens the transport named by c, preferring the WebSocket
// bridge when a URL is set. The second result describes the connection
// for banners.
func OpenConnection(ctx context.Context, c *config.Config) (Connection, string, error) {
	switch {
	case c.WebSocket.URL != "":
		var password string
		if c.WebSocket.Username != "" {
			var err error
			if password, err = bridgePassword(); err != nil {
				return nil, "", err
			}
		}
		conn, err := OpenWebSocketConnection(ctx, c.WebSocket.URL, c.WebSocket.Username, password, c.WebSocket.NoSSLVerify)
		if err != nil {
			return nil, "", err
		}
		return conn, "WebSocket: " + c.WebSocket.URL, nil

	case c.Serial.Port != "":
		conn, err := OpenSerialConnection(c.Serial.Port, c.Serial.Baud)
		if err != nil {
			return nil, "", err
		}
		return conn, fmt.Sprintf("Serial: %s @ %d baud", c.Serial.Port, c.Serial.Baud), nil
	}
	return nil, "", errors.New("either --port or --url must be specified")
}
