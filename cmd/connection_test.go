// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Thermoquad/dl24log/pkg/config"
	"github.com/Thermoquad/dl24log/pkg/dl24"
)

// newBridge starts a fake serial-to-WebSocket bridge. It sends a status
// text message and a frame split over two binary messages, waits for one
// message from the client, then closes normally.
func newBridge(t *testing.T, received chan<- []byte) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "dl24" || pass != "secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		ws.WriteMessage(websocket.TextMessage, []byte("bridge ready"))
		ws.WriteMessage(websocket.BinaryMessage, []byte{0xFF, 0x55, 0x01})
		ws.WriteMessage(websocket.BinaryMessage, []byte{0x02, 0x00})

		if _, msg, err := ws.ReadMessage(); err == nil {
			received <- msg
		}
		ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		ws.ReadMessage()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func bridgeURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocketConnection(t *testing.T) {
	received := make(chan []byte, 1)
	srv := newBridge(t, received)

	conn, err := OpenWebSocketConnection(context.Background(), bridgeURL(srv), "dl24", "secret", false)
	if err != nil {
		t.Fatalf("OpenWebSocketConnection() error = %v", err)
	}
	defer conn.Close()

	buf := make([]byte, 5)
	if _, err := io.ReadFull(conn, buf); err != nil {
		t.Fatalf("ReadFull() error = %v", err)
	}
	if want := []byte{0xFF, 0x55, 0x01, 0x02, 0x00}; !bytes.Equal(buf, want) {
		t.Errorf("read % X, want % X", buf, want)
	}

	cmdFrame := dl24.EncodeCommand(dl24.CommandOK)
	if n, err := conn.Write(cmdFrame); err != nil || n != len(cmdFrame) {
		t.Fatalf("Write() = %d, %v", n, err)
	}
	select {
	case got := <-received:
		if !bytes.Equal(got, cmdFrame) {
			t.Errorf("bridge received % X, want % X", got, cmdFrame)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("bridge did not receive the command frame")
	}

	_, err = conn.Read(buf)
	if !errors.Is(err, io.EOF) {
		t.Errorf("Read() after normal close error = %v, want io.EOF", err)
	}
	if !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("Read() after normal close error = %v, want ErrConnectionClosed", err)
	}
}

func TestWebSocketConnectionRejected(t *testing.T) {
	srv := newBridge(t, make(chan []byte, 1))

	_, err := OpenWebSocketConnection(context.Background(), bridgeURL(srv), "dl24", "wrong", false)
	if err == nil {
		t.Fatal("expected an error for bad credentials")
	}
	if !strings.Contains(err.Error(), "HTTP 401") {
		t.Errorf("error = %v, want HTTP 401", err)
	}
}

func TestWebSocketConnectionScheme(t *testing.T) {
	_, err := OpenWebSocketConnection(context.Background(), "http://localhost:1/ws", "", "", false)
	if err == nil || !strings.Contains(err.Error(), "unsupported URL scheme") {
		t.Errorf("error = %v, want unsupported URL scheme", err)
	}
}

func TestOpenConnectionNoTransport(t *testing.T) {
	c := config.Default()
	c.Serial.Port = ""
	if _, _, err := OpenConnection(context.Background(), c); err == nil {
		t.Error("expected an error without a port or URL")
	}
}

func TestBasicAuth(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", basicAuth("dl24", "p:ss"))
	user, pass, ok := req.BasicAuth()
	if !ok || user != "dl24" || pass != "p:ss" {
		t.Errorf("BasicAuth() = %q, %q, %v", user, pass, ok)
	}
}
