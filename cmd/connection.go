// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/Thermoquad/gyrostat/pkg/remote"
	"github.com/Thermoquad/gyrostat/pkg/session"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

// PasswordEnv holds the bridge password
const PasswordEnv = "GYROSTAT_PASSWORD"

// WebSocketConnection carries the line protocol over a WebSocket bridge,
// one text message per chunk
type WebSocketConnection struct {
	conn      *websocket.Conn
	buf       []byte
	bufOffset int
	closed    bool // Track if connection has failed/closed
	closeOnce sync.Once
}

func (w *WebSocketConnection) Read(p []byte) (int, error) {
	// Return immediately if connection is known to be closed
	if w.closed {
		return 0, io.EOF
	}

	// If we have buffered data, return it first
	if w.bufOffset < len(w.buf) {
		n := copy(p, w.buf[w.bufOffset:])
		w.bufOffset += n
		return n, nil
	}

	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.closed = true
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return 0, io.EOF
			}
			return 0, err
		}

		// The bridge relays the device's text lines; skip anything else
		if messageType != websocket.TextMessage || len(data) == 0 {
			continue
		}

		w.buf = data
		w.bufOffset = 0
		n := copy(p, w.buf)
		w.bufOffset = n
		return n, nil
	}
}

func (w *WebSocketConnection) Write(p []byte) (int, error) {
	err := w.conn.WriteMessage(websocket.TextMessage, p)
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *WebSocketConnection) Close() error {
	var err error
	w.closeOnce.Do(func() {
		_ = w.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = w.conn.Close()
	})
	return err
}

// WebSocketOpener opens bridge connections. The bridge has a single
// pseudo-port named after its URL; the baud rate is the device's concern.
type WebSocketOpener struct {
	URL           string
	Username      string
	Password      string
	SkipSSLVerify bool
}

func (o WebSocketOpener) Open(ctx context.Context, _ string, _ int) (session.Channel, error) {
	conn, err := remote.DialWebSocket(ctx, o.URL, o.Username, o.Password, o.SkipSSLVerify)
	if err != nil {
		return nil, err
	}
	return &WebSocketConnection{conn: conn}, nil
}

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	// First check environment variable
	if pw := os.Getenv(PasswordEnv); pw != "" {
		return pw, nil
	}

	// Prompt user for password (hide input)
	fmt.Fprint(os.Stderr, "Password: ")

	// Read password without echo
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr) // newline after password
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr) // newline after password
	return string(passwordBytes), nil
}

// transport is the opener and port list for the selected connection mode
type transport struct {
	opener session.Opener
	ports  session.Enumerator
	port   string // preselected port, empty if the user has to pick one
	info   string
}

// newTransport selects the WebSocket bridge when --url is set, serial otherwise
func newTransport() (transport, error) {
	if wsURL != "" {
		password := ""
		if wsUsername != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return transport{}, err
			}
		}

		return transport{
			opener: WebSocketOpener{
				URL:           wsURL,
				Username:      wsUsername,
				Password:      password,
				SkipSSLVerify: wsNoSSLVerify,
			},
			ports: session.StaticPorts{wsURL},
			port:  wsURL,
			info:  fmt.Sprintf("WebSocket: %s", wsURL),
		}, nil
	}

	return transport{
		opener: session.SerialOpener{},
		ports:  session.SerialPorts,
		port:   cfg.Serial.Port,
		info:   fmt.Sprintf("Serial: %s @ %d baud", cfg.Serial.Port, cfg.Serial.Baud),
	}, nil
}

// controllerConfig builds the controller settings shared by all commands
func (t transport) controllerConfig() session.Config {
	logger := log.With().Str("component", "session").Logger()
	return session.Config{
		Opener:        t.opener,
		Ports:         t.ports,
		Variant:       cfg.Variant(),
		MaxLineLength: cfg.Serial.MaxLineLength,
		Logger:        &logger,
	}
}

// OpenController connects a controller to the configured port. Commands
// without a port picker require --port or --url.
func OpenController(ctx context.Context, sc session.Config) (*session.Controller, transport, error) {
	t, err := newTransport()
	if err != nil {
		return nil, t, err
	}
	if t.port == "" {
		return nil, t, fmt.Errorf("either --port or --url must be specified")
	}

	base := t.controllerConfig()
	base.OnReading = sc.OnReading
	base.OnLine = sc.OnLine
	base.OnStatus = sc.OnStatus
	base.OnReset = sc.OnReset

	c := session.New(base)
	if err := c.Connect(ctx, t.port, cfg.Serial.Baud); err != nil {
		return nil, t, err
	}
	return c, t, nil
}
