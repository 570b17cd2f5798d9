// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package remote

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Dial timeouts
const (
	HandshakeTimeout = 10 * time.Second
	DialTimeout      = 15 * time.Second
)

// DialWebSocket opens a WebSocket with optional HTTP Basic auth
func DialWebSocket(ctx context.Context, rawURL, username, password string, skipSSLVerify bool) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: HandshakeTimeout,
	}
	if skipSSLVerify {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}

	headers := http.Header{}
	if username != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(ctx, DialTimeout)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, rawURL, headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}
	return conn, nil
}

// WebSocketFeed reads setpoint messages from a WebSocket endpoint and
// reconnects with backoff when the connection drops
type WebSocketFeed struct {
	URL           string
	Username      string
	Password      string
	SkipSSLVerify bool
	Clock         clockwork.Clock
	Logger        *zerolog.Logger
}

func (f *WebSocketFeed) String() string {
	return "WebSocket: " + f.URL
}

func (f *WebSocketFeed) logger() zerolog.Logger {
	if f.Logger != nil {
		return *f.Logger
	}
	return log.With().Str("component", "remote").Str("url", f.URL).Logger()
}

// Run delivers setpoints to onSetpoint until ctx is done
func (f *WebSocketFeed) Run(ctx context.Context, onSetpoint func(float64)) error {
	logger := f.logger()
	return reconnectLoop(ctx, f.Clock, logger, func(ctx context.Context, connected func()) error {
		conn, err := DialWebSocket(ctx, f.URL, f.Username, f.Password, f.SkipSSLVerify)
		if err != nil {
			return err
		}
		defer func() { _ = conn.Close() }()

		// Unblock ReadMessage on cancellation
		stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
		defer stop()

		connected()
		logger.Info().Msg("remote feed connected")

		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				return err
			}
			if msgType != websocket.TextMessage {
				continue
			}

			v, err := ParseMessage(data)
			if err != nil {
				logger.Debug().Err(err).Msg("skipping remote message")
				continue
			}
			onSetpoint(v)
		}
	})
}
