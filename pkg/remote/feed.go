// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

// Package remote receives setpoint updates from an external publish feed,
// either a WebSocket endpoint or an MQTT topic.
package remote

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// Reconnect backoff bounds
const (
	MinBackoff = 1 * time.Second
	MaxBackoff = 30 * time.Second
)

// Feed delivers remote setpoints until ctx is done
type Feed interface {
	Run(ctx context.Context, onSetpoint func(float64)) error
	String() string
}

// Options are shared by the feed constructors
type Options struct {
	Topic    string // MQTT only
	Username string
	Password string
	Clock    clockwork.Clock
	Logger   *zerolog.Logger
}

// New picks the feed for rawURL's scheme: ws/wss for WebSocket,
// mqtt/mqtts/tcp/ssl for MQTT
func New(rawURL string, opts Options) (Feed, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid remote URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
		return &WebSocketFeed{
			URL:      rawURL,
			Username: opts.Username,
			Password: opts.Password,
			Clock:    opts.Clock,
			Logger:   opts.Logger,
		}, nil
	case "mqtt", "mqtts", "tcp", "ssl":
		topic := opts.Topic
		if topic == "" {
			return nil, fmt.Errorf("MQTT feed %s needs a topic", rawURL)
		}
		return &MQTTFeed{
			Broker:   rawURL,
			Topic:    topic,
			Username: opts.Username,
			Password: opts.Password,
			Logger:   opts.Logger,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported remote URL scheme: %q (use ws://, wss://, mqtt:// or mqtts://)", u.Scheme)
	}
}

// reconnectLoop runs connect until ctx is done, waiting with exponential
// backoff between attempts. connect calls connected once it is up, which
// resets the backoff.
func reconnectLoop(
	ctx context.Context,
	clock clockwork.Clock,
	logger zerolog.Logger,
	connect func(ctx context.Context, connected func()) error,
) error {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	backoff := MinBackoff
	for {
		err := connect(ctx, func() { backoff = MinBackoff })
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn().Err(err).Msgf("remote feed lost, retrying in %s", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clock.After(backoff):
		}

		backoff *= 2
		if backoff > MaxBackoff {
			backoff = MaxBackoff
		}
	}
}
