// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package remote

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// MQTTConnectTimeout bounds the initial broker connection
const MQTTConnectTimeout = 5 * time.Second

// ErrConnectTimeout is returned when the broker does not answer in time
var ErrConnectTimeout = errors.New("MQTT connect timed out")

// ClientFactory creates MQTT clients, replaceable in tests
type ClientFactory func(opts *mqtt.ClientOptions) mqtt.Client

// DefaultClientFactory creates a paho client
func DefaultClientFactory(opts *mqtt.ClientOptions) mqtt.Client {
	return mqtt.NewClient(opts)
}

// BrokerURL maps mqtt:// and mqtts:// onto the tcp:// and ssl:// schemes
// paho understands. The second result reports whether TLS is used.
func BrokerURL(rawURL string) (string, bool) {
	scheme, rest, ok := strings.Cut(rawURL, "://")
	if !ok {
		return "tcp://" + rawURL, false
	}
	switch scheme {
	case "mqtts", "ssl":
		return "ssl://" + rest, true
	default:
		return "tcp://" + rest, false
	}
}

// MQTTFeed subscribes to a topic carrying setpoint messages. paho owns
// reconnection once the first connection succeeded.
type MQTTFeed struct {
	Broker   string
	Topic    string
	Username string
	Password string
	Factory  ClientFactory
	Logger   *zerolog.Logger
}

func (f *MQTTFeed) String() string {
	return fmt.Sprintf("MQTT: %s %s", f.Broker, f.Topic)
}

func (f *MQTTFeed) logger() zerolog.Logger {
	if f.Logger != nil {
		return *f.Logger
	}
	return log.With().Str("component", "remote").Str("topic", f.Topic).Logger()
}

func (f *MQTTFeed) clientOptions(logger zerolog.Logger, onSetpoint func(float64)) *mqtt.ClientOptions {
	broker, useTLS := BrokerURL(f.Broker)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID("gyrostat-" + uuid.New().String()[:8])
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(false)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetMaxReconnectInterval(MaxBackoff)
	opts.SetOrderMatters(false)
	if f.Username != "" {
		opts.SetUsername(f.Username)
		opts.SetPassword(f.Password)
	}
	if useTLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	handler := func(_ mqtt.Client, msg mqtt.Message) {
		v, err := ParseMessage(msg.Payload())
		if err != nil {
			logger.Debug().Err(err).Msgf("skipping message on %s", msg.Topic())
			return
		}
		onSetpoint(v)
	}

	// Subscribing here re-subscribes after every automatic reconnect
	opts.OnConnect = func(client mqtt.Client) {
		logger.Info().Msgf("connected to %s", broker)
		token := client.Subscribe(f.Topic, 1, handler)
		if token.Wait() && token.Error() != nil {
			logger.Error().Err(token.Error()).Msgf("failed to subscribe to %s", f.Topic)
		}
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn().Err(err).Msg("connection lost, paho will reconnect")
	}
	return opts
}

// Run connects, subscribes and delivers setpoints until ctx is done
func (f *MQTTFeed) Run(ctx context.Context, onSetpoint func(float64)) error {
	logger := f.logger()
	factory := f.Factory
	if factory == nil {
		factory = DefaultClientFactory
	}

	client := factory(f.clientOptions(logger, onSetpoint))
	token := client.Connect()
	if !token.WaitTimeout(MQTTConnectTimeout) {
		client.Disconnect(0)
		return fmt.Errorf("%w: %s", ErrConnectTimeout, f.Broker)
	}
	if err := token.Error(); err != nil {
		client.Disconnect(0)
		return fmt.Errorf("MQTT connect to %s failed: %w", f.Broker, err)
	}

	<-ctx.Done()
	client.Disconnect(250)
	return ctx.Err()
}
