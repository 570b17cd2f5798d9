// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/Thermoquad/gyrostat/pkg/control"
	"github.com/Thermoquad/gyrostat/pkg/linewire"
	"github.com/Thermoquad/gyrostat/pkg/remote"
	"github.com/Thermoquad/gyrostat/pkg/session"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// RemotePasswordEnv holds the remote feed password
const RemotePasswordEnv = "GYROSTAT_REMOTE_PASSWORD"

var (
	remoteURL   string
	remoteTopic string
	saveOnQuit  bool
)

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Interactive control panel for the balance controller",
	Long: `Monitor and tune the balance controller via an interactive terminal UI.

Features:
  - Port picker with USB details and baud rate selection
  - Live gauges for wheel speeds and tilt angle
  - PID gain, time constant and setpoint inputs with debounced auto-send
  - LED, motor and color controls
  - Remote setpoint mode driven by a WebSocket or MQTT feed
  - Line statistics and event logging

Keys (port list focused):
  enter=connect d=disconnect b=baud r=refresh ports s=send now
  m=remote mode 1-8=toggle LED [ ]=left/right motor o=outputs off q=quit
Tab switches between the port list and the inputs; esc returns to the list.

The remote feed is configured with --remote-url (ws://, wss://, mqtt://,
mqtts://) and --remote-topic (MQTT only). Its password is read from
GYROSTAT_REMOTE_PASSWORD.

With --save, the gains, setpoint, color, motor switches and setpoint mode
are written back to the config file on quit.

Logs are written to the log file only, since the panel owns the terminal.`,
	Annotations: map[string]string{annotationTUI: "true"},
	RunE:        runControl,
}

func init() {
	rootCmd.AddCommand(controlCmd)
	controlCmd.Flags().StringVar(&remoteURL, "remote-url", "", "Remote setpoint feed URL")
	controlCmd.Flags().StringVar(&remoteTopic, "remote-topic", "", "Remote setpoint MQTT topic")
	controlCmd.Flags().BoolVar(&saveOnQuit, "save", false, "Save the tuned control state to the config file on quit")
}

// newRemoteFeed builds the configured remote feed, nil if none
func newRemoteFeed(cmd *cobra.Command) (remote.Feed, error) {
	if cmd.Flags().Changed("remote-url") {
		cfg.Remote.URL = remoteURL
	}
	if cmd.Flags().Changed("remote-topic") {
		cfg.Remote.Topic = remoteTopic
	}
	if cfg.Remote.URL == "" {
		return nil, nil
	}

	logger := log.With().Str("component", "remote").Logger()
	return remote.New(cfg.Remote.URL, remote.Options{
		Topic:    cfg.Remote.Topic,
		Username: cfg.Remote.Username,
		Password: os.Getenv(RemotePasswordEnv),
		Logger:   &logger,
	})
}

func runControl(cmd *cobra.Command, args []string) error {
	t, err := newTransport()
	if err != nil {
		return err
	}
	feed, err := newRemoteFeed(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	variant := cfg.Variant()
	store := control.NewStore(cfg.ControlState(variant))
	readings := &readingBuffer{}

	// The program is created after the callbacks that reference it
	var p *tea.Program
	send := func(msg tea.Msg) {
		if p != nil {
			p.Send(msg)
		}
	}

	var dispatcher *control.Dispatcher
	post := func(ev control.Event) {
		if err := dispatcher.Post(ctx, ev); err != nil {
			log.Debug().Err(err).Msgf("event %T dropped", ev)
		}
	}

	sc := t.controllerConfig()
	sc.OnReading = readings.put
	sc.OnStatus = func(s session.Status) { send(statusMsg(s)) }
	sc.OnReset = func() {
		readings.reset()
		post(control.ResetOutputs{})
		send(resetMsg{})
	}
	ctrl := session.New(sc)

	// The panel polls the store, so the dispatcher never waits on the UI
	dispatcherLog := log.With().Str("component", "dispatcher").Logger()
	dispatcher = control.NewDispatcher(control.DispatcherConfig{
		Store:       store,
		Sender:      ctrl,
		Debounce:    cfg.Debounce(),
		OnSendError: func(err error) { go send(sendErrorMsg{err: err}) },
		Logger:      &dispatcherLog,
	})

	m := initialControlModel(controlDeps{
		ctx:      ctx,
		ctrl:     ctrl,
		ports:    t.ports,
		post:     post,
		pending:  dispatcher.PendingSend,
		readings: readings,
		info:     t.info,
		autoPort: t.port,
		baud:     cfg.Serial.Baud,
		ranges:   cfg.Ranges(),
		store:    store,
		feed:     feed,
	})

	p = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	var wg sync.WaitGroup
	dispatcherDone := make(chan struct{})
	go func() {
		defer close(dispatcherDone)
		_ = dispatcher.Run(ctx)
	}()

	if feed != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := feed.Run(ctx, func(v float64) {
				post(control.RemoteSetpoint{Value: v})
				send(remoteSetpointMsg{value: v})
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				send(remoteFeedMsg{err: err})
			}
		}()
	}

	_, runErr := p.Run()

	// Flush a pending debounced send while the session is still open
	cancel()
	<-dispatcherDone
	if saveOnQuit {
		saveControlState(store.Snapshot())
	}
	ctrl.Disconnect()
	wg.Wait()

	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return fmt.Errorf("TUI error: %w", runErr)
	}
	return nil
}

// saveControlState writes the panel's tuned state back to the config file
func saveControlState(state linewire.ControlState) {
	cfg.SetControlState(state)
	if err := cfg.Save(); err != nil {
		log.Error().Err(err).Msg("failed to save config")
		return
	}
	log.Info().Msgf("saved control state to %s", cfg.Path())
}
