// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package control

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Thermoquad/gyrostat/pkg/linewire"
	"github.com/Thermoquad/gyrostat/pkg/session"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Sender delivers the control state to the device
type Sender interface {
	Send(state linewire.ControlState) error
}

// DispatcherConfig configures a Dispatcher
type DispatcherConfig struct {
	Store    *Store // required
	Sender   Sender // required
	Debounce time.Duration
	Clock    clockwork.Clock

	// OnChange receives the new state after every change
	OnChange func(linewire.ControlState)
	// OnSendError receives failed sends other than ErrNotConnected
	OnSendError func(error)

	Logger *zerolog.Logger
}

// Dispatcher is the single consumer of control events. It applies each
// event to the store and decides whether the change is sent now, after
// the debounce period or not at all. Debounced sends run on the Run
// goroutine.
type Dispatcher struct {
	cfg       DispatcherConfig
	log       zerolog.Logger
	events    chan Event
	due       chan struct{} // a debounced send is ready
	coalescer *Coalescer

	sendMu sync.Mutex // orders snapshot and write across senders
}

// NewDispatcher creates a dispatcher; call Run to start consuming events
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}

	d := &Dispatcher{
		cfg:    cfg,
		log:    log.With().Str("component", "dispatcher").Logger(),
		events: make(chan Event, 64),
		due:    make(chan struct{}, 1),
	}
	if cfg.Logger != nil {
		d.log = *cfg.Logger
	}
	d.coalescer = NewCoalescer(cfg.Clock, cfg.Debounce, d.markDue)
	return d
}

// Post queues an event for Run. It blocks while the queue is full.
func (d *Dispatcher) Post(ctx context.Context, ev Event) error {
	select {
	case d.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run consumes events until ctx is done. A pending debounced send is
// flushed on the way out.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer d.coalescer.Stop()
	for {
		select {
		case <-ctx.Done():
			d.coalescer.Flush()
			if d.takeDue() {
				d.send()
			}
			return ctx.Err()
		case <-d.due:
			d.send()
		case ev := <-d.events:
			if err := d.Apply(ev); err != nil {
				d.log.Debug().Err(err).Msgf("event %T rejected", ev)
			}
		}
	}
}

// Apply applies one event synchronously. Run calls it for posted events;
// a debounced send it schedules is made by Run.
func (d *Dispatcher) Apply(ev Event) error {
	var policy SendPolicy
	state, changed, err := d.cfg.Store.Update(func(s *linewire.ControlState) (bool, error) {
		ok, p, err := ev.apply(s)
		policy = p
		return ok, err
	})
	if err != nil {
		return err
	}

	if changed && d.cfg.OnChange != nil {
		d.cfg.OnChange(state)
	}

	switch policy {
	case SendNow:
		d.coalescer.Cancel()
		d.takeDue()
		d.send()
	case SendDebounced:
		d.coalescer.Trigger()
	}
	return nil
}

// PendingSend reports whether a debounced send is scheduled
func (d *Dispatcher) PendingSend() bool {
	return d.coalescer.Pending() || len(d.due) > 0
}

// markDue hands a debounced send to Run
func (d *Dispatcher) markDue() {
	select {
	case d.due <- struct{}{}:
	default:
	}
}

// takeDue clears a debounced send Run has not made yet
func (d *Dispatcher) takeDue() bool {
	select {
	case <-d.due:
		return true
	default:
		return false
	}
}

// send writes the latest state. The snapshot is taken under sendMu so the
// last line written always carries the newest state.
func (d *Dispatcher) send() {
	d.sendMu.Lock()
	defer d.sendMu.Unlock()

	err := d.cfg.Sender.Send(d.cfg.Store.Snapshot())
	switch {
	case err == nil:
	case errors.Is(err, session.ErrNotConnected):
		d.log.Debug().Msg("not connected, change kept locally")
	default:
		d.log.Warn().Err(err).Msg("send failed")
		if d.cfg.OnSendError != nil {
			d.cfg.OnSendError(err)
		}
	}
}
