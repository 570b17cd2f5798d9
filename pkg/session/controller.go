// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/Thermoquad/gyrostat/pkg/linewire"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultReadBufferSize is the chunk size of each channel read
const DefaultReadBufferSize = 256

// DefaultMaxLineLength bounds the partial-line buffer
const DefaultMaxLineLength = 1024

// Config configures a Controller
type Config struct {
	Opener Opener     // required
	Ports  Enumerator // required

	Variant        linewire.Variant // zero value uses linewire.VariantBalance
	MaxLineLength  int              // zero uses DefaultMaxLineLength, negative disables the limit
	ReadBufferSize int              // zero uses DefaultReadBufferSize

	// Callbacks run on the read loop or the calling goroutine. They may call
	// Disconnect, which then completes once the callback returns; they must
	// not call Connect.
	OnReading func(linewire.Reading)
	OnLine    func(line string, decoded bool)
	OnStatus  func(Status)
	OnReset   func()

	Logger *zerolog.Logger // nil uses the global logger
}

// session is one opened channel and its read loop
type session struct {
	port   string
	ch     Channel
	framer *linewire.Framer
	cancel context.CancelFunc
	ready  chan struct{} // closed once the open status is reported
	done   chan struct{} // closed when the read loop exits
	closed chan struct{} // closed when teardown completes

	inCallback atomic.Bool // set while the read loop runs a callback
	handoff    *Status     // teardown left to the read loop, guarded by Controller.mu
}

// Controller owns the connection lifecycle:
// Closed -> Opening -> Open -> Closing -> Closed.
//
// Exactly one read loop runs per open session. Send is valid only while
// open; a failed write is reported and leaves the session open, a failed
// read tears it down.
type Controller struct {
	cfg     Config
	log     zerolog.Logger
	decoder *linewire.Decoder

	mu         sync.Mutex
	state      State
	sess       *session
	closing    *session
	gen        uint64 // bumped by every Connect and by Disconnect during Opening
	cancelOpen context.CancelFunc
	port       string
	baud       int
	stats      *linewire.Statistics

	writeMu sync.Mutex // keeps command lines whole on the wire
}

// New creates a closed controller
func New(cfg Config) *Controller {
	if cfg.Variant.Name == "" {
		cfg.Variant = linewire.VariantBalance
	}
	if cfg.MaxLineLength == 0 {
		cfg.MaxLineLength = DefaultMaxLineLength
	}
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = DefaultReadBufferSize
	}

	logger := log.With().Str("component", "session").Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return &Controller{
		cfg:     cfg,
		log:     logger,
		decoder: linewire.NewDecoder(cfg.Variant),
		stats:   linewire.NewStatistics(),
	}
}

// State returns the current lifecycle state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Port returns the port of the current or last session
func (c *Controller) Port() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.port
}

// Baud returns the baud rate of the current or last session
func (c *Controller) Baud() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.baud
}

// Variant returns the protocol variant the controller decodes
func (c *Controller) Variant() linewire.Variant {
	return c.cfg.Variant
}

// Stats returns a snapshot of the current or last session's statistics
func (c *Controller) Stats() linewire.Statistics {
	c.mu.Lock()
	defer c.mu.Unlock()
	snapshot := *c.stats
	snapshot.CalculateRates()
	return snapshot
}

// Connect opens port at baud and starts the read loop.
//
// A connect while open replaces the current session. ctx bounds the open
// only; the session lives until Disconnect or a read failure.
func (c *Controller) Connect(ctx context.Context, port string, baud int) error {
	if err := c.checkPort(port); err != nil {
		c.report(Status{State: c.State(), Port: port, Message: err.Error(), Err: err})
		return err
	}
	if !ValidBaud(baud) {
		err := fmt.Errorf("%w: %d", ErrUnsupportedBaud, baud)
		c.report(Status{State: c.State(), Port: port, Message: err.Error(), Err: err})
		return err
	}

	if c.State() == StateOpen {
		c.log.Info().Msgf("replacing session on %s", c.Port())
		c.Disconnect()
	}

	c.mu.Lock()
	if c.state != StateClosed {
		c.mu.Unlock()
		return ErrBusy
	}
	c.state = StateOpening
	c.port = port
	c.baud = baud
	c.gen++
	gen := c.gen
	openCtx, cancelOpen := context.WithCancel(ctx)
	c.cancelOpen = cancelOpen
	c.mu.Unlock()
	defer cancelOpen()

	c.log.Debug().Msgf("opening %s @ %d baud", port, baud)
	c.report(Status{State: StateOpening, Port: port, Message: fmt.Sprintf("Opening %s @ %d baud", port, baud)})

	ch, err := c.cfg.Opener.Open(openCtx, port, baud)

	c.mu.Lock()
	aborted := c.gen != gen
	c.cancelOpen = nil
	if err != nil {
		if !aborted {
			c.state = StateClosed
		}
		c.mu.Unlock()
		if aborted {
			return ErrAborted
		}
		openErr := &OpenError{Port: port, Err: err}
		c.log.Error().Err(err).Msgf("failed to open %s", port)
		c.report(Status{State: StateClosed, Port: port, Message: openErr.Error(), Err: openErr})
		return openErr
	}
	if aborted {
		c.mu.Unlock()
		if closeErr := ch.Close(); closeErr != nil {
			c.log.Debug().Err(closeErr).Msg("close after aborted connect")
		}
		return ErrAborted
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &session{
		port:   port,
		ch:     ch,
		framer: linewire.NewFramer(c.cfg.MaxLineLength),
		cancel: cancel,
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
		closed: make(chan struct{}),
	}
	c.sess = s
	c.state = StateOpen
	c.stats = linewire.NewStatistics()
	go c.readLoop(loopCtx, s)
	c.mu.Unlock()

	c.log.Info().Msgf("connected to %s @ %d baud", port, baud)
	if c.current(s) {
		c.report(Status{
			State:     StateOpen,
			Connected: true,
			Port:      port,
			Message:   fmt.Sprintf("Connected: %s @ %d baud", port, baud),
		})
	}
	close(s.ready)
	return nil
}

// checkPort verifies port is selected and currently enumerated
func (c *Controller) checkPort(port string) error {
	if port == "" {
		return fmt.Errorf("%w: no port selected", ErrPortUnavailable)
	}
	if c.cfg.Ports == nil {
		return fmt.Errorf("%w: no port enumerator", ErrPortUnavailable)
	}
	ports, err := c.cfg.Ports.Ports()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPortUnavailable, err)
	}
	if len(ports) == 0 {
		return fmt.Errorf("%w: no ports available", ErrPortUnavailable)
	}
	if !slices.ContainsFunc(ports, func(p PortInfo) bool { return p.Name == port }) {
		return fmt.Errorf("%w: %s is not an available port", ErrPortUnavailable, port)
	}
	return nil
}

// Disconnect tears the session down. It is a no-op when already closed and
// waits for a teardown already in progress.
//
// Teardown order: cancel the read loop, release the writer, close the
// channel, wait for the loop to exit, then reset dependent state. Called
// while the read loop is inside a callback, Disconnect does not wait: the
// loop resets dependent state as soon as the callback returns.
func (c *Controller) Disconnect() {
	c.mu.Lock()
	switch c.state {
	case StateClosed:
		c.mu.Unlock()
		return
	case StateClosing:
		s := c.closing
		c.mu.Unlock()
		if s != nil && !s.inCallback.Load() {
			<-s.closed
		}
		return
	case StateOpening:
		// The pending Connect sees the new generation and closes its channel
		c.gen++
		c.state = StateClosed
		if c.cancelOpen != nil {
			c.cancelOpen()
		}
		port := c.port
		c.mu.Unlock()
		c.log.Info().Msg("connect cancelled")
		c.reset(Status{State: StateClosed, Port: port, Message: "Connect cancelled"})
		return
	}

	s := c.detach()
	st := Status{State: StateClosed, Port: s.port, Message: "Disconnected"}
	if s.inCallback.Load() {
		// The loop cannot exit before the callback returns
		s.handoff = &st
		c.mu.Unlock()
		c.closeChannel(s)
		return
	}
	c.mu.Unlock()

	c.closeChannel(s)
	<-s.done

	c.log.Info().Msgf("disconnected from %s", s.port)
	c.finish(s, st)
}

// detach moves an open session to Closing: cancels its loop and drops the
// writer. Must be called with mu held.
func (c *Controller) detach() *session {
	s := c.sess
	c.state = StateClosing
	s.cancel()
	c.sess = nil
	c.closing = s
	return s
}

// closeChannel closes the session's channel, suppressing errors
func (c *Controller) closeChannel(s *session) {
	if err := s.ch.Close(); err != nil {
		c.log.Debug().Err(err).Msgf("close %s", s.port)
	}
}

// finish completes the teardown of s
func (c *Controller) finish(s *session, st Status) {
	c.mu.Lock()
	c.state = StateClosed
	c.closing = nil
	c.mu.Unlock()
	c.reset(st)
	close(s.closed)
}

// reset clears dependent state and reports the final status
func (c *Controller) reset(st Status) {
	if c.cfg.OnReset != nil {
		c.cfg.OnReset()
	}
	c.report(st)
}

// current reports whether s is still the active session
func (c *Controller) current(s *session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess == s && c.state == StateOpen
}

// Send encodes the control state and writes it as one command line
func (c *Controller) Send(state linewire.ControlState) error {
	c.mu.Lock()
	s := c.sess
	open := c.state == StateOpen && s != nil
	c.mu.Unlock()
	if !open {
		return ErrNotConnected
	}

	line, err := linewire.EncodeCommand(state)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	_, err = io.WriteString(s.ch, line)
	c.writeMu.Unlock()

	c.mu.Lock()
	c.stats.RecordCommand(line, err)
	c.mu.Unlock()

	if err != nil {
		writeErr := &WriteError{Port: s.port, Err: err}
		c.log.Warn().Err(err).Msg("command write failed")
		c.report(Status{
			State:     c.State(),
			Connected: c.current(s),
			Port:      s.port,
			Message:   writeErr.Error(),
			Err:       writeErr,
		})
		return writeErr
	}

	c.log.Debug().Msgf("sent %q", line)
	return nil
}

// readLoop reads chunks until the session is cancelled, the stream ends or
// a read fails
func (c *Controller) readLoop(ctx context.Context, s *session) {
	defer func() {
		c.mu.Lock()
		st := s.handoff
		c.mu.Unlock()
		if st != nil {
			c.log.Info().Msgf("disconnected from %s", s.port)
			c.finish(s, *st)
		}
		close(s.done)
	}()

	select {
	case <-s.ready:
	case <-ctx.Done():
		return
	}

	buf := make([]byte, c.cfg.ReadBufferSize)
	for {
		if ctx.Err() != nil {
			return
		}

		n, err := s.ch.Read(buf)
		if n > 0 {
			c.consume(ctx, s, buf[:n])
		}
		if err == nil {
			continue
		}

		// Errors caused by our own close are cancellation, not failures
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, io.EOF) {
			c.log.Info().Msgf("%s closed the stream", s.port)
			c.end(s, Status{State: StateClosed, Port: s.port, Message: "Device closed the stream"})
			return
		}

		readErr := &ReadError{Port: s.port, Err: err}
		c.log.Error().Err(err).Msgf("read from %s failed", s.port)
		c.end(s, Status{State: StateClosed, Port: s.port, Message: readErr.Error(), Err: readErr})
		return
	}
}

// consume frames and decodes one chunk
func (c *Controller) consume(ctx context.Context, s *session, chunk []byte) {
	c.mu.Lock()
	c.stats.BytesReceived += uint64(len(chunk))
	c.mu.Unlock()

	for line := range s.framer.Feed(string(chunk)) {
		if ctx.Err() != nil {
			return
		}

		reading, ok := c.decoder.Decode(line)

		c.mu.Lock()
		c.stats.RecordLine(line, ok)
		c.stats.DroppedLines = s.framer.Dropped()
		c.mu.Unlock()

		if c.cfg.OnLine != nil && !c.deliver(ctx, s, func() { c.cfg.OnLine(line, ok) }) {
			return
		}
		if ok && c.cfg.OnReading != nil && !c.deliver(ctx, s, func() { c.cfg.OnReading(reading) }) {
			return
		}
	}

	c.mu.Lock()
	c.stats.DroppedLines = s.framer.Dropped()
	c.mu.Unlock()
}

// deliver runs fn on the read loop unless the session was cancelled
func (c *Controller) deliver(ctx context.Context, s *session, fn func()) bool {
	s.inCallback.Store(true)
	defer s.inCallback.Store(false)
	if ctx.Err() != nil {
		return false
	}
	fn()
	return true
}

// end tears the session down from inside its own read loop
func (c *Controller) end(s *session, st Status) {
	c.mu.Lock()
	if c.sess != s || c.state != StateOpen {
		// Disconnect got there first
		c.mu.Unlock()
		return
	}
	c.detach()
	c.mu.Unlock()

	c.closeChannel(s)
	c.finish(s, st)
}

func (c *Controller) report(st Status) {
	if c.cfg.OnStatus != nil {
		c.cfg.OnStatus(st)
	}
}
