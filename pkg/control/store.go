// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

// Package control holds the authoritative control state and applies UI and
// remote-feed events to it.
package control

import (
	"sync"

	"github.com/Thermoquad/gyrostat/pkg/linewire"
)

// Store owns the control state. All access goes through copies.
type Store struct {
	mu      sync.RWMutex
	state   linewire.ControlState
	version uint64
}

// NewStore creates a store holding initial
func NewStore(initial linewire.ControlState) *Store {
	return &Store{state: initial.Clone()}
}

// Snapshot returns a copy of the current state
func (s *Store) Snapshot() linewire.ControlState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Version increments on every change
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Update applies fn to a copy of the state and commits it when fn returns
// true without error
func (s *Store) Update(fn func(*linewire.ControlState) (bool, error)) (linewire.ControlState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.Clone()
	changed, err := fn(&next)
	if err != nil || !changed {
		return s.state.Clone(), false, err
	}

	s.state = next
	s.version++
	return next.Clone(), true, nil
}
