// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package remote

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// TypeSetpoint is the message type carrying a setpoint
const TypeSetpoint = "setpoint"

var (
	// ErrIgnored is returned for well-formed messages of another type
	ErrIgnored = errors.New("not a setpoint message")

	// ErrInvalidMessage is returned for payloads that cannot be decoded
	ErrInvalidMessage = errors.New("invalid remote message")
)

// Message is the remote feed's wire format: {"type":"setpoint","value":12.5}
type Message struct {
	Type  string   `json:"type"`
	Value *float64 `json:"value"`
}

// ParseMessage extracts the setpoint from a payload. A bare number is
// accepted as a setpoint too, for brokers that publish plain values.
func ParseMessage(data []byte) (float64, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return 0, fmt.Errorf("%w: empty payload", ErrInvalidMessage)
	}

	if data[0] != '{' {
		v, err := strconv.ParseFloat(string(data), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("%w: %q", ErrInvalidMessage, data)
		}
		return v, nil
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if msg.Type != TypeSetpoint {
		return 0, fmt.Errorf("%w: type %q", ErrIgnored, msg.Type)
	}
	if msg.Value == nil {
		return 0, fmt.Errorf("%w: setpoint without value", ErrInvalidMessage)
	}
	return *msg.Value, nil
}

// EncodeSetpoint builds a setpoint message
func EncodeSetpoint(v float64) ([]byte, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("%w: setpoint %v", ErrInvalidMessage, v)
	}
	return json.Marshal(Message{Type: TypeSetpoint, Value: &v})
}
