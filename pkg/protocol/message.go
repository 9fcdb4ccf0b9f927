// Package protocol defines the WebSocket message types spoken by the remote
// transport and the status dashboard.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Remote → Robot messages
	TypeWrite     MessageType = "write"     // Channel write
	TypeRead      MessageType = "read"      // Channel read request
	TypeSubscribe MessageType = "subscribe" // Enable or disable pushed updates

	// Robot → Remote messages
	TypeWelcome MessageType = "welcome" // Session accepted
	TypeReject  MessageType = "reject"  // Connection refused
	TypeValue   MessageType = "value"   // Channel value (read response or push)

	// Robot → Dashboard messages
	TypeStatus MessageType = "status" // Controller status snapshot

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ErrMissingType is returned by ParseMessage for a frame without a type.
var ErrMissingType = errors.New("protocol: message has no type")

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, ErrMissingType
	}
	return &msg, nil
}

// =============================================================================
// Remote → Robot Message Types
// =============================================================================

// WriteData carries a write to a command channel
type WriteData struct {
	Channel string `json:"channel"` // "direction", "led", "arm"
	Value   []byte `json:"value"`   // base64 encoded
}

// ReadData asks for the current value of a readable channel
type ReadData struct {
	Channel string `json:"channel"`
}

// SubscribeData enables or disables pushed updates on a notifiable channel
type SubscribeData struct {
	Channel string `json:"channel"`
	Enabled bool   `json:"enabled"`
}

// =============================================================================
// Robot → Remote Message Types
// =============================================================================

// WelcomeData is sent once a connection has become the active session
type WelcomeData struct {
	SessionID string `json:"session_id"`
	Device    string `json:"device"`
}

// RejectData explains why a connection was refused
type RejectData struct {
	Reason string `json:"reason"`
}

// ValueData carries the current value of a channel
type ValueData struct {
	Channel string `json:"channel"`
	Value   []byte `json:"value"`
	Notify  bool   `json:"notify,omitempty"` // true when pushed, false for a read response
}

// =============================================================================
// Robot → Dashboard Message Types
// =============================================================================

// StatusData is a snapshot of the control loop
type StatusData struct {
	Device      string `json:"device"`
	Transport   string `json:"transport"`
	State       string `json:"state"` // "advertising", "connected", "stopped"
	SessionID   string `json:"session_id,omitempty"`
	Peer        string `json:"peer,omitempty"`
	LEDIndex    uint8  `json:"led_index"`
	Subscribed  bool   `json:"subscribed"`
	LastCommand string `json:"last_command,omitempty"`
	LastError   string `json:"last_error,omitempty"`

	Sessions        uint64 `json:"sessions"`
	Commands        uint64 `json:"commands"`
	InvalidCommands uint64 `json:"invalid_commands"`
	Faults          uint64 `json:"faults"`
	DroppedEvents   uint64 `json:"dropped_events"`
}

// =============================================================================
// Bidirectional Message Types
// =============================================================================

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
