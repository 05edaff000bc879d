// Package events contains the message contracts of the session WebSocket.
//
// A client sends query messages carrying a ViewRequest; the server answers
// each one with a view message or an error message, echoing the query id.
package events

import (
	"encoding/json"
	"time"
)

// ProtocolVersion is sent in the connected message.
const ProtocolVersion = "1.0"

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// Client messages
	MessageTypeQuery MessageType = "query"
	MessageTypePing  MessageType = "ping"

	// Server messages
	MessageTypeConnected MessageType = "connected"
	MessageTypeView      MessageType = "view"
	MessageTypePong      MessageType = "pong"
	MessageTypeError     MessageType = "error"
)

// BaseMessage represents the base structure for all WebSocket messages
type BaseMessage struct {
	ID        string      `json:"id,omitempty"`
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// InboundMessage is a client message. Data is decoded according to Type.
type InboundMessage struct {
	ID   string          `json:"id,omitempty"`
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// WebSocketMessage represents a complete server message
type WebSocketMessage struct {
	BaseMessage
	Data interface{} `json:"data,omitempty"`
}

// ConnectedData is the payload of the connected message.
type ConnectedData struct {
	Protocol  string `json:"protocol"`
	SessionID string `json:"session_id"`
	ClientID  string `json:"client_id"`
	Rows      int    `json:"rows"`
}

// ErrorData is the payload of an error message.
type ErrorData struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	Fatal   bool        `json:"fatal"`
}

// Error codes sent in ErrorData.
const (
	ErrCodeInvalidMessage  = "INVALID_MESSAGE"
	ErrCodeUnsupportedType = "UNSUPPORTED_TYPE"
	ErrCodeInvalidRange    = "INVALID_RANGE"
	ErrCodeValidation      = "VALIDATION_FAILED"
	ErrCodeSessionNotFound = "SESSION_NOT_FOUND"
	ErrCodeServerError     = "SERVER_ERROR"
)
