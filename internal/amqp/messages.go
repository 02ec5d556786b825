package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"blocks/internal/core"
)

// SyncRequestMessage asks a worker to run one sync pass.
type SyncRequestMessage struct {
	RequestID string        `json:"request_id"`
	Kind      core.SyncKind `json:"kind"`
	Timestamp time.Time     `json:"timestamp"`
}

// NewSyncRequestMessage creates a request with a fresh id.
func NewSyncRequestMessage(kind core.SyncKind) *SyncRequestMessage {
	return &SyncRequestMessage{
		RequestID: uuid.NewString(),
		Kind:      kind,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *SyncRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SyncRequestMessageFromJSON decodes a request and validates its kind.
func SyncRequestMessageFromJSON(data []byte) (*SyncRequestMessage, error) {
	var msg SyncRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	kind, err := core.ParseSyncKind(string(msg.Kind))
	if err != nil {
		return nil, fmt.Errorf("sync request %s: %w", msg.RequestID, err)
	}
	msg.Kind = kind
	return &msg, nil
}

// SyncResultMessage reports the outcome of a requested pass.
type SyncResultMessage struct {
	RequestID string        `json:"request_id"`
	Kind      core.SyncKind `json:"kind"`
	Result    string        `json:"result"`
	Message   string        `json:"message,omitempty"`
	Error     string        `json:"error,omitempty"`
	Created   int           `json:"created"`
	Updated   int           `json:"updated"`
	Skipped   int           `json:"skipped"`
	SheetsRef string        `json:"sheets_ref,omitempty"`
	// ExportError is set when the pass succeeded but the report export did not.
	ExportError string    `json:"export_error,omitempty"`
	Finished    time.Time `json:"finished"`
}

// ToJSON converts the message to JSON bytes
func (m *SyncResultMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SyncResultMessageFromJSON decodes a result message.
func SyncResultMessageFromJSON(data []byte) (*SyncResultMessage, error) {
	var msg SyncResultMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
