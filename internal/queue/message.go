package queue

import (
	"context"
	"encoding/json"
)

// MessageVersion is the current payload layout.
const MessageVersion = 1

// Client hands analysis jobs to workers.
type Client interface {
	Send(ctx context.Context, msg Message) error
}

// Message is one analysis job handed to workers. DocumentIDs[0] is the
// primary document.
type Message struct {
	Kind         string   `json:"kind"`
	DocumentIDs  []string `json:"documentIds"`
	Instructions string   `json:"instructions,omitempty"`
	RequestID    string   `json:"requestId"`
	EnqueuedAt   string   `json:"enqueuedAt"`
	Version      int      `json:"version"`
}

// PrimaryDocumentID returns the document that receives the status and report,
// or "" for a message without targets.
func (m Message) PrimaryDocumentID() string {
	if len(m.DocumentIDs) == 0 {
		return ""
	}
	return m.DocumentIDs[0]
}

// EncodeMessage returns the JSON body sent to the queue.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a queue body. Unknown fields are ignored so older
// workers keep draining messages from newer producers.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
