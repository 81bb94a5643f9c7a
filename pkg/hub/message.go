// Package hub fans engine frames and events out to websocket clients using
// a channel-based broadcast loop.
package hub

import (
	"encoding/json"

	"github.com/gofiber/websocket/v2"
)

// MessageType indicates the websocket message format.
type MessageType int

const (
	// TextMessage is a JSON document.
	TextMessage MessageType = iota
	// BinaryMessage is raw bytes, e.g. a PNG frame.
	BinaryMessage
)

// wire returns the websocket frame opcode for t.
func (t MessageType) wire() int {
	if t == BinaryMessage {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}

// Message is one broadcast payload.
type Message struct {
	Type MessageType
	Data []byte
}

// NewJSONMessage encodes v as a text message.
func NewJSONMessage(v any) (Message, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: TextMessage, Data: data}, nil
}

// NewBinaryMessage wraps raw bytes.
func NewBinaryMessage(data []byte) Message {
	return Message{Type: BinaryMessage, Data: data}
}
