// Package wire defines the push-channel event contract: the envelope frame
// format, the typed payloads for every inbound event, the outbound commands,
// and identifier normalization at the boundary.
package wire

import (
	"encoding/json"
	"fmt"

	"github.com/ebarros/parley/internal/model"
)

// Inbound event names pushed by the server.
const (
	EventConnect     = "connect"
	EventDisconnect  = "disconnect"
	EventNewMessage  = "newMessage"
	EventTyping      = "typing"
	EventStopTyping  = "stopTyping"
	EventMessageRead = "messageRead"
	EventUserStatus  = "userStatus"
	EventError       = "error"
)

// Envelope is the frame format for every push-channel event.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewMessage is the payload of a newMessage event.
type NewMessage struct {
	MessageID string   `json:"messageId"`
	ChatID    string   `json:"chatId"`
	SenderID  UserID   `json:"senderId"`
	Text      string   `json:"text"`
	CreatedAt int64    `json:"createdAt"`
	ReadBy    []UserID `json:"readBy,omitempty"`
}

// Message converts the payload to the engine's model type.
func (p *NewMessage) Message() *model.Message {
	return &model.Message{
		ID:        p.MessageID,
		ChatID:    p.ChatID,
		SenderID:  string(p.SenderID),
		Text:      p.Text,
		CreatedAt: p.CreatedAt,
		ReadBy:    UserIDStrings(p.ReadBy),
	}
}

// TypingEvent is the payload of typing and stopTyping events.
type TypingEvent struct {
	ChatID string `json:"chatId"`
	UserID UserID `json:"userId"`
}

// MessageRead is the payload of a messageRead event.
type MessageRead struct {
	MessageID string `json:"messageId"`
	UserID    UserID `json:"userId"`
}

// UserStatus is the payload of a userStatus presence event.
type UserStatus struct {
	UserID UserID `json:"userId"`
	Status string `json:"status"`
}

// Disconnect is the payload of a server-initiated disconnect event.
type Disconnect struct {
	Reason string `json:"reason"`
}

// ServerError is the payload of an error event.
type ServerError struct {
	Message string `json:"message"`
}

// DecodeError reports a payload that fails contract validation. Such events
// are dropped by the transport; they must never reach the reconcilers.
type DecodeError struct {
	Event  string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s payload: %s", e.Event, e.Reason)
}

// ParseEnvelope parses a raw frame into an envelope.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parse envelope: %w", err)
	}
	if env.Event == "" {
		return nil, &DecodeError{Event: "envelope", Reason: "missing event name"}
	}
	return &env, nil
}

// Decode parses and validates the payload of a known inbound event,
// returning the typed payload. Unknown events return a DecodeError so the
// transport can drop them without guessing at their shape.
func Decode(env *Envelope) (any, error) {
	switch env.Event {
	case EventConnect:
		return nil, nil
	case EventDisconnect:
		var p Disconnect
		if len(env.Payload) > 0 {
			if err := json.Unmarshal(env.Payload, &p); err != nil {
				return nil, &DecodeError{Event: env.Event, Reason: err.Error()}
			}
		}
		return &p, nil
	case EventNewMessage:
		var p NewMessage
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, &DecodeError{Event: env.Event, Reason: err.Error()}
		}
		if p.MessageID == "" {
			return nil, &DecodeError{Event: env.Event, Reason: "missing messageId"}
		}
		if p.ChatID == "" {
			return nil, &DecodeError{Event: env.Event, Reason: "missing chatId"}
		}
		return &p, nil
	case EventTyping, EventStopTyping:
		var p TypingEvent
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, &DecodeError{Event: env.Event, Reason: err.Error()}
		}
		if p.ChatID == "" || p.UserID == "" {
			return nil, &DecodeError{Event: env.Event, Reason: "missing chatId or userId"}
		}
		return &p, nil
	case EventMessageRead:
		var p MessageRead
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, &DecodeError{Event: env.Event, Reason: err.Error()}
		}
		if p.MessageID == "" || p.UserID == "" {
			return nil, &DecodeError{Event: env.Event, Reason: "missing messageId or userId"}
		}
		return &p, nil
	case EventUserStatus:
		var p UserStatus
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, &DecodeError{Event: env.Event, Reason: err.Error()}
		}
		if p.UserID == "" {
			return nil, &DecodeError{Event: env.Event, Reason: "missing userId"}
		}
		return &p, nil
	case EventError:
		var p ServerError
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, &DecodeError{Event: env.Event, Reason: err.Error()}
		}
		return &p, nil
	default:
		return nil, &DecodeError{Event: env.Event, Reason: "unknown event"}
	}
}
