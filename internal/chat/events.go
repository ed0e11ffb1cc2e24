package chat

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/canchat/canchat/internal/channels"
	"github.com/canchat/canchat/internal/messages"
)

// EventType discriminates the tagged event variants crossing the transport
// boundary in either direction.
type EventType string

const (
	// Inbound (client to server).
	EventAuthenticate EventType = "authenticate"
	EventJoinChannel  EventType = "join_channel"
	EventLeaveChannel EventType = "leave_channel"
	EventSendMessage  EventType = "send_message"

	// Outbound (server to client).
	EventNewMessage         EventType = "new_message"
	EventSystemNotification EventType = "system_notification"
	EventChannelCreated     EventType = "channel_created"
	EventError              EventType = "error"
)

// Event is the wire envelope: a type tag plus the variant payload.
type Event struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// AuthenticatePayload carries the access token binding a connection to a user.
type AuthenticatePayload struct {
	Token string `json:"token"`
}

// JoinPayload requests a live subscription to a channel.
type JoinPayload struct {
	ChannelID int64 `json:"channel_id"`
}

// LeavePayload drops a live subscription from a channel.
type LeavePayload struct {
	ChannelID int64 `json:"channel_id"`
}

// SendPayload posts a text message to a channel.
type SendPayload struct {
	ChannelID int64  `json:"channel_id"`
	Content   string `json:"content"`
}

// SystemNotification is an ephemeral presence notice; it is never persisted.
type SystemNotification struct {
	Content   string    `json:"content"`
	ChannelID int64     `json:"channel_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ChannelCreatedPayload announces a freshly created channel to every connection.
type ChannelCreatedPayload struct {
	Channel channels.Channel `json:"channel"`
}

// ErrorPayload reports an operation failure back to the originating connection.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewMessagePayload wraps a hydrated persisted message.
type NewMessagePayload struct {
	Message messages.Message `json:"message"`
}

// EncodeEvent marshals a typed payload into a wire frame.
func EncodeEvent(eventType EventType, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	frame, err := json.Marshal(Event{Type: eventType, Data: data})
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", eventType, err)
	}
	return frame, nil
}

// DecodeEvent parses a wire frame into its envelope; the payload stays raw for
// the per-type handler to decode.
func DecodeEvent(raw []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(raw, &event); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if event.Type == "" {
		return Event{}, fmt.Errorf("decode event: missing type tag")
	}
	return event, nil
}
