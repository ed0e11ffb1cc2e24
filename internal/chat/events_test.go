package chat

import (
	"encoding/json"
	"testing"
)

func TestEventRoundTrip(t *testing.T) {
	frame, err := EncodeEvent(EventSendMessage, SendPayload{ChannelID: 9, Content: "hello"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	event, err := DecodeEvent(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if event.Type != EventSendMessage {
		t.Fatalf("type = %q, want %q", event.Type, EventSendMessage)
	}

	var payload SendPayload
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.ChannelID != 9 || payload.Content != "hello" {
		t.Fatalf("payload = %+v", payload)
	}
}

func TestDecodeEventRejectsBadFrames(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", "{{"},
		{"missing type", `{"data":{"channel_id":1}}`},
		{"empty type", `{"type":"","data":{}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := DecodeEvent([]byte(tc.raw)); err == nil {
				t.Fatalf("DecodeEvent(%q) accepted a bad frame", tc.raw)
			}
		})
	}
}

func TestDecodeEventUnknownTypePassesThrough(t *testing.T) {
	// Unknown types are a dispatch concern, not a codec error.
	event, err := DecodeEvent([]byte(`{"type":"future_thing","data":{}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if event.Type != "future_thing" {
		t.Fatalf("type = %q", event.Type)
	}
}
