package messages

import "time"

// Message is a persisted chat message, hydrated with the sender's profile as
// it was at send time.
type Message struct {
	ID             int64     `json:"id"`
	Content        string    `json:"content"`
	Image          string    `json:"image,omitempty"`
	SenderID       int64     `json:"sender_id"`
	SenderNickname string    `json:"sender_nickname"`
	SenderAvatar   string    `json:"sender_avatar"`
	ChannelID      int64     `json:"channel_id"`
	CreatedAt      time.Time `json:"created_at"`
}
