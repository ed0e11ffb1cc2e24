package channels

import "time"

// Channel is a chat room. MemberCount is filled on reads, not stored.
type Channel struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsPrivate   bool      `json:"is_private"`
	OwnerID     int64     `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
	MemberCount int64     `json:"member_count"`
}

// Detail is a channel plus the requesting user's membership state.
type Detail struct {
	Channel
	IsJoined bool `json:"is_joined"`
}

// CreateRequest is the input for creating a channel.
type CreateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IsPrivate   bool   `json:"is_private,omitempty"`
}
