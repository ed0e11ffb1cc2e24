package users

import "time"

// User is a registered account as exposed to the API (no credential fields).
type User struct {
	ID            int64     `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email,omitempty"`
	EmailVerified bool      `json:"email_verified"`
	Nickname      string    `json:"nickname"`
	Avatar        string    `json:"avatar"`
	Bio           string    `json:"bio"`
	CreatedAt     time.Time `json:"created_at"`
	LastLogin     time.Time `json:"last_login"`
}

// Profile is the subset of user identity stamped onto broadcast messages.
type Profile struct {
	UserID   int64  `json:"user_id"`
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar"`
}

// RegisterRequest is the input for creating an account.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
	Code     string `json:"code"`
	Nickname string `json:"nickname,omitempty"`
}

// UpdateProfileRequest is the input for self-service profile updates.
type UpdateProfileRequest struct {
	Nickname *string `json:"nickname,omitempty"`
	Avatar   *string `json:"avatar,omitempty"`
	Bio      *string `json:"bio,omitempty"`
}
