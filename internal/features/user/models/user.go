package models

import "time"

// User is identified by a wallet address and created lazily on first
// verified wallet connection.
type User struct {
	ID            string    `json:"id"`
	WalletAddress string    `json:"wallet_address"`
	FarcasterID   string    `json:"farcaster_id,omitempty"`
	Email         string    `json:"email,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// UpdateProfileRequest carries the optional profile fields a user may set.
type UpdateProfileRequest struct {
	FarcasterID *string `json:"farcaster_id,omitempty"`
	Email       *string `json:"email,omitempty"`
	Phone       *string `json:"phone,omitempty"`
}

// UserResponse is the public projection of a user.
type UserResponse struct {
	ID            string    `json:"id"`
	WalletAddress string    `json:"wallet_address"`
	FarcasterID   string    `json:"farcaster_id,omitempty"`
	Email         string    `json:"email,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ErrorResponse documents the error envelope in swagger annotations.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
