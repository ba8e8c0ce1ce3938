package models

import "time"

// NonceRequest starts a wallet connection.
type NonceRequest struct {
	WalletAddress string `json:"wallet_address" binding:"required"`
}

// NonceResponse carries the one-time challenge the wallet must sign.
type NonceResponse struct {
	Nonce   string `json:"nonce"`
	Message string `json:"message"`
}

// VerifyRequest carries the signed challenge back.
type VerifyRequest struct {
	WalletAddress string `json:"wallet_address" binding:"required"`
	Signature     string `json:"signature" binding:"required"`
}

// VerifyResponse returns the bearer token for subsequent requests.
type VerifyResponse struct {
	Token         string `json:"token"`
	UserID        string `json:"user_id"`
	WalletAddress string `json:"wallet_address"`
}

// Session is the server-side record behind a bearer token.
type Session struct {
	UserID        string    `json:"user_id"`
	WalletAddress string    `json:"wallet_address"`
	CreatedAt     time.Time `json:"created_at"`
}
