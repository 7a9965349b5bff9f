package domain

import "time"

// TokenType is the value of a token's "type" caveat.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
	TokenTypeLogin   TokenType = "st_login"
)

// TokenGeneration is the value of the "gen" caveat on every minted token.
const TokenGeneration = "1"

// LoginResponse is returned by the password and short-term token logins.
type LoginResponse struct {
	UserID       string `json:"user_id"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	HomeServer   string `json:"home_server"`
}

// AccessToken is the stored record of an issued access token.
type AccessToken struct {
	ID        string
	UserID    string
	TokenHash string // base64url SHA-256 of the serialized token
	ExpiresAt time.Time
	CreatedAt time.Time
}

// RefreshToken is the stored record of an issued refresh token.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	CreatedAt time.Time
}
