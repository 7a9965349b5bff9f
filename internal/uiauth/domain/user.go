package domain

import "time"

type User struct {
	ID           string // fully qualified, e.g. @alice:example.com
	PasswordHash string
	TOTPSecret   *string // base32, nil when not enrolled
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Threepid is a validated third-party identifier bound to a user.
type Threepid struct {
	UserID      string
	Medium      string
	Address     string
	ValidatedAt time.Time
	AddedAt     time.Time
}
