package store

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/uiauth/internal/uiauth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
	ErrNestedTx      = errors.New("store: transaction already open")
)

// Store is the root data access interface for users and credentials.
// Sub-repositories are exposed as methods so a Tx can hand out the same
// repositories bound to the transaction.
type Store interface {
	Users() Users
	AccessTokens() AccessTokens
	RefreshTokens() RefreshTokens
	Threepids() Threepids

	ApplyMigrations() error

	// Tx starts a read/write transaction. The caller MUST Commit or Rollback.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil.
	// Called on a Tx, fn joins that transaction and the outer caller
	// decides the outcome.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error
	Ping(ctx context.Context) error
}

// Tx is a transactional store.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	CreateUser(ctx context.Context, u domain.User) error

	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// FindUsersByIDCaseInsensitive returns every user whose id equals id
	// ignoring case. The result may hold several users.
	FindUsersByIDCaseInsensitive(ctx context.Context, id string) ([]domain.User, error)

	// UpdatePasswordHash returns ErrNotFound when the user does not exist.
	UpdatePasswordHash(ctx context.Context, userID, hash string) error

	// UpdateTOTPSecret sets (or clears, when secret is empty) the TOTP secret.
	UpdateTOTPSecret(ctx context.Context, userID, secret string) error
}

type AccessTokens interface {
	CreateAccessToken(ctx context.Context, t domain.AccessToken) error

	GetAccessTokenByHash(ctx context.Context, hash string) (domain.AccessToken, error)

	// DeleteUserAccessTokens revokes every access token of the user and
	// returns how many were removed.
	DeleteUserAccessTokens(ctx context.Context, userID string) (int64, error)

	// DeleteExpiredAccessTokens is housekeeping.
	DeleteExpiredAccessTokens(ctx context.Context) (int64, error)
}

type RefreshTokens interface {
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error

	GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error)
}

type Threepids interface {
	// CreateThreepid fails with ErrAlreadyExists when the medium/address
	// pair is bound already.
	CreateThreepid(ctx context.Context, t domain.Threepid) error

	ListUserThreepids(ctx context.Context, userID string) ([]domain.Threepid, error)
}
