package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aussiebroadwan/uiauth/internal/uiauth/store"
)

// txStore hands out the user, token and threepid repositories bound to one
// open transaction, so a password change and its token revocation land
// together.
type txStore struct {
	tx *sql.Tx
}

func newTx(tx *sql.Tx) *txStore {
	return &txStore{tx: tx}
}

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

// Close leaves the transaction alone; its owner commits or rolls back.
func (t *txStore) Close() error { return nil }

func (t *txStore) Ping(ctx context.Context) error { return nil }

func (t *txStore) Tx(ctx context.Context) (store.Tx, error) {
	return nil, store.ErrNestedTx
}

// WithTx runs fn inside the already open transaction. Errors propagate to
// the outer WithTx, which rolls everything back.
func (t *txStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return fn(t)
}

func (t *txStore) Users() store.Users                 { return &usersRepo{q: t.tx} }
func (t *txStore) AccessTokens() store.AccessTokens   { return &accessTokensRepo{q: t.tx} }
func (t *txStore) RefreshTokens() store.RefreshTokens { return &refreshTokensRepo{q: t.tx} }
func (t *txStore) Threepids() store.Threepids         { return &threepidsRepo{q: t.tx} }

func (t *txStore) ApplyMigrations() error {
	return fmt.Errorf("apply migrations: %w", store.ErrNestedTx)
}
