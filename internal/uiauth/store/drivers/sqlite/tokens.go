package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/uiauth/internal/uiauth/domain"
)

// nowUTC is replaced in tests that need deterministic timestamps.
var nowUTC = func() time.Time { return time.Now().UTC() }

type accessTokensRepo struct {
	q querier
}

func (r *accessTokensRepo) CreateAccessToken(ctx context.Context, t domain.AccessToken) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO access_tokens (id, user_id, token_hash, expires_at, created_at) VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.TokenHash, toMillis(t.ExpiresAt), toMillis(t.CreatedAt),
	)
	return mapConstraint(err)
}

func (r *accessTokensRepo) GetAccessTokenByHash(ctx context.Context, hash string) (domain.AccessToken, error) {
	var (
		t                    domain.AccessToken
		expiresAt, createdAt int64
	)
	err := r.q.QueryRowContext(ctx,
		`SELECT id, user_id, token_hash, expires_at, created_at FROM access_tokens WHERE token_hash = ?`, hash,
	).Scan(&t.ID, &t.UserID, &t.TokenHash, &expiresAt, &createdAt)
	if err != nil {
		return domain.AccessToken{}, mapNotFound(err)
	}
	t.ExpiresAt = fromMillis(expiresAt)
	t.CreatedAt = fromMillis(createdAt)
	return t, nil
}

func (r *accessTokensRepo) DeleteUserAccessTokens(ctx context.Context, userID string) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM access_tokens WHERE user_id = ?`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *accessTokensRepo) DeleteExpiredAccessTokens(ctx context.Context) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM access_tokens WHERE expires_at <= ?`, toMillis(nowUTC()))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type refreshTokensRepo struct {
	q querier
}

func (r *refreshTokensRepo) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO refresh_tokens (id, user_id, token_hash, created_at) VALUES (?, ?, ?, ?)`,
		t.ID, t.UserID, t.TokenHash, toMillis(t.CreatedAt),
	)
	return mapConstraint(err)
}

func (r *refreshTokensRepo) GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error) {
	var (
		t         domain.RefreshToken
		createdAt int64
	)
	err := r.q.QueryRowContext(ctx,
		`SELECT id, user_id, token_hash, created_at FROM refresh_tokens WHERE token_hash = ?`, hash,
	).Scan(&t.ID, &t.UserID, &t.TokenHash, &createdAt)
	if err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}
	t.CreatedAt = fromMillis(createdAt)
	return t, nil
}
