package sqlite

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/uiauth/internal/uiauth/domain"
	"github.com/aussiebroadwan/uiauth/internal/uiauth/store"
)

type usersRepo struct {
	q querier
}

const userColumns = `id, password_hash, totp_secret, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (domain.User, error) {
	var (
		u                    domain.User
		secret               sql.NullString
		createdAt, updatedAt int64
	)
	if err := row.Scan(&u.ID, &u.PasswordHash, &secret, &createdAt, &updatedAt); err != nil {
		return domain.User{}, err
	}
	u.TOTPSecret = mapNullStringPtr(secret)
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	return u, nil
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	var secret sql.NullString
	if u.TOTPSecret != nil {
		secret = mapStringNull(*u.TOTPSecret)
	}
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.PasswordHash, secret, toMillis(u.CreatedAt), toMillis(u.UpdatedAt),
	)
	return mapConstraint(err)
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) FindUsersByIDCaseInsensitive(ctx context.Context, id string) ([]domain.User, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(id) = lower(?) ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	return r.update(ctx, `UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`, hash, userID)
}

func (r *usersRepo) UpdateTOTPSecret(ctx context.Context, userID, secret string) error {
	return r.update(ctx, `UPDATE users SET totp_secret = ?, updated_at = ? WHERE id = ?`, mapStringNull(secret), userID)
}

func (r *usersRepo) update(ctx context.Context, query string, value any, userID string) error {
	res, err := r.q.ExecContext(ctx, query, value, toMillis(nowUTC()), userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
