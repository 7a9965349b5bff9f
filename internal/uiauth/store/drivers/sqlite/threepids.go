package sqlite

import (
	"context"

	"github.com/aussiebroadwan/uiauth/internal/uiauth/domain"
)

type threepidsRepo struct {
	q querier
}

func (r *threepidsRepo) CreateThreepid(ctx context.Context, t domain.Threepid) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO user_threepids (user_id, medium, address, validated_at, added_at) VALUES (?, ?, ?, ?, ?)`,
		t.UserID, t.Medium, t.Address, toMillis(t.ValidatedAt), toMillis(t.AddedAt),
	)
	return mapConstraint(err)
}

func (r *threepidsRepo) ListUserThreepids(ctx context.Context, userID string) ([]domain.Threepid, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT user_id, medium, address, validated_at, added_at FROM user_threepids
		 WHERE user_id = ? ORDER BY added_at, medium, address`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Threepid
	for rows.Next() {
		var (
			t                    domain.Threepid
			validatedAt, addedAt int64
		)
		if err := rows.Scan(&t.UserID, &t.Medium, &t.Address, &validatedAt, &addedAt); err != nil {
			return nil, err
		}
		t.ValidatedAt = fromMillis(validatedAt)
		t.AddedAt = fromMillis(addedAt)
		out = append(out, t)
	}
	return out, rows.Err()
}
