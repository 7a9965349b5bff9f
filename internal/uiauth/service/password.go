package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aussiebroadwan/uiauth/internal/uiauth/domain"
	"github.com/aussiebroadwan/uiauth/internal/uiauth/store"
	"github.com/aussiebroadwan/uiauth/pkg/slogx"
)

// Hasher hashes and verifies passwords.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) bool
}

// PasswordAuthenticator resolves user ids and checks passwords. Both the
// password stage and the direct password login go through it.
type PasswordAuthenticator struct {
	Store      store.Store
	Hasher     Hasher
	ServerName string
}

// QualifyUserID turns a bare localpart into @localpart:server.
func (a *PasswordAuthenticator) QualifyUserID(user string) string {
	if strings.HasPrefix(user, "@") {
		return user
	}
	return "@" + user + ":" + a.ServerName
}

// ResolveUser finds the stored user for userID. Ids are matched without
// regard to case; when that yields several users only an exact match is
// accepted.
func (a *PasswordAuthenticator) ResolveUser(ctx context.Context, userID string) (domain.User, error) {
	l := slogx.FromContext(ctx)

	users, err := a.Store.Users().FindUsersByIDCaseInsensitive(ctx, userID)
	if err != nil {
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}

	switch len(users) {
	case 0:
		l.Warn("login attempt for unknown user", slog.String("user_id", userID))
		return domain.User{}, ErrForbidden
	case 1:
		return users[0], nil
	}

	for _, u := range users {
		if u.ID == userID {
			return u, nil
		}
	}
	l.Warn("ambiguous case-insensitive user match", slog.String("user_id", userID), slog.Int("matches", len(users)))
	return domain.User{}, ErrForbidden
}

// CheckPassword returns the canonical user id when password is correct.
func (a *PasswordAuthenticator) CheckPassword(ctx context.Context, userID, password string) (string, error) {
	u, err := a.ResolveUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if !a.Hasher.Verify(password, u.PasswordHash) {
		slogx.FromContext(ctx).Warn("failed password login", slog.String("user_id", u.ID))
		return "", ErrForbidden
	}
	return u.ID, nil
}
