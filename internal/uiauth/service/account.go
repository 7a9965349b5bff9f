package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/uiauth/internal/uiauth/domain"
	"github.com/aussiebroadwan/uiauth/internal/uiauth/events"
	"github.com/aussiebroadwan/uiauth/internal/uiauth/store"
	"github.com/aussiebroadwan/uiauth/pkg/slogx"
	"k8s.io/utils/clock"
)

// PasswordEvents receives password change notifications.
type PasswordEvents interface {
	PublishPasswordChanged(ctx context.Context, ev events.PasswordChanged) error
}

// AccountService changes credentials of existing users.
type AccountService struct {
	Store  store.Store
	Hasher Hasher
	Clock  clock.PassiveClock
	Events PasswordEvents // optional
}

func (s *AccountService) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock.Now()
}

// SetPassword replaces the user's password hash and revokes all of their
// access tokens in one transaction, then announces the change.
func (s *AccountService) SetPassword(ctx context.Context, userID, newPassword string) error {
	ctx = slogx.WithUserID(ctx, userID)
	l := slogx.FromContext(ctx)

	hash, err := s.Hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	var revoked int64
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().UpdatePasswordHash(ctx, userID, hash); err != nil {
			return err
		}
		revoked, err = tx.AccessTokens().DeleteUserAccessTokens(ctx, userID)
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrForbidden.WithDescription("Unknown user")
		}
		return fmt.Errorf("set password: %w", err)
	}

	l.Info("password changed", slog.Int64("tokens_revoked", revoked))

	if s.Events != nil {
		if err := s.Events.PublishPasswordChanged(ctx, events.PasswordChanged{
			UserID:        userID,
			TokensRevoked: revoked,
			ChangedAt:     s.now(),
		}); err != nil {
			l.Error("failed to publish password change", slog.Any("error", err))
		}
	}
	return nil
}

// AddThreepid binds a validated third-party identifier to the user.
func (s *AccountService) AddThreepid(ctx context.Context, userID, medium, address string, validatedAt time.Time) error {
	medium = strings.TrimSpace(medium)
	address = strings.TrimSpace(address)
	if medium == "" || address == "" {
		return ErrMissingParam.WithDescription("Missing parameter: medium and address are required")
	}

	err := s.Store.Threepids().CreateThreepid(ctx, domain.Threepid{
		UserID:      userID,
		Medium:      medium,
		Address:     address,
		ValidatedAt: validatedAt,
		AddedAt:     s.now(),
	})
	if errors.Is(err, store.ErrAlreadyExists) {
		return ErrInvalidRequest.WithDescription("Third-party identifier is already in use")
	}
	if err != nil {
		return fmt.Errorf("add threepid: %w", err)
	}
	return nil
}
