package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/uiauth/internal/uiauth/domain"
	"github.com/aussiebroadwan/uiauth/internal/uiauth/metrics"
	"github.com/aussiebroadwan/uiauth/internal/uiauth/nonce"
	"github.com/aussiebroadwan/uiauth/internal/uiauth/store"
	"github.com/aussiebroadwan/uiauth/pkg/cryptox"
	"github.com/aussiebroadwan/uiauth/pkg/idx"
	"github.com/aussiebroadwan/uiauth/pkg/macaroonx"
	"github.com/aussiebroadwan/uiauth/pkg/slogx"
	"k8s.io/utils/clock"
)

const (
	DefaultAccessTokenTTL = time.Hour
	DefaultLoginTokenTTL  = 60 * time.Second

	refreshNonceLength = 16
)

// TokenService mints and redeems macaroon tokens.
type TokenService struct {
	Store      store.Store
	Codec      *macaroonx.Codec
	Nonces     nonce.Store
	Passwords  *PasswordAuthenticator
	Clock      clock.PassiveClock
	ServerName string

	AccessTTL     time.Duration // default DefaultAccessTokenTTL
	LoginTokenTTL time.Duration // default DefaultLoginTokenTTL

	Metrics *metrics.Recorder // optional
}

func (s *TokenService) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock.Now()
}

func (s *TokenService) accessTTL() time.Duration {
	if s.AccessTTL > 0 {
		return s.AccessTTL
	}
	return DefaultAccessTokenTTL
}

func (s *TokenService) loginTokenTTL() time.Duration {
	if s.LoginTokenTTL > 0 {
		return s.LoginTokenTTL
	}
	return DefaultLoginTokenTTL
}

// LoginWithPassword authenticates userID and issues a fresh token pair.
func (s *TokenService) LoginWithPassword(ctx context.Context, userID, password string) (domain.LoginResponse, error) {
	canonical, err := s.Passwords.CheckPassword(ctx, s.Passwords.QualifyUserID(userID), password)
	if err != nil {
		return domain.LoginResponse{}, err
	}
	return s.issuePair(slogx.WithUserID(ctx, canonical), canonical)
}

// IssueAccessToken mints an access token valid for AccessTTL and registers
// it so it can be revoked.
func (s *TokenService) IssueAccessToken(ctx context.Context, userID string) (string, error) {
	now := s.now()
	expiresAt := now.Add(s.accessTTL())

	tok, err := s.mint(userID, domain.TokenTypeAccess, macaroonx.ExpiryCaveat(expiresAt))
	if err != nil {
		return "", err
	}

	if err := s.Store.AccessTokens().CreateAccessToken(ctx, domain.AccessToken{
		ID:        idx.NewAt(now),
		UserID:    userID,
		TokenHash: cryptox.FingerprintToken(tok),
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}); err != nil && !errors.Is(err, store.ErrAlreadyExists) {
		// Tokens minted for the same user within one millisecond are
		// byte-identical and share a record.
		return "", fmt.Errorf("store access token: %w", err)
	}

	s.Metrics.TokenIssued(string(domain.TokenTypeAccess))
	return tok, nil
}

// IssueRefreshToken mints a refresh token carrying a random nonce so that
// two refresh tokens for the same user never collide.
func (s *TokenService) IssueRefreshToken(ctx context.Context, userID string) (string, error) {
	n, err := cryptox.RandomStringWithSymbols(refreshNonceLength)
	if err != nil {
		return "", err
	}

	tok, err := s.mint(userID, domain.TokenTypeRefresh, macaroonx.ExactCaveat(macaroonx.KeyNonce, n))
	if err != nil {
		return "", err
	}

	now := s.now()
	if err := s.Store.RefreshTokens().CreateRefreshToken(ctx, domain.RefreshToken{
		ID:        idx.NewAt(now),
		UserID:    userID,
		TokenHash: cryptox.FingerprintToken(tok),
		CreatedAt: now,
	}); err != nil {
		return "", fmt.Errorf("store refresh token: %w", err)
	}

	s.Metrics.TokenIssued(string(domain.TokenTypeRefresh))
	return tok, nil
}

// MakeShortTermToken mints a single-use login token for userID bound to
// loginNonce. It fails with ErrNonceAlreadyUsed once the nonce has been
// redeemed.
func (s *TokenService) MakeShortTermToken(ctx context.Context, userID, loginNonce string) (string, error) {
	if loginNonce == "" {
		return "", ErrMissingParam.WithDescription("Missing parameter: nonce")
	}

	expiresAt := s.now().Add(s.loginTokenTTL())
	if err := s.Nonces.Claim(ctx, userID, loginNonce, expiresAt); err != nil {
		if errors.Is(err, nonce.ErrNonceAlreadyUsed) {
			return "", ErrNonceAlreadyUsed
		}
		return "", fmt.Errorf("claim nonce: %w", err)
	}

	tok, err := s.mint(userID, domain.TokenTypeLogin,
		macaroonx.ExpiryCaveat(expiresAt),
		macaroonx.ExactCaveat(macaroonx.KeyNonce, loginNonce),
	)
	if err != nil {
		return "", err
	}

	s.Metrics.TokenIssued(string(domain.TokenTypeLogin))
	return tok, nil
}

// LoginWithShortTermToken redeems a short-term login token for userID
// within transaction txnID and issues a fresh token pair. Any problem with
// the token is reported as ErrInvalidToken. Retrying with the same txnID
// succeeds while the token is unexpired.
func (s *TokenService) LoginWithShortTermToken(
	ctx context.Context,
	token, userID, txnID string,
) (domain.LoginResponse, error) {
	ctx = slogx.WithUserID(ctx, userID)
	l := slogx.FromContext(ctx)

	if txnID == "" {
		return domain.LoginResponse{}, ErrMissingParam.WithDescription("Missing parameter: txn_id")
	}

	tok, err := macaroonx.Deserialize(token)
	if err != nil {
		s.Metrics.ShortTermLogin(metrics.OutcomeFailure)
		return domain.LoginResponse{}, ErrInvalidToken
	}

	v := macaroonx.NewVerifier().
		SatisfyExact(macaroonx.ExactCaveat(macaroonx.KeyGen, domain.TokenGeneration)).
		SatisfyExact(macaroonx.ExactCaveat(macaroonx.KeyType, string(domain.TokenTypeLogin))).
		SatisfyExact(macaroonx.ExactCaveat(macaroonx.KeyUserID, userID)).
		SatisfyGeneral(macaroonx.ExpiryPredicate).
		SatisfyGeneral(s.matchNonce)

	vctx := macaroonx.Context{Now: s.now(), UserID: userID, TransactionID: txnID}
	if err := s.Codec.Verify(ctx, tok, v, vctx); err != nil {
		s.Metrics.ShortTermLogin(metrics.OutcomeFailure)
		l.Warn("short-term token rejected")
		return domain.LoginResponse{}, ErrInvalidToken
	}

	resp, err := s.issuePair(ctx, userID)
	if err != nil {
		return domain.LoginResponse{}, err
	}
	s.Metrics.ShortTermLogin(metrics.OutcomeSuccess)
	return resp, nil
}

// matchNonce accepts "nonce = N" when N is unredeemed or already redeemed by
// the verifying transaction, binding it on first use.
func (s *TokenService) matchNonce(ctx context.Context, vctx macaroonx.Context, caveat string) bool {
	n, ok := macaroonx.ValueOf(caveat, macaroonx.KeyNonce)
	if !ok {
		return false
	}
	matched, err := s.Nonces.MatchOrBind(ctx, vctx.UserID, n, vctx.TransactionID)
	if err != nil {
		slogx.FromContext(ctx).Error("nonce lookup failed", slog.Any("error", err))
		return false
	}
	return matched
}

// ValidateAccessToken returns the user an access token was issued to. The
// token must verify and still be registered; changing a password revokes
// every access token of the user.
func (s *TokenService) ValidateAccessToken(ctx context.Context, token string) (string, error) {
	tok, err := macaroonx.Deserialize(token)
	if err != nil {
		return "", ErrInvalidToken
	}
	userID, ok := macaroonx.Lookup(tok, macaroonx.KeyUserID)
	if !ok {
		return "", ErrInvalidToken
	}

	v := macaroonx.NewVerifier().
		SatisfyExact(macaroonx.ExactCaveat(macaroonx.KeyGen, domain.TokenGeneration)).
		SatisfyExact(macaroonx.ExactCaveat(macaroonx.KeyType, string(domain.TokenTypeAccess))).
		SatisfyExact(macaroonx.ExactCaveat(macaroonx.KeyUserID, userID)).
		SatisfyGeneral(macaroonx.ExpiryPredicate)
	if err := s.Codec.Verify(ctx, tok, v, macaroonx.Context{Now: s.now(), UserID: userID}); err != nil {
		return "", ErrInvalidToken
	}

	rec, err := s.Store.AccessTokens().GetAccessTokenByHash(ctx, cryptox.FingerprintToken(token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrInvalidToken
		}
		return "", fmt.Errorf("lookup access token: %w", err)
	}
	if rec.UserID != userID {
		return "", ErrInvalidToken
	}
	return userID, nil
}

func (s *TokenService) issuePair(ctx context.Context, userID string) (domain.LoginResponse, error) {
	access, err := s.IssueAccessToken(ctx, userID)
	if err != nil {
		return domain.LoginResponse{}, err
	}
	refresh, err := s.IssueRefreshToken(ctx, userID)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	slogx.FromContext(ctx).Info("tokens issued", slog.String("home_server", s.ServerName))
	return domain.LoginResponse{
		UserID:       userID,
		AccessToken:  access,
		RefreshToken: refresh,
		HomeServer:   s.ServerName,
	}, nil
}

// mint builds gen, user_id and type caveats followed by extra, and serializes.
func (s *TokenService) mint(userID string, typ domain.TokenType, extra ...string) (string, error) {
	caveats := append([]string{
		macaroonx.ExactCaveat(macaroonx.KeyGen, domain.TokenGeneration),
		macaroonx.ExactCaveat(macaroonx.KeyUserID, userID),
		macaroonx.ExactCaveat(macaroonx.KeyType, string(typ)),
	}, extra...)

	tok, err := s.Codec.Mint(caveats...)
	if err != nil {
		return "", fmt.Errorf("mint %s token: %w", typ, err)
	}
	serialized, err := tok.Serialize()
	if err != nil {
		return "", fmt.Errorf("serialize %s token: %w", typ, err)
	}
	return serialized, nil
}
