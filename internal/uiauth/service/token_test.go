package service

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/uiauth/internal/uiauth/domain"
	"github.com/aussiebroadwan/uiauth/internal/uiauth/nonce"
	"github.com/aussiebroadwan/uiauth/internal/uiauth/store"
	"github.com/aussiebroadwan/uiauth/pkg/cryptox"
	"github.com/aussiebroadwan/uiauth/pkg/macaroonx"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"
)

var testMacaroonKey = []byte("test-macaroon-secret-key-0123456")

type tokenFixture struct {
	svc    *TokenService
	store  store.Store
	nonces *nonce.MemoryStore
	clock  *testingclock.FakePassiveClock
}

func newTokenFixture(t *testing.T) *tokenFixture {
	t.Helper()

	st := newTestStore(t)
	createUser(t, st, "@alice:example.com", "hunter2")
	createUser(t, st, "@bob:example.com", "hunter3")

	codec, err := macaroonx.NewCodec(testServerName, "key", testMacaroonKey)
	require.NoError(t, err)

	clk := testingclock.NewFakePassiveClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	nonces := nonce.NewMemoryStore()
	return &tokenFixture{
		svc: &TokenService{
			Store:      st,
			Codec:      codec,
			Nonces:     nonces,
			Passwords:  newPasswordAuth(st),
			Clock:      clk,
			ServerName: testServerName,
		},
		store:  st,
		nonces: nonces,
		clock:  clk,
	}
}

func TestLoginWithPassword(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newTokenFixture(t)

	resp, err := f.svc.LoginWithPassword(ctx, "alice", "hunter2")
	require.NoError(t, err)
	require.Equal(t, "@alice:example.com", resp.UserID)
	require.Equal(t, testServerName, resp.HomeServer)
	require.NotEmpty(t, resp.AccessToken)
	require.NotEmpty(t, resp.RefreshToken)

	userID, err := f.svc.ValidateAccessToken(ctx, resp.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "@alice:example.com", userID)

	_, err = f.store.RefreshTokens().GetRefreshTokenByHash(ctx, cryptox.FingerprintToken(resp.RefreshToken))
	require.NoError(t, err)

	_, err = f.svc.LoginWithPassword(ctx, "alice", "wrong")
	require.ErrorIs(t, err, ErrForbidden)
}

func TestIssueTokens_Caveats(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newTokenFixture(t)

	access, err := f.svc.IssueAccessToken(ctx, "@alice:example.com")
	require.NoError(t, err)
	tok, err := macaroonx.Deserialize(access)
	require.NoError(t, err)
	require.Equal(t, []string{
		"gen = 1",
		"user_id = @alice:example.com",
		"type = access",
		macaroonx.ExpiryCaveat(f.clock.Now().Add(DefaultAccessTokenTTL)),
	}, tok.Caveats())

	// Same user, same instant: identical token, one record.
	again, err := f.svc.IssueAccessToken(ctx, "@alice:example.com")
	require.NoError(t, err)
	require.Equal(t, access, again)

	r1, err := f.svc.IssueRefreshToken(ctx, "@alice:example.com")
	require.NoError(t, err)
	r2, err := f.svc.IssueRefreshToken(ctx, "@alice:example.com")
	require.NoError(t, err)
	require.NotEqual(t, r1, r2)

	tok, err = macaroonx.Deserialize(r1)
	require.NoError(t, err)
	caveats := tok.Caveats()
	require.Len(t, caveats, 4)
	require.Equal(t, "type = refresh", caveats[2])
	n, ok := macaroonx.ValueOf(caveats[3], macaroonx.KeyNonce)
	require.True(t, ok)
	require.Len(t, n, 16)
}

func TestShortTermLogin(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("redeem and retry within the same transaction", func(t *testing.T) {
		f := newTokenFixture(t)
		tok, err := f.svc.MakeShortTermToken(ctx, "@alice:example.com", "n1")
		require.NoError(t, err)

		resp, err := f.svc.LoginWithShortTermToken(ctx, tok, "@alice:example.com", "txn1")
		require.NoError(t, err)
		require.Equal(t, "@alice:example.com", resp.UserID)

		_, err = f.svc.LoginWithShortTermToken(ctx, tok, "@alice:example.com", "txn1")
		require.NoError(t, err)

		_, err = f.svc.LoginWithShortTermToken(ctx, tok, "@alice:example.com", "txn2")
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("redeemed nonce cannot be reissued", func(t *testing.T) {
		f := newTokenFixture(t)
		tok, err := f.svc.MakeShortTermToken(ctx, "@alice:example.com", "n1")
		require.NoError(t, err)
		_, err = f.svc.LoginWithShortTermToken(ctx, tok, "@alice:example.com", "txn1")
		require.NoError(t, err)

		_, err = f.svc.MakeShortTermToken(ctx, "@alice:example.com", "n1")
		require.ErrorIs(t, err, ErrNonceAlreadyUsed)

		// Nonces are scoped per user.
		_, err = f.svc.MakeShortTermToken(ctx, "@bob:example.com", "n1")
		require.NoError(t, err)
	})

	t.Run("unredeemed nonce can be reissued", func(t *testing.T) {
		f := newTokenFixture(t)
		_, err := f.svc.MakeShortTermToken(ctx, "@alice:example.com", "n1")
		require.NoError(t, err)
		tok, err := f.svc.MakeShortTermToken(ctx, "@alice:example.com", "n1")
		require.NoError(t, err)
		_, err = f.svc.LoginWithShortTermToken(ctx, tok, "@alice:example.com", "txn1")
		require.NoError(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		f := newTokenFixture(t)
		tok, err := f.svc.MakeShortTermToken(ctx, "@alice:example.com", "n1")
		require.NoError(t, err)

		f.clock.SetTime(f.clock.Now().Add(DefaultLoginTokenTTL))
		_, err = f.svc.LoginWithShortTermToken(ctx, tok, "@alice:example.com", "txn1")
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong user does not bind the nonce", func(t *testing.T) {
		f := newTokenFixture(t)
		tok, err := f.svc.MakeShortTermToken(ctx, "@alice:example.com", "n1")
		require.NoError(t, err)

		_, err = f.svc.LoginWithShortTermToken(ctx, tok, "@bob:example.com", "txn1")
		require.ErrorIs(t, err, ErrInvalidToken)

		_, err = f.svc.LoginWithShortTermToken(ctx, tok, "@alice:example.com", "txn2")
		require.NoError(t, err)
	})

	t.Run("forged token does not bind the nonce", func(t *testing.T) {
		f := newTokenFixture(t)
		tok, err := f.svc.MakeShortTermToken(ctx, "@alice:example.com", "n1")
		require.NoError(t, err)

		forger, err := macaroonx.NewCodec(testServerName, "key", []byte("not-the-server-key-0123456789abc"))
		require.NoError(t, err)
		forged, err := forger.Mint(
			"gen = 1", "user_id = @alice:example.com", "type = "+string(domain.TokenTypeLogin),
			macaroonx.ExpiryCaveat(f.clock.Now().Add(time.Minute)), "nonce = n1",
		)
		require.NoError(t, err)
		s, err := forged.Serialize()
		require.NoError(t, err)

		_, err = f.svc.LoginWithShortTermToken(ctx, s, "@alice:example.com", "attacker")
		require.ErrorIs(t, err, ErrInvalidToken)

		_, err = f.svc.LoginWithShortTermToken(ctx, tok, "@alice:example.com", "txn1")
		require.NoError(t, err)
	})

	t.Run("nonce never claimed", func(t *testing.T) {
		f := newTokenFixture(t)
		m, err := f.svc.Codec.Mint(
			"gen = 1", "user_id = @alice:example.com", "type = "+string(domain.TokenTypeLogin),
			macaroonx.ExpiryCaveat(f.clock.Now().Add(time.Minute)), "nonce = unclaimed",
		)
		require.NoError(t, err)
		tok, err := m.Serialize()
		require.NoError(t, err)

		_, err = f.svc.LoginWithShortTermToken(ctx, tok, "@alice:example.com", "txn1")
		require.ErrorIs(t, err, ErrInvalidToken)
		require.Zero(t, f.nonces.Len())
	})

	t.Run("access token is not a login token", func(t *testing.T) {
		f := newTokenFixture(t)
		access, err := f.svc.IssueAccessToken(ctx, "@alice:example.com")
		require.NoError(t, err)
		_, err = f.svc.LoginWithShortTermToken(ctx, access, "@alice:example.com", "txn1")
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("malformed token", func(t *testing.T) {
		f := newTokenFixture(t)
		_, err := f.svc.LoginWithShortTermToken(ctx, "not a token", "@alice:example.com", "txn1")
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing parameters", func(t *testing.T) {
		f := newTokenFixture(t)
		_, err := f.svc.MakeShortTermToken(ctx, "@alice:example.com", "")
		require.ErrorIs(t, err, ErrMissingParam)

		tok, err := f.svc.MakeShortTermToken(ctx, "@alice:example.com", "n1")
		require.NoError(t, err)
		_, err = f.svc.LoginWithShortTermToken(ctx, tok, "@alice:example.com", "")
		require.ErrorIs(t, err, ErrMissingParam)
	})
}

func TestShortTermToken_Caveats(t *testing.T) {
	t.Parallel()

	f := newTokenFixture(t)
	s, err := f.svc.MakeShortTermToken(context.Background(), "@alice:example.com", "n1")
	require.NoError(t, err)

	tok, err := macaroonx.Deserialize(s)
	require.NoError(t, err)
	require.Equal(t, []string{
		"gen = 1",
		"user_id = @alice:example.com",
		"type = " + string(domain.TokenTypeLogin),
		macaroonx.ExpiryCaveat(f.clock.Now().Add(DefaultLoginTokenTTL)),
		"nonce = n1",
	}, tok.Caveats())
	require.Equal(t, 1, f.nonces.Len())
}

func TestValidateAccessToken(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newTokenFixture(t)

	access, err := f.svc.IssueAccessToken(ctx, "@alice:example.com")
	require.NoError(t, err)

	t.Run("extra caveat fails closed", func(t *testing.T) {
		tok, err := macaroonx.Deserialize(access)
		require.NoError(t, err)
		tok, err = tok.AddCaveat("scope = admin")
		require.NoError(t, err)
		s, err := tok.Serialize()
		require.NoError(t, err)
		_, err = f.svc.ValidateAccessToken(ctx, s)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("unregistered token", func(t *testing.T) {
		tok, err := f.svc.Codec.Mint("gen = 1", "user_id = @alice:example.com", "type = access",
			macaroonx.ExpiryCaveat(f.clock.Now().Add(time.Hour+time.Second)))
		require.NoError(t, err)
		s, err := tok.Serialize()
		require.NoError(t, err)
		_, err = f.svc.ValidateAccessToken(ctx, s)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		f.clock.SetTime(f.clock.Now().Add(2 * DefaultAccessTokenTTL))
		_, err := f.svc.ValidateAccessToken(ctx, access)
		require.ErrorIs(t, err, ErrInvalidToken)
	})
}
