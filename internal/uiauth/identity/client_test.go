package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func newIdentityServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, validated3pidPath, r.URL.Path)
		require.Equal(t, http.MethodGet, r.Method)

		w.Header().Set("Content-Type", "application/json")
		q := r.URL.Query()
		switch {
		case q.Get("sid") == "s1" && q.Get("client_secret") == "cs":
			_, _ = w.Write([]byte(`{"medium": "email", "address": "alice@example.com", "validated_at": 1700000000000}`))
		case q.Get("sid") == "pending":
			_, _ = w.Write([]byte(`{"errcode": "M_SESSION_NOT_VALIDATED"}`))
		case q.Get("sid") == "boom":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errcode": "M_NO_VALID_SESSION"}`))
		}
	}))
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return srv, u.Host
}

func TestThreepidFromCreds(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, host := newIdentityServer(t)
	c := NewClient("http", []string{host})

	creds := func(sid string) map[string]any {
		return map[string]any{"sid": sid, "client_secret": "cs", "id_server": host}
	}

	got, err := c.ThreepidFromCreds(ctx, creds("s1"))
	require.NoError(t, err)
	require.Equal(t, "email", got["medium"])
	require.Equal(t, "alice@example.com", got["address"])
	require.EqualValues(t, 1700000000000, got["validated_at"])

	t.Run("not validated", func(t *testing.T) {
		got, err := c.ThreepidFromCreds(ctx, creds("pending"))
		require.NoError(t, err)
		require.Nil(t, got)
	})

	t.Run("unknown session", func(t *testing.T) {
		got, err := c.ThreepidFromCreds(ctx, creds("missing"))
		require.NoError(t, err)
		require.Nil(t, got)
	})

	t.Run("server error", func(t *testing.T) {
		_, err := c.ThreepidFromCreds(ctx, creds("boom"))
		require.Error(t, err)
	})

	t.Run("untrusted server", func(t *testing.T) {
		untrusted := NewClient("http", []string{"id.example.com"})
		got, err := untrusted.ThreepidFromCreds(ctx, creds("s1"))
		require.NoError(t, err)
		require.Nil(t, got)
	})

	t.Run("incomplete credentials", func(t *testing.T) {
		got, err := c.ThreepidFromCreds(ctx, map[string]any{"sid": "s1", "id_server": host})
		require.NoError(t, err)
		require.Nil(t, got)
	})
}

func TestNewClient_DefaultScheme(t *testing.T) {
	t.Parallel()

	c := NewClient("", nil)
	require.Equal(t, "https", c.Scheme)
}
