package captcha

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVerify(t *testing.T) {
	t.Parallel()

	var gotForm map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = map[string]string{
			"secret":   r.PostForm.Get("secret"),
			"response": r.PostForm.Get("response"),
			"remoteip": r.PostForm.Get("remoteip"),
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.PostForm.Get("response") {
		case "good":
			_, _ = w.Write([]byte(`{"success": true, "hostname": "example.com"}`))
		case "bad":
			_, _ = w.Write([]byte(`{"success": false, "error-codes": ["invalid-input-response"]}`))
		case "garbage":
			_, _ = w.Write([]byte(`<html>oops</html>`))
		case "nosuccess":
			_, _ = w.Write([]byte(`{"hostname": "example.com"}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	t.Cleanup(srv.Close)

	ctx := context.Background()
	c := NewClient("s3cret", srv.URL)

	ok, err := c.Verify(ctx, "good", "10.0.0.1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, map[string]string{"secret": "s3cret", "response": "good", "remoteip": "10.0.0.1"}, gotForm)

	ok, err = c.Verify(ctx, "bad", "")
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, gotForm["remoteip"])

	_, err = c.Verify(ctx, "garbage", "")
	require.ErrorIs(t, err, ErrInvalidResponse)

	_, err = c.Verify(ctx, "nosuccess", "")
	require.ErrorIs(t, err, ErrInvalidResponse)

	_, err = c.Verify(ctx, "error", "")
	require.Error(t, err)
}

func TestVerify_TruncatedBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		require.True(t, ok)
		conn, buf, err := hj.Hijack()
		require.NoError(t, err)
		defer conn.Close()

		body := `{"success": true}`
		_, _ = buf.WriteString("HTTP/1.1 200 OK\r\n" +
			"Content-Type: application/json\r\n" +
			"Content-Length: 100\r\n\r\n" + body)
		_ = buf.Flush()
	}))
	t.Cleanup(srv.Close)

	ok, err := NewClient("s3cret", srv.URL).Verify(context.Background(), "good", "")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestNewClient_DefaultURL(t *testing.T) {
	t.Parallel()

	require.Equal(t, DefaultSiteVerifyURL, NewClient("x", "").SiteVerifyURL)
}
