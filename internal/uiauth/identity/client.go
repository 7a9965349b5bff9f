// Package identity resolves third-party identifiers validated by a trusted
// identity server.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/aussiebroadwan/uiauth/pkg/slogx"
	"github.com/tidwall/gjson"
)

const validated3pidPath = "/_matrix/identity/api/v1/3pid/getValidated3pid"

const maxResponseBytes = 64 << 10

type Client struct {
	HTTP           *http.Client
	Scheme         string // default https
	TrustedServers []string
}

func NewClient(scheme string, trusted []string) *Client {
	if scheme == "" {
		scheme = "https"
	}
	return &Client{
		HTTP:           &http.Client{Timeout: 10 * time.Second},
		Scheme:         scheme,
		TrustedServers: slices.Clone(trusted),
	}
}

// ThreepidFromCreds exchanges {sid, client_secret, id_server} for the
// identifier the server validated. It returns nil when the server is not
// trusted, the credentials are incomplete or the server holds no validated
// identifier for them.
func (c *Client) ThreepidFromCreds(ctx context.Context, creds map[string]any) (map[string]any, error) {
	l := slogx.FromContext(ctx)

	idServer, _ := creds["id_server"].(string)
	sid, _ := creds["sid"].(string)
	clientSecret, _ := creds["client_secret"].(string)
	if idServer == "" || sid == "" || clientSecret == "" {
		l.Warn("incomplete threepid credentials")
		return nil, nil
	}
	if !slices.Contains(c.TrustedServers, idServer) {
		l.Warn("untrusted identity server", slog.String("id_server", idServer))
		return nil, nil
	}

	u := url.URL{
		Scheme:   c.scheme(),
		Host:     idServer,
		Path:     validated3pidPath,
		RawQuery: url.Values{"sid": {sid}, "client_secret": {clientSecret}}.Encode(),
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build identity request: %w", err)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read identity response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("identity server returned status %d", resp.StatusCode)
	}

	if !gjson.GetBytes(body, "medium").Exists() {
		return nil, nil
	}
	var threepid map[string]any
	if err := json.Unmarshal(body, &threepid); err != nil {
		return nil, fmt.Errorf("decode identity response: %w", err)
	}
	return threepid, nil
}

func (c *Client) scheme() string {
	if c.Scheme == "" {
		return "https"
	}
	return c.Scheme
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP == nil {
		return http.DefaultClient
	}
	return c.HTTP
}
