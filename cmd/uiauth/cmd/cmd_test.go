package cmd

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aussiebroadwan/uiauth/pkg/cryptox"
	"github.com/aussiebroadwan/uiauth/pkg/macaroonx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mintToken(t *testing.T, secret string) string {
	t.Helper()

	tok, err := macaroonx.Mint("example.com", "key", []byte(secret), []string{
		"gen = 1",
		"user_id = @alice:example.com",
		"type = access",
	})
	require.NoError(t, err)
	s, err := tok.Serialize()
	require.NoError(t, err)
	return s
}

func TestInspectToken_Text(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, inspectToken(&out, mintToken(t, "server-secret"), "", false))

	text := out.String()
	assert.Contains(t, text, "location:  example.com")
	assert.Contains(t, text, "signature: unchecked")
	assert.Contains(t, text, "  user_id = @alice:example.com\n")
}

func TestInspectToken_Signature(t *testing.T) {
	token := mintToken(t, "server-secret")

	tests := []struct {
		secret string
		want   string
	}{
		{"server-secret", "valid"},
		{"other-secret", "invalid"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			var out bytes.Buffer
			require.NoError(t, inspectToken(&out, token, tt.secret, true))

			var report tokenReport
			require.NoError(t, json.Unmarshal(out.Bytes(), &report))
			assert.Equal(t, tt.want, report.Signature)
			assert.Equal(t, "key", report.ID)
			assert.Len(t, report.Caveats, 3)
		})
	}
}

func TestInspectToken_Malformed(t *testing.T) {
	err := inspectToken(&bytes.Buffer{}, "definitely-not-a-macaroon", "", false)
	require.ErrorIs(t, err, macaroonx.ErrMalformedToken)
}

func TestHashPassword(t *testing.T) {
	cryptox.SetPepperPath(filepath.Join(t.TempDir(), "pepper"))

	hash, err := hashPassword(strings.NewReader("correct horse\nignored\n"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$"))
	require.NoError(t, cryptox.VerifyPassword("correct horse", hash))

	_, err = hashPassword(strings.NewReader("\n"))
	require.Error(t, err)
}
