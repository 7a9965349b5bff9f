package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aussiebroadwan/uiauth/internal/uiauth/domain"
	"github.com/aussiebroadwan/uiauth/internal/uiauth/store"
	"github.com/aussiebroadwan/uiauth/internal/uiauth/store/drivers/sqlite"
	"github.com/aussiebroadwan/uiauth/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

const testServerName = "example.com"

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "uiauth-service-test")
	if err != nil {
		panic(err)
	}
	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))

	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

// plainHasher keeps tests fast where the hash format does not matter.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "plain:" + password, nil }
func (plainHasher) Verify(password, encoded string) bool { return encoded == "plain:"+password }

func newTestStore(t *testing.T) store.Store {
	t.Helper()

	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations())
	return s
}

func createUser(t *testing.T, s store.Store, id, password string) domain.User {
	t.Helper()

	now := time.Now().UTC().Truncate(time.Millisecond)
	hash, err := plainHasher{}.Hash(password)
	require.NoError(t, err)

	u := domain.User{ID: id, PasswordHash: hash, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.Users().CreateUser(context.Background(), u))
	return u
}

func newPasswordAuth(s store.Store) *PasswordAuthenticator {
	return &PasswordAuthenticator{Store: s, Hasher: plainHasher{}, ServerName: testServerName}
}
