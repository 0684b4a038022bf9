package auth

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestManagerPersistRoundTrip(t *testing.T) {
	storeFile := filepath.Join(t.TempDir(), "sessions.json")
	user := User{Username: "user@example.com", Password: "secret"}

	m := NewManager(storeFile, zap.NewNop())
	s := m.GetSession(ServiceMySkoda, user)
	s.SetToken(&TokenBundle{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		Expiry:       time.Now().Add(time.Hour),
	})
	s.StoreResponse("https://example.com/garage", []byte(`{"vehicles":[]}`))
	require.NoError(t, m.Persist())

	restored := NewManager(storeFile, zap.NewNop())
	rs := restored.GetSession(ServiceMySkoda, user)

	assert.Equal(t, "access-1", rs.AccessToken())
	assert.Equal(t, "refresh-1", rs.TokenSnapshot().RefreshToken)
	entry, ok := rs.CachedResponse("https://example.com/garage")
	require.True(t, ok)
	assert.JSONEq(t, `{"vehicles":[]}`, string(entry.Payload))
}

func TestManagerReturnsSameSession(t *testing.T) {
	m := NewManager("", zap.NewNop())
	user := User{Username: "user@example.com", Password: "secret"}

	assert.Same(t, m.GetSession(ServiceMySkoda, user), m.GetSession(ServiceMySkoda, user))
	assert.NotSame(t, m.GetSession(ServiceMySkoda, user), m.GetSession(ServiceMySkoda2, user))
}

func TestManagerToleratesCorruptStore(t *testing.T) {
	storeFile := filepath.Join(t.TempDir(), "sessions.json")
	require.NoError(t, os.WriteFile(storeFile, []byte("not json"), 0600))

	m := NewManager(storeFile, zap.NewNop())
	s := m.GetSession(ServiceMySkoda, User{Username: "u", Password: "p"})
	assert.Empty(t, s.AccessToken())
}

func TestManagerWithoutStoreFile(t *testing.T) {
	m := NewManager("", zap.NewNop())
	m.GetSession(ServiceMySkoda, User{Username: "u", Password: "p"})
	assert.NoError(t, m.Persist())
}
