package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSettings(t *testing.T) *Settings {
	t.Helper()
	conn, err := Open(filepath.Join(t.TempDir(), "bridge.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewSettings(conn)
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "bridge.db")
	conn, err := Open(path)
	require.NoError(t, err)
	defer conn.Close()

	assert.NoError(t, conn.Ping())
}

func TestRefreshTokenFallback(t *testing.T) {
	s := setupSettings(t)

	token, err := s.RefreshToken("from-config")
	require.NoError(t, err)
	assert.Equal(t, "from-config", token, "configured token is used until one is rotated in")
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	s := setupSettings(t)

	require.NoError(t, s.SaveRefreshToken("rotated-token"))

	token, err := s.RefreshToken("from-config")
	require.NoError(t, err)
	assert.Equal(t, "rotated-token", token, "persisted token supersedes the configured one")
}

func TestSaveRefreshTokenOverwrites(t *testing.T) {
	s := setupSettings(t)

	require.NoError(t, s.SaveRefreshToken("first"))
	require.NoError(t, s.SaveRefreshToken("second"))

	token, err := s.RefreshToken("")
	require.NoError(t, err)
	assert.Equal(t, "second", token)
}

func TestInitialPollFlag(t *testing.T) {
	s := setupSettings(t)

	done, err := s.InitialPollDone()
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, s.MarkInitialPollDone())

	done, err = s.InitialPollDone()
	require.NoError(t, err)
	assert.True(t, done)
}

func TestPollingActiveDefaultsToTrue(t *testing.T) {
	s := setupSettings(t)

	active, err := s.PollingActive()
	require.NoError(t, err)
	assert.True(t, active)

	require.NoError(t, s.SetPollingActive(false))

	active, err = s.PollingActive()
	require.NoError(t, err)
	assert.False(t, active)
}

func TestReducedPollingLogicDefaultsToFalse(t *testing.T) {
	s := setupSettings(t)

	enabled, err := s.ReducedPollingLogic()
	require.NoError(t, err)
	assert.False(t, enabled)

	require.NoError(t, s.SetReducedPollingLogic(true))

	enabled, err = s.ReducedPollingLogic()
	require.NoError(t, err)
	assert.True(t, enabled)
}
