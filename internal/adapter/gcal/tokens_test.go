package gcal_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"whatstasker/internal/adapter/gcal"
)

func TestFileTokenStore_RoundTrip(t *testing.T) {
	store, err := gcal.NewFileTokenStore(t.TempDir())
	require.NoError(t, err)

	token := &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Save("31612345678@c.us", token))

	loaded, err := store.Load("31612345678@c.us")
	require.NoError(t, err)
	require.Equal(t, "access", loaded.AccessToken)
	require.Equal(t, "refresh", loaded.RefreshToken)
	require.True(t, loaded.Expiry.Equal(token.Expiry))
}

func TestFileTokenStore_LoadMissing(t *testing.T) {
	store, err := gcal.NewFileTokenStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load("nobody@c.us")
	require.Error(t, err)
}

func TestFileTokenStore_DeleteIsIdempotent(t *testing.T) {
	store, err := gcal.NewFileTokenStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Save("owner@c.us", &oauth2.Token{AccessToken: "x"}))
	require.NoError(t, store.Delete("owner@c.us"))
	require.NoError(t, store.Delete("owner@c.us"))

	_, err = store.Load("owner@c.us")
	require.Error(t, err)
}

func TestFileTokenStore_SanitizesOwnerPath(t *testing.T) {
	dir := t.TempDir()
	store, err := gcal.NewFileTokenStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Save("../../etc/passwd", &oauth2.Token{AccessToken: "x"}))
	loaded, err := store.Load("../../etc/passwd")
	require.NoError(t, err)
	require.Equal(t, "x", loaded.AccessToken)
}
