package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestCreateAndGet(t *testing.T) {
	store := newTestStore(t)

	created, err := store.Create("alice")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "alice", created.Name)
	assert.Zero(t, created.Stats.GamesPlayed)

	got, err := store.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)
}

func TestGet_MissingProfile(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProfilesSurviveReopen(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)
	created, err := store.Create("bob")
	require.NoError(t, err)

	reopened, err := NewStore(dir)
	require.NoError(t, err)
	got, err := reopened.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", got.Name)
}

func TestSaveAvatar(t *testing.T) {
	store := newTestStore(t)
	created, err := store.Create("carol")
	require.NoError(t, err)

	updated, err := store.SaveAvatar(created.ID, ".jpg", []byte("fake image bytes"))
	require.NoError(t, err)
	assert.Equal(t, "/data/avatars/"+created.ID+".jpg", updated.AvatarURL)

	data, err := os.ReadFile(filepath.Join(store.AvatarDir(), created.ID+".jpg"))
	require.NoError(t, err)
	assert.Equal(t, []byte("fake image bytes"), data)

	// The URL sticks on the stored profile.
	got, err := store.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.AvatarURL, got.AvatarURL)
}

func TestSaveAvatar_UnknownProfile(t *testing.T) {
	store := newTestStore(t)

	_, err := store.SaveAvatar("nope", ".png", []byte("x"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordResult(t *testing.T) {
	store := newTestStore(t)
	created, err := store.Create("dave")
	require.NoError(t, err)

	store.RecordResult(created.ID, true, "werewolf")
	store.RecordResult(created.ID, false, "god")
	store.RecordResult(created.ID, true, "villager")
	store.RecordResult("missing", true, "villager") // dropped

	got, err := store.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Stats.GamesPlayed)
	assert.Equal(t, 2, got.Stats.Wins)
	assert.Equal(t, 1, got.Stats.Losses)
	assert.Equal(t, 1, got.Stats.Roles.Werewolf)
	assert.Equal(t, 1, got.Stats.Roles.God)
	assert.Equal(t, 1, got.Stats.Roles.Villager)
}
