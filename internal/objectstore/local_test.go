package objectstore

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrisetia/merchant-ingest-be/internal/domain"
)

func TestStoreAndOpenRoundTrip(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	key, n, err := store.Store("payments.csv", strings.NewReader("ACC1,100,USD\n"))
	require.NoError(t, err)
	assert.Equal(t, "payments.csv", key)
	assert.Equal(t, int64(13), n)

	src, err := store.Open(key)
	require.NoError(t, err)
	defer src.Close()

	data, err := io.ReadAll(src)
	require.NoError(t, err)
	assert.Equal(t, "ACC1,100,USD\n", string(data))
}

func TestStore_OverwritesExistingKey(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, _, err = store.Store("payments.csv", strings.NewReader("first"))
	require.NoError(t, err)
	key, _, err := store.Store("payments.csv", strings.NewReader("second"))
	require.NoError(t, err)

	src, err := store.Open(key)
	require.NoError(t, err)
	defer src.Close()

	data, err := io.ReadAll(src)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestStoreUnique_KeysNeverCollide(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	key1, _, err := store.StoreUnique("payments.csv", strings.NewReader("first"))
	require.NoError(t, err)
	key2, _, err := store.StoreUnique("payments.csv", strings.NewReader("second"))
	require.NoError(t, err)

	assert.NotEqual(t, key1, key2)
	assert.True(t, strings.HasSuffix(key1, "_payments.csv"))
	assert.True(t, strings.HasSuffix(key2, "_payments.csv"))
}

func TestOpen_MissingKey(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Open("nope.csv")
	assert.ErrorIs(t, err, domain.ErrFileNotFound)
}

func TestDelete(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	key, _, err := store.Store("payments.csv", strings.NewReader("x"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(key))
	_, err = os.Stat(store.Path(key))
	assert.True(t, os.IsNotExist(err))

	assert.ErrorIs(t, store.Delete(key), domain.ErrFileNotFound)
}

func TestNewLocalStore_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "uploads")

	_, err := NewLocalStore(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
