package objectstore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dgnsrekt/voicebank/internal/objectstore"
)

func TestDirStore_PutGet(t *testing.T) {
	root := t.TempDir()
	store, err := objectstore.NewDirStore(root)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "words/v1/apple.mp3", []byte("mp3"), "audio/mpeg", "max-age=60"))

	raw, err := os.ReadFile(filepath.Join(root, "words", "v1", "apple.mp3"))
	require.NoError(t, err)
	require.Equal(t, "mp3", string(raw))

	obj, err := store.Get(ctx, "words/v1/apple.mp3")
	require.NoError(t, err)
	require.Equal(t, "audio/mpeg", obj.ContentType)
	require.Equal(t, "max-age=60", obj.CacheControl)

	_, err = store.Get(ctx, "words/v1/none.mp3")
	require.ErrorIs(t, err, objectstore.ErrNotFound)
}

func TestDirStore_RejectsEscapingKeys(t *testing.T) {
	store, err := objectstore.NewDirStore(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "../outside", "/etc/passwd", "a/../../b"} {
		require.Error(t, store.Put(context.Background(), key, []byte("x"), "", ""), "key %q", key)
	}
}
