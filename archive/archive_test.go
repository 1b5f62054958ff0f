package archive

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStorePutAndGet(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "nested", "archive"))
	require.NoError(t, err)

	key1, err := s.Put(ctx, []byte("<form>1</form>"), "application/xml")
	require.NoError(t, err)
	key2, err := s.Put(ctx, []byte("<form>2</form>"), "")
	require.NoError(t, err)
	assert.NotEqual(t, key1, key2)

	data, contentType, err := s.Get(ctx, key1)
	require.NoError(t, err)
	assert.Equal(t, "<form>1</form>", string(data))
	assert.Equal(t, "application/xml", contentType)

	data, contentType, err = s.Get(ctx, key2)
	require.NoError(t, err)
	assert.Equal(t, "<form>2</form>", string(data))
	assert.Equal(t, "", contentType)
}

func TestFileStoreRejectsUnknownAndInvalidKeys(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, _, err = s.Get(context.Background(), "../../etc/passwd")
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = s.Get(context.Background(), newKey())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpen(t *testing.T) {
	s, err := Open(context.Background(), Config{Type: TypeFile, Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	_, err = Open(context.Background(), Config{Type: TypeS3})
	assert.Error(t, err)

	_, err = Open(context.Background(), Config{Type: "ftp"})
	assert.Error(t, err)
}

func TestS3ObjectKey(t *testing.T) {
	assert.Equal(t, "k", (&S3Store{}).objectKey("k"))
	assert.Equal(t, "forms/k", (&S3Store{prefix: "forms/"}).objectKey("k"))
}
