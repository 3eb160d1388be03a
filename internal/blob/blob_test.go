package blob

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHead = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}

func TestImageKey(t *testing.T) {
	key, err := ImageKey("chats/direct_a_b", "cat photo.PNG", pngHead)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "chats/direct_a_b/"))
	assert.True(t, strings.HasSuffix(key, ".png"))

	_, err = ImageKey("", "run.sh", pngHead)
	assert.ErrorIs(t, err, ErrTypeNotAllowed)

	_, err = ImageKey("", "fake.jpg", pngHead)
	assert.ErrorIs(t, err, ErrContentMismatch)
}

func TestLocalStoreRoundTrip(t *testing.T) {
	store := NewLocalStore(t.TempDir(), "/api/files/")
	payload := append(append([]byte{}, pngHead...), bytes.Repeat([]byte("x"), 4096)...)

	url, err := store.Put(context.Background(), "chats/c1/img.png", bytes.NewReader(payload), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "/api/files/chats/c1/img.png", url)

	rc, err := store.Open("chats/c1/img.png")
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, payload, got)

	rec := httptest.NewRecorder()
	store.Serve(rec, "chats/c1/img.png")
	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, payload, rec.Body.Bytes())
}

func TestLocalStoreStaysInsideDir(t *testing.T) {
	store := NewLocalStore(t.TempDir(), "")
	_, err := store.Open("../../etc/passwd")
	assert.ErrorIs(t, err, ErrNotFound)

	rec := httptest.NewRecorder()
	store.Serve(rec, "missing.png")
	assert.Equal(t, 404, rec.Code)
}

func TestLocalStoreCancelledUpload(t *testing.T) {
	store := NewLocalStore(t.TempDir(), "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := store.Put(ctx, "a.png", bytes.NewReader(pngHead), "")
	require.Error(t, err)
	_, err = store.Open("a.png")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPublicBase(t *testing.T) {
	assert.Equal(t, "https://cdn.example.com", publicBase(S3Config{PublicURL: "https://cdn.example.com/"}))
	assert.Equal(t, "http://minio:9000/pets", publicBase(S3Config{Endpoint: "http://minio:9000", Bucket: "pets"}))
	assert.Equal(t, "https://pets.s3.eu-west-1.amazonaws.com", publicBase(S3Config{Bucket: "pets", Region: "eu-west-1"}))
}
