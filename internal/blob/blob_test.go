package blob

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"strings"
	"testing"
	"time"

	"snappit/internal/models"
	"snappit/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestService_Upload(t *testing.T) {
	t.Parallel()

	stub := testutil.NewStoreStub()
	svc := NewService(stub, 10, time.Second)
	ctx := context.Background()

	t.Run("stores and serves a webp master", func(t *testing.T) {
		t.Parallel()
		url, err := svc.Upload(ctx, UploadInput{
			UserID:      "u1",
			ContentType: "image/png",
			Content:     pngBytes(t, 64, 48),
		})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(url, "/media/i/"))
		assert.True(t, strings.HasSuffix(url, ".webp"))

		hash := strings.TrimSuffix(strings.TrimPrefix(url, "/media/i/"), ".webp")
		b, err := svc.Get(ctx, hash)
		require.NoError(t, err)
		assert.Equal(t, "image/webp", b.ContentType)
		assert.Equal(t, 64, b.Width)
		assert.Equal(t, 48, b.Height)
		assert.NotEmpty(t, b.Data)
	})

	t.Run("identical uploads are idempotent", func(t *testing.T) {
		t.Parallel()
		content := pngBytes(t, 32, 32)
		first, err := svc.Upload(ctx, UploadInput{UserID: "u1", Content: content})
		require.NoError(t, err)
		second, err := svc.Upload(ctx, UploadInput{UserID: "u2", Content: content})
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("oversized images are downscaled", func(t *testing.T) {
		t.Parallel()
		url, err := svc.Upload(ctx, UploadInput{
			UserID:  "u1",
			Content: pngBytes(t, MasterMaxSize*2, MasterMaxSize),
		})
		require.NoError(t, err)

		hash := strings.TrimSuffix(strings.TrimPrefix(url, "/media/i/"), ".webp")
		b, err := svc.Get(ctx, hash)
		require.NoError(t, err)
		assert.Equal(t, MasterMaxSize, b.Width)
		assert.Equal(t, MasterMaxSize/2, b.Height)
	})

	t.Run("validation", func(t *testing.T) {
		t.Parallel()
		_, err := svc.Upload(ctx, UploadInput{UserID: "", Content: pngBytes(t, 8, 8)})
		assert.Error(t, err)

		_, err = svc.Upload(ctx, UploadInput{UserID: "u1"})
		assert.Error(t, err)

		_, err = svc.Upload(ctx, UploadInput{UserID: "u1", Content: []byte("plain text, not an image")})
		assert.Error(t, err)

		_, err = svc.Upload(ctx, UploadInput{
			UserID:      "u1",
			ContentType: "image/jpeg",
			Content:     pngBytes(t, 8, 8),
		})
		assert.Error(t, err, "declared type must match detected type")
	})

	t.Run("size limit", func(t *testing.T) {
		t.Parallel()
		tiny := NewService(testutil.NewStoreStub(), 1, time.Second)
		big := make([]byte, 2*1024*1024)
		_, err := tiny.Upload(ctx, UploadInput{UserID: "u1", Content: big})
		assert.Error(t, err)
	})
}

func TestService_UploadWithFallback(t *testing.T) {
	t.Parallel()

	t.Run("fast path returns the url", func(t *testing.T) {
		t.Parallel()
		svc := NewService(testutil.NewStoreStub(), 10, 5*time.Second)
		url, err := svc.UploadWithFallback(context.Background(), UploadInput{
			UserID:  "u1",
			Content: pngBytes(t, 16, 16),
		})
		require.NoError(t, err)
		assert.NotEmpty(t, url)
	})

	t.Run("timeout degrades to text-only", func(t *testing.T) {
		t.Parallel()
		stub := testutil.NewStoreStub()
		stub.PutFn = func(ctx context.Context, path string, value any) error {
			<-ctx.Done()
			return ctx.Err()
		}
		svc := NewService(stub, 10, 50*time.Millisecond)

		url, err := svc.UploadWithFallback(context.Background(), UploadInput{
			UserID:  "u1",
			Content: pngBytes(t, 16, 16),
		})
		require.NoError(t, err)
		assert.Empty(t, url)
	})
}

func TestService_Get(t *testing.T) {
	t.Parallel()

	svc := NewService(testutil.NewStoreStub(), 10, time.Second)

	_, err := svc.Get(context.Background(), "  ")
	assert.Error(t, err)

	_, err = svc.Get(context.Background(), "no-such-hash")
	assert.True(t, models.IsNotFound(err))
}
