// Package blob implements the image upload pipeline: decode, downscale,
// re-encode as WebP and store content-addressed in the document store.
package blob

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"mime"
	"net/http"
	"strings"
	"time"

	"snappit/internal/models"
	"snappit/internal/observability"
	"snappit/internal/store"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	MasterMaxSize          = 2048
	WebPQuality            = 70
	DefaultMaxUploadSizeMB = 10
	DefaultUploadTimeout   = 30 * time.Second
)

// Blob is a stored image document.
type Blob struct {
	Hash        string `json:"hash"`
	UserID      string `json:"user_id"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Data        []byte `json:"data"`
	UploadedAt  string `json:"uploaded_at"`
}

// UploadInput carries one uploaded file.
type UploadInput struct {
	UserID      string
	ContentType string
	Content     []byte
}

// Service validates, transcodes and stores uploaded images.
type Service struct {
	st                 store.Store
	log                *observability.ViewLogger
	maxUploadSizeBytes int64
	uploadTimeout      time.Duration
}

// NewService creates a blob service. Zero values fall back to defaults.
func NewService(st store.Store, maxUploadSizeMB int, uploadTimeout time.Duration) *Service {
	if maxUploadSizeMB <= 0 {
		maxUploadSizeMB = DefaultMaxUploadSizeMB
	}
	if uploadTimeout <= 0 {
		uploadTimeout = DefaultUploadTimeout
	}
	return &Service{
		st:                 st,
		log:                observability.NewViewLogger("blob"),
		maxUploadSizeBytes: int64(maxUploadSizeMB) * 1024 * 1024,
		uploadTimeout:      uploadTimeout,
	}
}

// Upload transcodes the image to a bounded WebP master and stores it under
// its content hash. Re-uploading identical content is idempotent. Returns
// the public media URL.
func (s *Service) Upload(ctx context.Context, in UploadInput) (string, error) {
	if in.UserID == "" {
		return "", models.NewValidationError("Invalid user")
	}
	if len(in.Content) == 0 {
		return "", models.NewValidationError("No file uploaded")
	}
	if int64(len(in.Content)) > s.maxUploadSizeBytes {
		return "", models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxUploadSizeBytes/(1024*1024)))
	}

	detectedType := http.DetectContentType(in.Content)
	if !isAllowedImageMIME(detectedType) {
		return "", models.NewValidationError("Invalid image type")
	}
	if provided := normalizeContentType(in.ContentType); strings.HasPrefix(provided, "image/") && provided != normalizeContentType(detectedType) {
		return "", models.NewValidationError("Image content type mismatch")
	}

	decoded, _, err := image.Decode(bytes.NewReader(in.Content))
	if err != nil {
		return "", models.NewValidationError("Invalid image file")
	}

	master := resizeToFit(decoded, MasterMaxSize, MasterMaxSize)
	encoded, err := encodeWebP(master, WebPQuality)
	if err != nil {
		return "", models.NewInternalError(err)
	}

	sum := sha256.Sum256(encoded)
	hash := hex.EncodeToString(sum[:])
	bounds := master.Bounds()
	b := Blob{
		Hash:        hash,
		UserID:      in.UserID,
		ContentType: "image/webp",
		SizeBytes:   int64(len(encoded)),
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		Data:        encoded,
		UploadedAt:  models.NewTimestamp(),
	}
	if err := s.st.Put(ctx, store.BlobPath(hash), b); err != nil {
		return "", err
	}
	return URL(hash), nil
}

// UploadWithFallback runs Upload under the configured timeout. When the
// upload does not finish in time the post proceeds text-only: the result
// is an empty URL and a nil error. Other failures pass through.
func (s *Service) UploadWithFallback(ctx context.Context, in UploadInput) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.uploadTimeout)
	defer cancel()

	type result struct {
		url string
		err error
	}
	done := make(chan result, 1)
	go func() {
		url, err := s.Upload(ctx, in)
		done <- result{url, err}
	}()

	select {
	case r := <-done:
		if r.err != nil && ctx.Err() != nil {
			s.log.LogError(ctx, "upload_timeout", r.err)
			return "", nil
		}
		return r.url, r.err
	case <-ctx.Done():
		s.log.LogError(ctx, "upload_timeout", ctx.Err())
		return "", nil
	}
}

// Get fetches a stored blob by hash.
func (s *Service) Get(ctx context.Context, hash string) (Blob, error) {
	if strings.TrimSpace(hash) == "" {
		return Blob{}, models.NewValidationError("Invalid image hash")
	}
	var b Blob
	if err := s.st.Get(ctx, store.BlobPath(hash), &b); err != nil {
		return Blob{}, err
	}
	return b, nil
}

// URL builds the public media path for a stored blob.
func URL(hash string) string {
	return fmt.Sprintf("/media/i/%s.webp", hash)
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}
	if w <= maxWidth && h <= maxHeight {
		return src
	}

	scaleW := float64(maxWidth) / float64(w)
	scaleH := float64(maxHeight) / float64(h)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}
	newW := int(float64(w) * scale)
	newH := int(float64(h) * scale)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isAllowedImageMIME(contentType string) bool {
	switch normalizeContentType(contentType) {
	case "image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = contentType
	}
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	if mediaType == "image/jpg" {
		mediaType = "image/jpeg"
	}
	return mediaType
}
