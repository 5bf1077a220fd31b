package storage

import (
	"context"
	"errors"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// DefaultBucket holds report photos.
const DefaultBucket = "problem-images"

var ErrNotImage = errors.New("only image uploads are accepted")

type Object struct {
	Name      string `json:"path"`
	PublicURL string `json:"public_url"`
	Size      int64  `json:"size"`
}

// ObjectStore keeps uploaded images and hands out their public URLs.
type ObjectStore interface {
	Upload(ctx context.Context, name, contentType string, body io.Reader) (Object, error)
	PublicURL(name string) string
}

// NewFilename returns a random object name keeping the extension of original.
func NewFilename(original string) string {
	ext := strings.ToLower(filepath.Ext(original))
	if ext == "" || len(ext) > 8 {
		ext = ".bin"
	}
	return uuid.NewString() + ext
}

// CheckImage accepts image/* content types only.
func CheckImage(contentType string) error {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return ErrNotImage
	}
	return nil
}

func joinURL(base, name string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(name, "/")
}
