package camera

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"

	"attendance.client/internal/core/model"
)

// ErrEmptyCapture is returned when the source resolved to zero bytes. An
// empty capture must never count as a photo.
var ErrEmptyCapture = errors.New("capture produced no bytes")

// FileCamera resolves photo captures from image files on disk. It stands in
// for the device camera pipeline: each capture must yield encoded bytes and
// a MIME type or fail hard for that photo.
type FileCamera struct{}

// Capture reads the image at source, sniffs its MIME type and returns the
// base64 payload.
func (FileCamera) Capture(ctx context.Context, source string) (model.Photo, error) {
	if err := ctx.Err(); err != nil {
		return model.Photo{}, err
	}
	raw, err := os.ReadFile(source)
	if err != nil {
		return model.Photo{}, fmt.Errorf("failed to read photo %s: %w", source, err)
	}
	if len(raw) == 0 {
		return model.Photo{}, ErrEmptyCapture
	}
	return model.Photo{
		Base64: base64.StdEncoding.EncodeToString(raw),
		MIME:   http.DetectContentType(raw),
	}, nil
}
