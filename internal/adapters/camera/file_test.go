package camera

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Smallest valid PNG header, enough for MIME sniffing.
var pngBytes = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}

func TestCaptureEncodesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "card.png")
	require.NoError(t, os.WriteFile(path, pngBytes, 0o644))

	photo, err := FileCamera{}.Capture(context.Background(), path)
	require.NoError(t, err)

	assert.True(t, photo.Present())
	assert.Equal(t, "image/png", photo.MIME)

	decoded, err := base64.StdEncoding.DecodeString(photo.Base64)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, decoded)
}

func TestCaptureMissingFile(t *testing.T) {
	_, err := FileCamera{}.Capture(context.Background(), filepath.Join(t.TempDir(), "missing.jpg"))
	assert.Error(t, err)
}

func TestCaptureEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.jpg")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	_, err := FileCamera{}.Capture(context.Background(), path)
	assert.ErrorIs(t, err, ErrEmptyCapture)
}

func TestCaptureCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := FileCamera{}.Capture(ctx, "whatever.jpg")
	assert.ErrorIs(t, err, context.Canceled)
}
