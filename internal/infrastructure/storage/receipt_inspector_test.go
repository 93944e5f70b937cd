package storage

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func pngBytes(t *testing.T) []byte {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.White)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestReceiptInspector(t *testing.T) {
	inspector := NewReceiptInspector(zap.NewNop())
	ctx := context.Background()

	t.Run("accepts png", func(t *testing.T) {
		assert.NoError(t, inspector.Inspect(ctx, "receipt.PNG", pngBytes(t)))
	})

	t.Run("rejects corrupt image", func(t *testing.T) {
		assert.Error(t, inspector.Inspect(ctx, "receipt.jpg", []byte("not an image")))
	})

	t.Run("rejects unsupported extension", func(t *testing.T) {
		err := inspector.Inspect(ctx, "receipt.exe", []byte("MZ"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported file type")
	})
}
