package storage

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"

	"github.com/garyjia/approval-workflow/internal/application/port"
)

// ReceiptInspector accepts PDFs that open with at least one page and
// decodable JPEG or PNG images
type ReceiptInspector struct {
	logger *zap.Logger
}

// NewReceiptInspector creates a new ReceiptInspector
func NewReceiptInspector(logger *zap.Logger) *ReceiptInspector {
	return &ReceiptInspector{logger: logger}
}

// Inspect rejects receipts that cannot be opened as a document
func (r *ReceiptInspector) Inspect(ctx context.Context, name string, content []byte) error {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".pdf":
		return r.inspectPDF(name, content)
	case ".jpg", ".jpeg", ".png":
		cfg, _, err := image.DecodeConfig(bytes.NewReader(content))
		if err != nil {
			return fmt.Errorf("unreadable image: %w", err)
		}
		if cfg.Width == 0 || cfg.Height == 0 {
			return fmt.Errorf("empty image")
		}
		return nil
	}
	return fmt.Errorf("unsupported file type: %s", ext)
}

func (r *ReceiptInspector) inspectPDF(name string, content []byte) error {
	doc, err := fitz.NewFromMemory(content)
	if err != nil {
		return fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	pages := doc.NumPage()
	r.logger.Debug("Inspected receipt", zap.String("name", name), zap.Int("pages", pages))
	if pages == 0 {
		return fmt.Errorf("PDF has no pages")
	}
	return nil
}

var _ port.ReceiptInspector = (*ReceiptInspector)(nil)
