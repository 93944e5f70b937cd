package port

import (
	"context"
	"io"
)

// ObjectStore persists uploaded binaries and returns a retrievable URL
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
	Delete(ctx context.Context, key string) error
}

// ReceiptInspector rejects receipts that cannot be opened as documents
type ReceiptInspector interface {
	Inspect(ctx context.Context, name string, content []byte) error
}

// SpreadsheetExporter renders request listings to a workbook
type SpreadsheetExporter interface {
	Export(ctx context.Context, w io.Writer, sheets []ExportSheet) error
}

// ExportSheet is one named table of rows
type ExportSheet struct {
	Name    string
	Headers []string
	Rows    [][]interface{}
}
