// Package export writes record lists as CSV downloads.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// utf8BOM lets spreadsheet tools detect the encoding
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Column maps a record to one CSV cell
type Column[T any] struct {
	Header string
	Value  func(T) string
}

// WriterOption configures CSV output
type WriterOption func(*writerConfig)

type writerConfig struct {
	bom bool
}

// WithBOM toggles the leading UTF-8 byte order mark (default on)
func WithBOM(on bool) WriterOption {
	return func(c *writerConfig) {
		c.bom = on
	}
}

// WriteCSV writes a header row then one row per record
func WriteCSV[T any](w io.Writer, columns []Column[T], records []T, opts ...WriterOption) error {
	cfg := writerConfig{bom: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.bom {
		if _, err := w.Write(utf8BOM); err != nil {
			return fmt.Errorf("write bom: %w", err)
		}
	}

	cw := csv.NewWriter(w)
	header := make([]string, len(columns))
	for i, c := range columns {
		header[i] = c.Header
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := make([]string, len(columns))
	for _, rec := range records {
		for i, c := range columns {
			row[i] = sanitizeCell(c.Value(rec))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// sanitizeCell neutralises values a spreadsheet would evaluate as a formula
func sanitizeCell(v string) string {
	if v == "" {
		return v
	}
	switch v[0] {
	case '=', '+', '-', '@', '\t', '\r':
		if isNumber(v) {
			return v
		}
		return "'" + v
	}
	return v
}

func isNumber(v string) bool {
	v = strings.TrimPrefix(strings.TrimPrefix(v, "-"), "+")
	if v == "" {
		return false
	}
	dot := false
	for _, r := range v {
		switch {
		case r == '.' && !dot:
			dot = true
		case r < '0' || r > '9':
			return false
		}
	}
	return true
}

// Filename builds an attachment name such as contacts-2025-03-01.csv
func Filename(resource, date string) string {
	return resource + "-" + date + ".csv"
}
