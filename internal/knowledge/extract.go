// Package knowledge loads the reference document that is embedded into every prompt.
package knowledge

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
)

var (
	ErrNotFound    = errors.New("knowledge file not found")
	ErrNoUpload    = errors.New("no document uploaded")
	ErrUnsupported = errors.New("unsupported file type")
	ErrParse       = errors.New("cannot read document")
	ErrEmpty       = errors.New("document has no text")
)

type extractFunc func(data []byte) (string, error)

var extractors = map[string]extractFunc{
	".txt":  extractText,
	".csv":  extractCSV,
	".xlsx": extractXLSX,
	".pdf":  extractPDF,
}

// SupportedExtensions returns the extensions Extract understands, sorted.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(extractors))
	for ext := range extractors {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Extract turns a document into flat text, dispatching on the file extension only.
func Extract(name string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	fn, ok := extractors[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}

	text, err := fn(data)
	if err != nil {
		return "", fmt.Errorf("%w %s: %w", ErrParse, name, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: %s", ErrEmpty, name)
	}
	return text, nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func extractText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return "", errors.New("not valid UTF-8")
	}
	return string(data), nil
}

func extractCSV(data []byte) (string, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return "", err
	}
	var b strings.Builder
	writeRows(&b, records)
	return b.String(), nil
}

func extractXLSX(data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	defer f.Close()

	var b strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("sheet %s: %w", sheet, err)
		}
		if len(rows) == 0 {
			continue
		}
		fmt.Fprintf(&b, "# %s\n", sheet)
		writeRows(&b, rows)
		b.WriteString("\n")
	}
	return b.String(), nil
}

// writeRows renders one line per row with cells joined by " | ", skipping blank rows.
func writeRows(b *strings.Builder, rows [][]string) {
	for _, row := range rows {
		cells := make([]string, 0, len(row))
		blank := true
		for _, c := range row {
			c = strings.TrimSpace(c)
			if c != "" {
				blank = false
			}
			cells = append(cells, c)
		}
		if blank {
			continue
		}
		b.WriteString(strings.Join(cells, " | "))
		b.WriteString("\n")
	}
}

func extractPDF(data []byte) (text string, err error) {
	// the pdf reader panics on some malformed cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		pageText, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		if pageText = strings.TrimSpace(pageText); pageText != "" {
			b.WriteString(pageText)
			b.WriteString("\n\n")
		}
	}
	return b.String(), nil
}
