// Package source turns report files into pages of text lines and cell grids.
package source

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"districtvotes/internal"
)

var ErrUnsupportedFormat = errors.New("unsupported source format")

type Format string

const (
	FormatPDF   Format = "pdf"
	FormatHTML  Format = "html"
	FormatPages Format = "pages"
)

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pdf":
		return FormatPDF, nil
	case "html", "htm":
		return FormatHTML, nil
	case "pages", "json":
		return FormatPages, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// FormatOf guesses the format from the file extension.
func FormatOf(path string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "", fmt.Errorf("%w: %s has no extension", ErrUnsupportedFormat, path)
	}
	return ParseFormat(ext)
}

// ReadFile loads every page of a report file. Missing files surface as
// os.ErrNotExist so callers can fall back to another source.
func ReadFile(path string) ([]internal.Page, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	return ReadFileAs(path, format)
}

func ReadFileAs(path string, format Format) ([]internal.Page, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Read(content, format)
}

func Read(content []byte, format Format) ([]internal.Page, error) {
	switch format {
	case FormatPDF:
		return ReadPDF(content)
	case FormatHTML:
		return ReadHTML(bytes.NewReader(content))
	case FormatPages:
		return ReadPages(bytes.NewReader(content))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

type jsonPage struct {
	Index int         `json:"index"`
	Text  []string    `json:"text"`
	Table [][]*string `json:"table"`
}

type jsonDocument struct {
	Pages []jsonPage `json:"pages"`
}

// ReadPages decodes pre-extracted pages. Null cells stay nil. Both
// {"pages": [...]} and a bare array are accepted.
func ReadPages(r io.Reader) ([]internal.Page, error) {
	blob, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	blob = bytes.TrimSpace(blob)

	var raw []jsonPage
	if len(blob) > 0 && blob[0] == '[' {
		if err := json.Unmarshal(blob, &raw); err != nil {
			return nil, fmt.Errorf("decode pages: %w", err)
		}
	} else {
		var doc jsonDocument
		if err := json.Unmarshal(blob, &doc); err != nil {
			return nil, fmt.Errorf("decode pages: %w", err)
		}
		raw = doc.Pages
	}

	out := make([]internal.Page, 0, len(raw))
	for i, p := range raw {
		page := internal.Page{Index: p.Index, Text: p.Text}
		if page.Index == 0 {
			page.Index = i + 1
		}
		for _, row := range p.Table {
			cells := make([]internal.Cell, len(row))
			copy(cells, row)
			page.Table = append(page.Table, cells)
		}
		out = append(out, page)
	}
	return out, nil
}

// WritePages encodes pages in the format ReadPages accepts.
func WritePages(w io.Writer, pages []internal.Page) error {
	doc := jsonDocument{Pages: make([]jsonPage, 0, len(pages))}
	for _, p := range pages {
		jp := jsonPage{Index: p.Index, Text: p.Text}
		for _, row := range p.Table {
			jp.Table = append(jp.Table, append([]*string(nil), row...))
		}
		doc.Pages = append(doc.Pages, jp)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
