// Package extract pulls plain text out of uploaded documents.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrEmptyDocument     = errors.New("document contains no text")
	ErrInvalidEncoding   = errors.New("text file is not valid UTF-8")
	ErrCorrupt           = errors.New("document is corrupt or unreadable")
)

type extractFunc func(data []byte) (string, error)

var extractors = map[string]extractFunc{
	".pdf":  extractPDF,
	".pptx": extractPPTX,
	".txt":  extractTXT,
}

// SupportedExtensions returns the accepted file extensions, sorted.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(extractors))
	for ext := range extractors {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Supported reports whether a file name has an extension Extract handles.
func Supported(name string) bool {
	_, ok := extractors[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Extract returns the text of a document, choosing the parser by the
// file name's extension.
func Extract(name string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	fn, ok := extractors[ext]
	if !ok {
		if ext == "" {
			return "", fmt.Errorf("%w: %q has no extension", ErrUnsupportedFormat, name)
		}
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: %s is empty", ErrEmptyDocument, name)
	}

	text, err := fn(data)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", name, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptyDocument, name)
	}
	return text, nil
}

// ExtractFile reads a document from disk and extracts its text.
func ExtractFile(path string) (string, error) {
	if !Supported(path) {
		return Extract(path, nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return Extract(filepath.Base(path), data)
}

// Preview returns the first n runes of text followed by "...".
func Preview(text string, n int) string {
	if n <= 0 {
		return "..."
	}
	if utf8.RuneCountInString(text) <= n {
		return text + "..."
	}
	i := 0
	for pos := range text {
		if i == n {
			return text[:pos] + "..."
		}
		i++
	}
	return text + "..."
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func extractTXT(data []byte) (string, error) {
	if len(data) >= 3 && data[0] == utf8BOM[0] && data[1] == utf8BOM[1] && data[2] == utf8BOM[2] {
		data = data[3:]
	}
	if !utf8.Valid(data) {
		return "", ErrInvalidEncoding
	}
	return string(data), nil
}
