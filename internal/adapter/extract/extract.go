// Package extract converts files on disk into plain text, dispatched by
// file type. The supported types form a closed set; adding a type means
// adding a variant here, not ad-hoc branching at call sites.
package extract

import (
	"fmt"
	"path/filepath"
	"strings"

	"docrag/internal/domain"
)

type fileKind int

const (
	kindUnsupported fileKind = iota
	kindPlainText
	kindMarkdown
	kindPDF
)

func kindOf(path string) fileKind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		return kindPlainText
	case ".md", ".markdown":
		return kindMarkdown
	case ".pdf":
		return kindPDF
	default:
		return kindUnsupported
	}
}

// Extractor turns supported files into plain text.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Supported reports whether the file's extension maps to a known type.
func (e *Extractor) Supported(path string) bool {
	return kindOf(path) != kindUnsupported
}

// Extract returns the plain text of the file at path. Failures are wrapped
// in *domain.ExtractionError so scans can isolate them per document.
func (e *Extractor) Extract(path string) (string, error) {
	switch kindOf(path) {
	case kindPlainText, kindMarkdown:
		text, err := readText(path)
		if err != nil {
			return "", &domain.ExtractionError{Path: path, Err: err}
		}
		return text, nil
	case kindPDF:
		text, err := readPDF(path)
		if err != nil {
			return "", &domain.ExtractionError{Path: path, Err: err}
		}
		return text, nil
	default:
		return "", &domain.ExtractionError{Path: path, Err: fmt.Errorf("unsupported file type %q", filepath.Ext(path))}
	}
}
