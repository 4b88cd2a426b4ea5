// Package document turns uploaded resume files into plain text.
package document

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Closed set of document-layer error kinds.
var (
	// ErrUnsupportedFormat indicates the file extension is not one of the
	// supported resume formats.
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrExtractionFailed indicates the document could not be opened or
	// parsed at all. It always wraps the underlying cause.
	ErrExtractionFailed = errors.New("document extraction failed")
)

// RawDocument is an uploaded file plus its declared name. It is transient:
// created on upload and discarded once text is produced.
type RawDocument struct {
	Data     []byte
	Filename string
}

// ExtractedText is the plain-text content of a document. Text may legally be
// empty (e.g. an image-only PDF); emptiness is not an error by itself.
type ExtractedText struct {
	Text     string
	Filename string
}

// Empty reports whether no usable text was extracted.
func (e ExtractedText) Empty() bool {
	return e.Text == ""
}

// Extraction seams, swapped by tests.
var (
	pdfText  = extractPDFText
	docxText = extractDOCXText
)

// Extractor dispatches documents to a format-specific text extractor by
// filename extension.
type Extractor struct {
	logger *zap.Logger
}

func NewExtractor(log *zap.Logger) *Extractor {
	return &Extractor{logger: log}
}

// ExtractText produces the trimmed plain text of a PDF or DOCX document.
// An all-whitespace document yields an empty, non-error result.
func (e *Extractor) ExtractText(doc RawDocument) (ExtractedText, error) {
	ext := strings.ToLower(filepath.Ext(doc.Filename))

	var (
		text string
		err  error
	)

	switch ext {
	case ".pdf":
		text, err = pdfText(doc.Data, e.logger)
	case ".docx":
		text, err = docxText(doc.Data)
	default:
		return ExtractedText{}, fmt.Errorf("%q: %w", ext, ErrUnsupportedFormat)
	}

	if err != nil {
		return ExtractedText{}, fmt.Errorf("%s: %v: %w", doc.Filename, err, ErrExtractionFailed)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		e.logger.Warn("document produced no usable text",
			zap.String("filename", doc.Filename),
		)
	}

	return ExtractedText{Text: text, Filename: doc.Filename}, nil
}
