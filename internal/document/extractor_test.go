package document

import (
	"errors"
	"testing"

	"go.uber.org/zap"
)

func swapSeams(t *testing.T, pdf func([]byte, *zap.Logger) (string, error), docx func([]byte) (string, error)) {
	t.Helper()

	origPDF, origDOCX := pdfText, docxText
	if pdf != nil {
		pdfText = pdf
	}
	if docx != nil {
		docxText = docx
	}
	t.Cleanup(func() {
		pdfText = origPDF
		docxText = origDOCX
	})
}

func TestExtractTextDispatchesByExtension(t *testing.T) {
	var pdfCalled, docxCalled bool
	swapSeams(t,
		func([]byte, *zap.Logger) (string, error) {
			pdfCalled = true
			return "pdf text", nil
		},
		func([]byte) (string, error) {
			docxCalled = true
			return "docx text", nil
		},
	)

	extractor := NewExtractor(zap.NewNop())

	got, err := extractor.ExtractText(RawDocument{Data: []byte("x"), Filename: "resume.PDF"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !pdfCalled || got.Text != "pdf text" {
		t.Fatalf("pdf path not taken for uppercase extension: %+v", got)
	}

	got, err = extractor.ExtractText(RawDocument{Data: []byte("x"), Filename: "resume.docx"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !docxCalled || got.Text != "docx text" {
		t.Fatalf("docx path not taken: %+v", got)
	}
	if got.Filename != "resume.docx" {
		t.Fatalf("filename should be carried through, got %q", got.Filename)
	}
}

func TestExtractTextRejectsUnsupportedFormats(t *testing.T) {
	extractor := NewExtractor(zap.NewNop())

	for _, filename := range []string{"resume.doc", "resume.txt", "resume", "resume.pdf.exe"} {
		_, err := extractor.ExtractText(RawDocument{Data: []byte("x"), Filename: filename})
		if !errors.Is(err, ErrUnsupportedFormat) {
			t.Fatalf("%s: expected ErrUnsupportedFormat, got %v", filename, err)
		}
	}
}

func TestExtractTextWrapsParserFailure(t *testing.T) {
	cause := errors.New("malformed xref table")
	swapSeams(t, func([]byte, *zap.Logger) (string, error) { return "", cause }, nil)

	extractor := NewExtractor(zap.NewNop())

	_, err := extractor.ExtractText(RawDocument{Data: []byte("x"), Filename: "broken.pdf"})
	if !errors.Is(err, ErrExtractionFailed) {
		t.Fatalf("expected ErrExtractionFailed, got %v", err)
	}
}

func TestExtractTextTrimsWhitespace(t *testing.T) {
	swapSeams(t, func([]byte, *zap.Logger) (string, error) { return "\n\n  some text \n", nil }, nil)

	extractor := NewExtractor(zap.NewNop())

	got, err := extractor.ExtractText(RawDocument{Data: []byte("x"), Filename: "resume.pdf"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Text != "some text" {
		t.Fatalf("unexpected text: %q", got.Text)
	}
}

func TestExtractTextEmptyResultIsNotAnError(t *testing.T) {
	swapSeams(t, func([]byte, *zap.Logger) (string, error) { return "   \n ", nil }, nil)

	extractor := NewExtractor(zap.NewNop())

	got, err := extractor.ExtractText(RawDocument{Data: []byte("x"), Filename: "scanned.pdf"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Empty() {
		t.Fatalf("expected empty result, got %q", got.Text)
	}
}
