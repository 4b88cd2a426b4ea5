package document

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

// extractPDFText extracts text page by page. A failure on one page does not
// abort the document: the page contributes an empty string and a warning is
// logged. Failing to open the stream at all is an error.
func extractPDFText(data []byte, log *zap.Logger) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	pages := make([]string, 0, reader.NumPage())
	for num := 1; num <= reader.NumPage(); num++ {
		text, err := pdfPageText(reader, num)
		if err != nil {
			log.Warn("skipping unreadable pdf page",
				zap.Int("page", num),
				zap.Error(err),
			)
			text = ""
		}
		pages = append(pages, text)
	}

	return strings.Join(pages, "\n"), nil
}

func pdfPageText(reader *pdf.Reader, num int) (text string, err error) {
	// The parser panics on malformed content streams.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page %d: %v", num, r)
		}
	}()

	page := reader.Page(num)
	if page.V.IsNull() {
		return "", nil
	}

	return page.GetPlainText(nil)
}
