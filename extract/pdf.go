package extract

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// parsePDF extracts plain text from a PDF page by page. Pages whose text
// layer cannot be read are skipped rather than failing the document.
func parsePDF(path string) (string, string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", "", fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	var pages []string
	total := reader.NumPage()
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text != "" {
			pages = append(pages, text)
		}
	}

	if len(pages) == 0 {
		return "", "", fmt.Errorf("no extractable text in PDF")
	}

	text := strings.Join(pages, "\n\n")
	return text, "", nil
}
