package extract

import (
	"fmt"
	"os"

	"github.com/ledongthuc/pdf"

	"document-qa/internal/models"
)

type pdfExtractor struct{}

func (pdfExtractor) Extract(path string) (models.Extracted, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.Extracted{}, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return models.Extracted{}, err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return models.Extracted{}, fmt.Errorf("open pdf %s: %w", path, err)
	}

	numPages := reader.NumPage()
	pageTexts := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pageTexts = append(pageTexts, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return models.Extracted{}, fmt.Errorf("extract page %d of %s: %w", i, path, err)
		}
		pageTexts = append(pageTexts, text)
	}
	return joinPages(pageTexts), nil
}
