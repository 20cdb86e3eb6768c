package extract

import (
	"github.com/nguyenthenguyen/docx"

	"document-qa/internal/models"
)

type docxExtractor struct{}

// DOCX has no page boundaries; the whole document maps to page 1.
func (docxExtractor) Extract(path string) (models.Extracted, error) {
	r, err := docx.ReadDocxFile(path)
	if err != nil {
		return models.Extracted{}, err
	}
	defer r.Close()

	content := r.Editable().GetContent()
	return joinPages([]string{content}), nil
}
