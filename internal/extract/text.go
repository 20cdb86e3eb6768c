package extract

import (
	"os"

	"document-qa/internal/models"
)

type textExtractor struct{}

func (textExtractor) Extract(path string) (models.Extracted, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Extracted{}, err
	}
	return joinPages([]string{string(data)}), nil
}
