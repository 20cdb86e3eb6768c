// Package extract turns corpus files into plain text plus a page map.
// Each supported format has its own extractor; the chunking and indexing
// layers only ever see the Extracted contract.
package extract

import (
	"fmt"
	"path/filepath"
	"strings"

	"document-qa/internal/models"
)

// Extractor converts one file into text and page boundaries.
type Extractor interface {
	Extract(path string) (models.Extracted, error)
}

// ForPath selects the extractor for a file by extension.
func ForPath(path string) (Extractor, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".pdf":
		return pdfExtractor{}, nil
	case ".docx":
		return docxExtractor{}, nil
	case ".xlsx":
		return xlsxExtractor{}, nil
	case ".ods":
		return odsExtractor{}, nil
	case ".md", ".markdown":
		return markdownExtractor{}, nil
	case ".txt":
		return textExtractor{}, nil
	default:
		return nil, fmt.Errorf("unsupported file format: %s", ext)
	}
}

// File extracts a single file using the extractor matching its extension.
func File(path string) (models.Extracted, error) {
	ex, err := ForPath(path)
	if err != nil {
		return models.Extracted{}, err
	}
	return ex.Extract(path)
}

// Supported reports whether the file's extension has an extractor.
func Supported(path string) bool {
	_, err := ForPath(path)
	return err == nil
}

// joinPages assembles per-page texts into one document text separated by
// newlines and records each page's byte range.
func joinPages(pageTexts []string) models.Extracted {
	var b strings.Builder
	pages := make([]models.PageSpan, 0, len(pageTexts))
	for i, text := range pageTexts {
		if i > 0 {
			b.WriteByte('\n')
		}
		start := b.Len()
		b.WriteString(text)
		pages = append(pages, models.PageSpan{Page: i + 1, Start: start, End: b.Len()})
	}
	return models.Extracted{Text: b.String(), Pages: pages}
}
