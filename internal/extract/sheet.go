package extract

import (
	"fmt"
	"strings"

	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"

	"document-qa/internal/models"
)

// Spreadsheets are treated as one "page" per sheet so citations can name
// the sheet position.

type xlsxExtractor struct{}

func (xlsxExtractor) Extract(path string) (models.Extracted, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return models.Extracted{}, err
	}

	sheets := make([]string, 0, len(f.Sheets))
	for _, sheet := range f.Sheets {
		var text strings.Builder
		fmt.Fprintf(&text, "Sheet: %s\n", sheet.Name)
		for _, row := range sheet.Rows {
			for _, cell := range row.Cells {
				text.WriteString(cell.String())
				text.WriteByte('\t')
			}
			text.WriteByte('\n')
		}
		sheets = append(sheets, text.String())
	}
	return joinPages(sheets), nil
}

type odsExtractor struct{}

func (odsExtractor) Extract(path string) (models.Extracted, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return models.Extracted{}, err
	}
	defer f.Close()

	var sheets []string
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			continue
		}
		var text strings.Builder
		fmt.Fprintf(&text, "Sheet: %s\n", sheetName)
		for _, row := range rows {
			for _, cell := range row {
				text.WriteString(cell)
				text.WriteByte('\t')
			}
			text.WriteByte('\n')
		}
		sheets = append(sheets, text.String())
	}
	return joinPages(sheets), nil
}
