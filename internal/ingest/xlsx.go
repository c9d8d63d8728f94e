package ingest

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Compile-time check that XLSXSource implements RowSource.
var _ RowSource = (*XLSXSource)(nil)

// XLSXSource reads contract rows from the first sheet of a spreadsheet.
// The header row must contain "Text" and "File Name" columns.
type XLSXSource struct {
	path string
}

func NewXLSXSource(path string) *XLSXSource {
	return &XLSXSource{path: path}
}

func (s *XLSXSource) Name() string {
	return s.path
}

func (s *XLSXSource) Rows() ([]Row, error) {
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("opening spreadsheet %s: %w", s.path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("spreadsheet %s has no sheets", s.path)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("spreadsheet %s is empty", s.path)
	}

	textCol, fileCol := -1, -1
	for i, header := range rows[0] {
		switch strings.TrimSpace(header) {
		case "Text":
			textCol = i
		case "File Name":
			fileCol = i
		}
	}
	if textCol < 0 || fileCol < 0 {
		return nil, fmt.Errorf("spreadsheet %s must have 'Text' and 'File Name' columns", s.path)
	}

	cell := func(row []string, col int) string {
		if col < len(row) {
			return row[col]
		}
		return ""
	}

	out := make([]Row, 0, len(rows)-1)
	for i, row := range rows[1:] {
		out = append(out, Row{
			Index:    i,
			FileName: cell(row, fileCol),
			Text:     cell(row, textCol),
		})
	}
	return out, nil
}
