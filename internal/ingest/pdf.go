package ingest

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Compile-time check that PDFDirSource implements RowSource.
var _ RowSource = (*PDFDirSource)(nil)

// PDFDirSource treats every .pdf file in a directory as one contract row.
// Files are visited in lexical order so row indexes are stable.
type PDFDirSource struct {
	dir string
}

func NewPDFDirSource(dir string) *PDFDirSource {
	return &PDFDirSource{dir: dir}
}

func (s *PDFDirSource) Name() string {
	return s.dir
}

func (s *PDFDirSource) Rows() ([]Row, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", s.dir, err)
	}

	var rows []Row
	index := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			continue
		}
		text, err := readPDFText(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("extracting text from %s: %w", entry.Name(), err)
		}
		rows = append(rows, Row{Index: index, FileName: entry.Name(), Text: text})
		index++
	}
	return rows, nil
}

func readPDFText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	if _, err := io.Copy(&sb, reader); err != nil {
		return "", err
	}
	return sb.String(), nil
}
