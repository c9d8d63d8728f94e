// Package ingest loads contract documents from row sources, embeds them,
// and writes them into the vector store.
package ingest

import (
	"fmt"
	"strings"
)

// Row is one contract document from a source, identified by its position
// and originating file name.
type Row struct {
	Index    int
	FileName string
	Text     string
}

// RowSource yields contract rows for ingestion.
type RowSource interface {
	// Rows reads all rows from the source. Row order determines IDs, so
	// sources must be deterministic.
	Rows() ([]Row, error)

	// Name identifies the source in logs and errors (typically a path).
	Name() string
}

// DocumentID derives the stable store ID for a row: the row index plus a
// sanitized fragment of the file name. Re-ingesting the same source yields
// the same IDs.
func DocumentID(index int, fileName string) string {
	return fmt.Sprintf("doc_%d_%s", index, sanitizeIDFragment(fileName))
}

// sanitizeIDFragment keeps the first 30 characters of the name, replacing
// anything outside [A-Za-z0-9_-] with an underscore.
func sanitizeIDFragment(name string) string {
	if len(name) > 30 {
		name = name[:30]
	}
	var sb strings.Builder
	sb.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}
