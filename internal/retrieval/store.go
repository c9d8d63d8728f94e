package retrieval

import (
	"container/heap"
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"time"
)

// Compile-time check that SQLiteStore implements VectorStore.
var _ VectorStore = (*SQLiteStore)(nil)

// SQLiteStore provides vector storage and brute-force cosine distance search
// over a single named collection backed by SQLite.
//
// When the document count exceeds ~100K and query latency becomes
// noticeable, consider an ANN-backed implementation behind the same
// VectorStore interface.
type SQLiteStore struct {
	db         *sql.DB
	collection string
}

// NewSQLiteStore wraps an existing *sql.DB for vector operations on the
// named collection. The collections/documents tables must already exist
// (created via migrations).
func NewSQLiteStore(db *sql.DB, collection string) *SQLiteStore {
	return &SQLiteStore{db: db, collection: collection}
}

// Collection returns the collection name this store operates on.
func (s *SQLiteStore) Collection() string {
	return s.collection
}

// EnsureCollection creates the collection row if missing. Idempotent.
func (s *SQLiteStore) EnsureCollection() error {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO collections (name, created_at) VALUES (?, ?)`,
		s.collection, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("ensuring collection %q: %w", s.collection, err)
	}
	return nil
}

// collectionID resolves the collection name to its row ID.
// Returns (0, false, nil) when the collection does not exist.
func (s *SQLiteStore) collectionID() (int64, bool, error) {
	var id int64
	err := s.db.QueryRow(`SELECT id FROM collections WHERE name = ?`, s.collection).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("resolving collection %q: %w", s.collection, err)
	}
	return id, true, nil
}

// Upsert inserts documents into the collection, replacing rows that share an ID.
func (s *SQLiteStore) Upsert(ctx context.Context, docs []Document) error {
	if err := s.EnsureCollection(); err != nil {
		return err
	}
	cid, _, err := s.collectionID()
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning upsert transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO documents (collection_id, id, file_name, row_index, body, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection_id, id) DO UPDATE SET
			file_name = excluded.file_name,
			row_index = excluded.row_index,
			body = excluded.body,
			embedding = excluded.embedding`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing upsert statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, d := range docs {
		blob := encodeFloat32s(d.Embedding)
		if _, err := stmt.ExecContext(ctx, cid, d.ID, d.FileName, d.RowIndex, d.Text, blob, now); err != nil {
			tx.Rollback()
			return fmt.Errorf("upserting document %s: %w", d.ID, err)
		}
	}

	return tx.Commit()
}

// idDistance holds only the ID and distance during the scan phase of Query.
// Full document bodies are fetched only for the top-K winners.
type idDistance struct {
	ID       string
	Distance float32
}

// Query performs brute-force cosine distance search over the collection.
func (s *SQLiteStore) Query(ctx context.Context, vector []float32, k int) ([]RetrievedContext, error) {
	if k <= 0 {
		return nil, nil
	}
	cid, ok, err := s.collectionID()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	queryNorm := norm(vector)
	if queryNorm == 0 {
		return nil, nil
	}

	// Phase 1: scan only id + embedding to find the k closest candidates.
	rows, err := s.db.QueryContext(ctx, `SELECT id, embedding FROM documents WHERE collection_id = ?`, cid)
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	h := &idDistanceHeap{}
	heap.Init(h)

	// Reusable buffer for decoding embeddings to avoid per-row allocations.
	var buf []float32

	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		buf, err = decodeFloat32sInto(buf, blob)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding for %s: %w", id, err)
		}

		d := cosineDistance(vector, buf, queryNorm)
		if h.Len() < k {
			heap.Push(h, idDistance{ID: id, Distance: d})
		} else if d < (*h)[0].Distance {
			(*h)[0] = idDistance{ID: id, Distance: d}
			heap.Fix(h, 0)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	if h.Len() == 0 {
		return nil, nil
	}

	// Phase 2: fetch full documents only for the winning IDs.
	topIDs := make([]string, h.Len())
	distances := make(map[string]float32, h.Len())
	for i := len(topIDs) - 1; i >= 0; i-- {
		item := heap.Pop(h).(idDistance)
		topIDs[i] = item.ID
		distances[item.ID] = item.Distance
	}

	queryArgs := make([]interface{}, 0, len(topIDs)+1)
	queryArgs = append(queryArgs, cid)
	for _, id := range topIDs {
		queryArgs = append(queryArgs, id)
	}
	fullQuery := `SELECT id, file_name, row_index, body FROM documents
		WHERE collection_id = ? AND id IN (?` + strings.Repeat(",?", len(topIDs)-1) + `)`

	fullRows, err := s.db.QueryContext(ctx, fullQuery, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("fetching top-k documents: %w", err)
	}
	defer fullRows.Close()

	var results []RetrievedContext
	for fullRows.Next() {
		var r RetrievedContext
		if err := fullRows.Scan(&r.ID, &r.FileName, &r.RowIndex, &r.Text); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		r.Distance = distances[r.ID]
		results = append(results, r)
	}
	if err := fullRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	// Sort results closest-first (IN query doesn't preserve order).
	sortByDistance(results)

	return results, nil
}

// sortByDistance sorts results by Distance ascending. Used for small slices (top-k).
func sortByDistance(results []RetrievedContext) {
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j].Distance < results[j-1].Distance; j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
}

// Count returns the number of documents in the collection.
// A collection that has never been created counts as empty.
func (s *SQLiteStore) Count() (int, error) {
	cid, ok, err := s.collectionID()
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	var count int
	err = s.db.QueryRow(`SELECT COUNT(*) FROM documents WHERE collection_id = ?`, cid).Scan(&count)
	return count, err
}

// Reset drops all documents and the collection row, then recreates the
// collection empty. All stored embeddings are lost.
func (s *SQLiteStore) Reset() error {
	cid, ok, err := s.collectionID()
	if err != nil {
		return err
	}
	if ok {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning reset transaction: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM documents WHERE collection_id = ?`, cid); err != nil {
			tx.Rollback()
			return fmt.Errorf("deleting documents: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM collections WHERE id = ?`, cid); err != nil {
			tx.Rollback()
			return fmt.Errorf("deleting collection: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing reset: %w", err)
		}
	}
	return s.EnsureCollection()
}

// encodeFloat32s serializes a float32 slice to little-endian bytes.
func encodeFloat32s(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeFloat32s deserializes little-endian bytes into a new float32 slice.
// Returns an error if the byte slice length is not a multiple of 4 (indicates data corruption).
func decodeFloat32s(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("byte slice length %d is not a multiple of 4", len(b))
	}
	n := len(b) / 4
	v := make([]float32, n)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

// decodeFloat32sInto decodes little-endian bytes into the provided buffer,
// reusing it to avoid per-row allocations during query scans.
func decodeFloat32sInto(buf []float32, b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("byte slice length %d is not a multiple of 4", len(b))
	}
	n := len(b) / 4
	if cap(buf) < n {
		buf = make([]float32, n)
	} else {
		buf = buf[:n]
	}
	for i := range buf {
		buf[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return buf, nil
}

// norm returns the L2 norm of a vector.
func norm(v []float32) float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return float32(math.Sqrt(sum))
}

// cosineDistance computes 1 - dot(a,b)/(aNorm*bNorm), clamped at zero.
// aNorm is the precomputed L2 norm of vector a. Mismatched lengths or a
// zero-norm b yield a neutral distance of 1.
func cosineDistance(a, b []float32, aNorm float32) float32 {
	if len(a) != len(b) {
		return 1
	}
	var dot float64
	var bNormSq float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		bNormSq += float64(b[i]) * float64(b[i])
	}
	bNorm := math.Sqrt(bNormSq)
	if bNorm == 0 {
		return 1
	}
	d := 1 - float32(dot/(float64(aNorm)*bNorm))
	if d < 0 {
		return 0
	}
	return d
}

// idDistanceHeap is a max-heap of idDistance ordered by Distance.
// Used during the scan phase of Query to track the k closest candidates:
// the root is the farthest of the kept set and is evicted first.
type idDistanceHeap []idDistance

func (h idDistanceHeap) Len() int            { return len(h) }
func (h idDistanceHeap) Less(i, j int) bool  { return h[i].Distance > h[j].Distance }
func (h idDistanceHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *idDistanceHeap) Push(x interface{}) { *h = append(*h, x.(idDistance)) }
func (h *idDistanceHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
