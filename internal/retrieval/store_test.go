package retrieval

import (
	"context"
	"math"
	"testing"

	"github.com/pactex/pactex/internal/storage"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("storage.Open(:memory:): %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s := NewSQLiteStore(db.DB(), "contracts_test")
	if err := s.EnsureCollection(); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}
	return s
}

// makeTestVector returns a unit vector along the given axis in dims dimensions.
func makeTestVector(dims, axis int) []float32 {
	v := make([]float32, dims)
	v[axis] = 1
	return v
}

func mustUpsert(t *testing.T, s *SQLiteStore, docs []Document) {
	t.Helper()
	if err := s.Upsert(context.Background(), docs); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
}

func TestUpsertAndCount(t *testing.T) {
	s := openTestStore(t)

	mustUpsert(t, s, []Document{
		{ID: "doc_0_a", FileName: "a.txt", RowIndex: 0, Text: "alpha", Embedding: makeTestVector(4, 0)},
		{ID: "doc_1_b", FileName: "b.txt", RowIndex: 1, Text: "beta", Embedding: makeTestVector(4, 1)},
	})

	count, err := s.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 2 {
		t.Errorf("Count = %d, want 2", count)
	}
}

// TestUpsertReplacesExisting verifies that re-ingesting a document with the
// same ID overwrites rather than duplicates.
func TestUpsertReplacesExisting(t *testing.T) {
	s := openTestStore(t)

	mustUpsert(t, s, []Document{
		{ID: "doc_0_a", FileName: "a.txt", RowIndex: 0, Text: "old text", Embedding: makeTestVector(4, 0)},
	})
	mustUpsert(t, s, []Document{
		{ID: "doc_0_a", FileName: "a.txt", RowIndex: 0, Text: "new text", Embedding: makeTestVector(4, 0)},
	})

	count, err := s.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 1 {
		t.Fatalf("Count = %d, want 1", count)
	}

	results, err := s.Query(context.Background(), makeTestVector(4, 0), 1)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 1 || results[0].Text != "new text" {
		t.Errorf("results = %+v, want single doc with updated text", results)
	}
}

// TestQueryOrdering verifies results come back closest-first by cosine distance.
func TestQueryOrdering(t *testing.T) {
	s := openTestStore(t)

	mustUpsert(t, s, []Document{
		{ID: "doc_0_far", FileName: "far.txt", RowIndex: 0, Text: "far", Embedding: []float32{0, 1, 0, 0}},
		{ID: "doc_1_near", FileName: "near.txt", RowIndex: 1, Text: "near", Embedding: []float32{1, 0.1, 0, 0}},
		{ID: "doc_2_exact", FileName: "exact.txt", RowIndex: 2, Text: "exact", Embedding: []float32{1, 0, 0, 0}},
	})

	results, err := s.Query(context.Background(), []float32{1, 0, 0, 0}, 3)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}

	wantOrder := []string{"doc_2_exact", "doc_1_near", "doc_0_far"}
	for i, want := range wantOrder {
		if results[i].ID != want {
			t.Errorf("results[%d].ID = %q, want %q", i, results[i].ID, want)
		}
	}
	for i := 1; i < len(results); i++ {
		if results[i].Distance < results[i-1].Distance {
			t.Errorf("distances not ascending: %v then %v", results[i-1].Distance, results[i].Distance)
		}
	}
	if results[0].Distance > 1e-5 {
		t.Errorf("exact match distance = %v, want ~0", results[0].Distance)
	}
}

// TestQueryClampsK asks for more results than stored documents.
func TestQueryClampsK(t *testing.T) {
	s := openTestStore(t)

	mustUpsert(t, s, []Document{
		{ID: "doc_0_a", FileName: "a.txt", RowIndex: 0, Text: "a", Embedding: makeTestVector(3, 0)},
		{ID: "doc_1_b", FileName: "b.txt", RowIndex: 1, Text: "b", Embedding: makeTestVector(3, 1)},
		{ID: "doc_2_c", FileName: "c.txt", RowIndex: 2, Text: "c", Embedding: makeTestVector(3, 2)},
	})

	results, err := s.Query(context.Background(), makeTestVector(3, 0), 10)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("got %d results, want 3 (clamped to document count)", len(results))
	}
}

// TestQueryEmptyCollection verifies an empty collection yields an empty
// result without error.
func TestQueryEmptyCollection(t *testing.T) {
	s := openTestStore(t)

	results, err := s.Query(context.Background(), makeTestVector(4, 0), 5)
	if err != nil {
		t.Fatalf("Query on empty collection: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results, want 0", len(results))
	}
}

func TestQueryZeroK(t *testing.T) {
	s := openTestStore(t)

	mustUpsert(t, s, []Document{
		{ID: "doc_0_a", FileName: "a.txt", RowIndex: 0, Text: "a", Embedding: makeTestVector(3, 0)},
	})

	results, err := s.Query(context.Background(), makeTestVector(3, 0), 0)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if results != nil {
		t.Errorf("got %v, want nil for k=0", results)
	}
}

func TestDistanceNonNegative(t *testing.T) {
	s := openTestStore(t)

	mustUpsert(t, s, []Document{
		{ID: "doc_0_opp", FileName: "opp.txt", RowIndex: 0, Text: "opposite", Embedding: []float32{-1, 0}},
	})

	results, err := s.Query(context.Background(), []float32{1, 0}, 1)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Distance < 0 {
		t.Errorf("Distance = %v, want non-negative", results[0].Distance)
	}
	if math.Abs(float64(results[0].Distance)-2) > 1e-5 {
		t.Errorf("Distance = %v, want 2 for opposite vectors", results[0].Distance)
	}
}

func TestReset(t *testing.T) {
	s := openTestStore(t)

	mustUpsert(t, s, []Document{
		{ID: "doc_0_a", FileName: "a.txt", RowIndex: 0, Text: "a", Embedding: makeTestVector(3, 0)},
		{ID: "doc_1_b", FileName: "b.txt", RowIndex: 1, Text: "b", Embedding: makeTestVector(3, 1)},
	})

	if err := s.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	count, err := s.Count()
	if err != nil {
		t.Fatalf("Count after reset: %v", err)
	}
	if count != 0 {
		t.Errorf("Count = %d after reset, want 0", count)
	}

	// Collection is usable again after reset.
	mustUpsert(t, s, []Document{
		{ID: "doc_0_c", FileName: "c.txt", RowIndex: 0, Text: "c", Embedding: makeTestVector(3, 2)},
	})
	count, err = s.Count()
	if err != nil {
		t.Fatalf("Count after re-upsert: %v", err)
	}
	if count != 1 {
		t.Errorf("Count = %d, want 1", count)
	}
}

// TestCountMissingCollection verifies a never-created collection counts as empty.
func TestCountMissingCollection(t *testing.T) {
	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s := NewSQLiteStore(db.DB(), "never_created")
	count, err := s.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 0 {
		t.Errorf("Count = %d, want 0", count)
	}
}

func TestCollectionName(t *testing.T) {
	s := openTestStore(t)
	if got := s.Collection(); got != "contracts_test" {
		t.Errorf("Collection() = %q, want contracts_test", got)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := []float32{0.1, -2.5, 3.75, 0}
	out, err := decodeFloat32s(encodeFloat32s(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], in[i])
		}
	}
}

func TestDecodeCorruptBlob(t *testing.T) {
	if _, err := decodeFloat32s([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for blob length not a multiple of 4")
	}
}
