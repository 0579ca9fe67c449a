package bolt

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nichesupply/listingsearch/internal/db"
	"github.com/nichesupply/listingsearch/internal/domain/filter"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(Config{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func testIndexDef(dim int) *db.IndexDefinition {
	return &db.IndexDefinition{
		Name:     "listings-idx",
		Prefixes: []string{"search:listings:"},
		Fields: []db.IndexField{
			{Name: db.FieldMetaKeys, Type: db.IndexFieldTag, TagSeparator: ",", TagCaseSensitive: true},
			{Name: db.FieldMetaPairs, Type: db.IndexFieldTag, TagSeparator: ",", TagCaseSensitive: true},
			{
				Name: db.FieldVector, Type: db.IndexFieldVector,
				VectorAlgo: db.VectorHNSW, VectorDim: dim,
				VectorDistance: db.DistanceCosine,
			},
		},
	}
}

// putDoc writes a listing hash the way the repository layer does.
func putDoc(t *testing.T, s *Store, id, text string, vec []float32, meta map[string]string) {
	t.Helper()
	keys := make([]string, 0, len(meta))
	pairs := make([]string, 0, len(meta))
	for k, canon := range meta {
		keys = append(keys, db.KeyToken(k))
		pairs = append(pairs, db.PairToken(k, canon))
	}
	fields := map[string]string{
		db.FieldText:      text,
		db.FieldVector:    string(db.VectorToBytes(vec)),
		db.FieldMetaKeys:  db.JoinTags(keys),
		db.FieldMetaPairs: db.JoinTags(pairs),
	}
	if err := s.HSet(context.Background(), "search:listings:"+id, fields); err != nil {
		t.Fatalf("failed to put doc %s: %v", id, err)
	}
}

// --- hash.go tests ---

func TestHSet_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	fields := map[string]string{"__text": "winter tires", "__meta": `{"pk":1}`}
	if err := s.HSet(ctx, "search:listings:1", fields); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.HGetAll(ctx, "search:listings:1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["__text"] != "winter tires" || got["__meta"] != `{"pk":1}` {
		t.Errorf("unexpected fields: %v", got)
	}
}

func TestHSet_MergesFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.HSet(ctx, "k", map[string]string{"a": "1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.HSet(ctx, "k", map[string]string{"b": "2"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.HGetAll(ctx, "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["a"] != "1" || got["b"] != "2" {
		t.Errorf("expected merged fields, got %v", got)
	}
}

func TestHGetAll_MissingKey(t *testing.T) {
	s := newTestStore(t)

	got, err := s.HGetAll(context.Background(), "absent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty map, got %v", got)
	}
}

func TestDel_RemovesDocument(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.HSet(ctx, "k", map[string]string{"a": "1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Del(ctx, "k"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.HGetAll(ctx, "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty map after delete, got %v", got)
	}
}

func TestDel_MissingKeyIsNoOp(t *testing.T) {
	s := newTestStore(t)
	if err := s.Del(context.Background(), "never-existed"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestScan_Patterns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, key := range []string{"a:1", "a:2", "b:1"} {
		if err := s.HSet(ctx, key, map[string]string{"f": "v"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	keys, err := s.Scan(ctx, "a:*")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("expected 2 keys for a:*, got %v", keys)
	}

	keys, err = s.Scan(ctx, "a:1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 1 || keys[0] != "a:1" {
		t.Errorf("expected exact match a:1, got %v", keys)
	}

	if _, err := s.Scan(ctx, "a:*:b"); err == nil {
		t.Error("expected error for inner wildcard")
	}
	if _, err := s.Scan(ctx, "a:?"); err == nil {
		t.Error("expected error for unsupported glob")
	}
}

// --- kv.go tests ---

func TestKV_SetGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "mykey", []byte("value")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := s.Get(ctx, "mykey")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "value" {
		t.Errorf("unexpected data: %s", data)
	}
}

func TestKV_GetMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "absent")
	if !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestKV_TTL(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SetWithTTL(ctx, "fresh", []byte("v"), time.Hour); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Get(ctx, "fresh"); err != nil {
		t.Errorf("fresh entry should be readable: %v", err)
	}

	// Negative TTL writes an already-expired entry.
	if err := s.SetWithTTL(ctx, "stale", []byte("v"), -time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Get(ctx, "stale"); !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound for expired entry, got %v", err)
	}
}

// --- index.go tests ---

func TestIndexLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	exists, err := s.IndexExists(ctx, "listings-idx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exists {
		t.Fatal("index should not exist yet")
	}

	if err := s.CreateIndex(ctx, testIndexDef(2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	exists, err = s.IndexExists(ctx, "listings-idx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !exists {
		t.Fatal("index should exist")
	}

	if err := s.CreateIndex(ctx, testIndexDef(2)); !errors.Is(err, db.ErrIndexExists) {
		t.Errorf("expected ErrIndexExists, got %v", err)
	}

	if err := s.DropIndex(ctx, "listings-idx"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.DropIndex(ctx, "listings-idx"); !errors.Is(err, db.ErrIndexNotFound) {
		t.Errorf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestCreateIndex_RejectsNonCosine(t *testing.T) {
	s := newTestStore(t)

	def := testIndexDef(2)
	def.Fields[2].VectorDistance = db.DistanceL2
	if err := s.CreateIndex(context.Background(), def); err == nil {
		t.Error("expected error for non-cosine metric")
	}
}

// --- search.go tests ---

func seedListings(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	if err := s.CreateIndex(ctx, testIndexDef(2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Distances from query [1,0]: doc 1 -> 0, doc 2 -> 0.4, doc 3 -> 1.
	putDoc(t, s, "1", "winter tires", []float32{1, 0}, map[string]string{"category": "s:parts"})
	putDoc(t, s, "2", "summer tires", []float32{0.6, 0.8}, map[string]string{"category": "s:parts"})
	putDoc(t, s, "3", "office chair", []float32{0, 1}, map[string]string{"category": "s:furniture"})
}

func TestSearchKNN_OrdersByDistance(t *testing.T) {
	s := newTestStore(t)
	seedListings(t, s)

	result, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName: "listings-idx",
		Vector:    []float32{1, 0},
		K:         10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(result.Entries))
	}

	wantKeys := []string{"search:listings:1", "search:listings:2", "search:listings:3"}
	for i, want := range wantKeys {
		if result.Entries[i].Key != want {
			t.Errorf("entry %d: expected %s, got %s", i, want, result.Entries[i].Key)
		}
	}
	if d := result.Entries[0].Distance; d > 1e-6 {
		t.Errorf("expected ~0 distance for identical vector, got %f", d)
	}
	if d := result.Entries[1].Distance; d < 0.39 || d > 0.41 {
		t.Errorf("expected ~0.4 distance, got %f", d)
	}
}

func TestSearchKNN_TruncatesToK(t *testing.T) {
	s := newTestStore(t)
	seedListings(t, s)

	result, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName: "listings-idx",
		Vector:    []float32{1, 0},
		K:         2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(result.Entries))
	}
	if result.Entries[1].Key != "search:listings:2" {
		t.Errorf("expected second-nearest doc, got %s", result.Entries[1].Key)
	}
}

func TestSearchKNN_FilterEq(t *testing.T) {
	s := newTestStore(t)
	seedListings(t, s)

	f, err := filter.New(map[string]any{"category": "furniture"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName: "listings-idx",
		Filters:   f,
		Vector:    []float32{1, 0},
		K:         10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Entries) != 1 || result.Entries[0].Key != "search:listings:3" {
		t.Errorf("expected only the furniture doc, got %v", result.Entries)
	}
}

func TestSearchKNN_FilterNe(t *testing.T) {
	s := newTestStore(t)
	seedListings(t, s)

	f, err := filter.New(nil, map[string]any{"category": "furniture"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName: "listings-idx",
		Filters:   f,
		Vector:    []float32{1, 0},
		K:         10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Eq and Ne on the same value partition the corpus.
	if len(result.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(result.Entries))
	}
	for _, e := range result.Entries {
		if e.Key == "search:listings:3" {
			t.Error("excluded doc leaked through ne filter")
		}
	}
}

func TestSearchKNN_NeExcludesDocsWithoutKey(t *testing.T) {
	s := newTestStore(t)
	seedListings(t, s)
	putDoc(t, s, "4", "no metadata", []float32{1, 0}, nil)

	f, err := filter.New(nil, map[string]any{"category": "furniture"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName: "listings-idx",
		Filters:   f,
		Vector:    []float32{1, 0},
		K:         10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, e := range result.Entries {
		if e.Key == "search:listings:4" {
			t.Error("doc without the key should not match ne filter")
		}
	}
}

func TestSearchKNN_TieBreakByKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.CreateIndex(ctx, testIndexDef(2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	putDoc(t, s, "b", "same", []float32{1, 0}, nil)
	putDoc(t, s, "a", "same", []float32{1, 0}, nil)

	result, err := s.SearchKNN(ctx, &db.KNNQuery{
		IndexName: "listings-idx",
		Vector:    []float32{1, 0},
		K:         10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Entries[0].Key != "search:listings:a" {
		t.Errorf("expected key-ordered ties, got %s first", result.Entries[0].Key)
	}
}

func TestSearchKNN_SkipsDimensionMismatch(t *testing.T) {
	s := newTestStore(t)
	seedListings(t, s)
	putDoc(t, s, "5", "bad vector", []float32{1, 0, 0}, nil)

	result, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName: "listings-idx",
		Vector:    []float32{1, 0},
		K:         10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, e := range result.Entries {
		if e.Key == "search:listings:5" {
			t.Error("mismatched-dimension doc should be skipped")
		}
	}
}

func TestSearchKNN_ReturnFields(t *testing.T) {
	s := newTestStore(t)
	seedListings(t, s)

	result, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName:    "listings-idx",
		Vector:       []float32{1, 0},
		K:            1,
		ReturnFields: []string{db.FieldText},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fields := result.Entries[0].Fields
	if fields[db.FieldText] != "winter tires" {
		t.Errorf("expected text field, got %v", fields)
	}
	if _, ok := fields[db.FieldVector]; ok {
		t.Error("vector blob should not be projected")
	}
}

func TestSearchKNN_UnknownIndex(t *testing.T) {
	s := newTestStore(t)

	_, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName: "missing-idx",
		Vector:    []float32{1, 0},
		K:         1,
	})
	if !errors.Is(err, db.ErrIndexNotFound) {
		t.Errorf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestSearchKNN_Validation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.SearchKNN(ctx, &db.KNNQuery{Vector: []float32{0.1}, K: 10})
	if err == nil {
		t.Error("expected error for empty index name")
	}

	_, err = s.SearchKNN(ctx, &db.KNNQuery{IndexName: "idx", K: 10})
	if err == nil {
		t.Error("expected error for empty vector")
	}

	_, err = s.SearchKNN(ctx, &db.KNNQuery{IndexName: "idx", Vector: []float32{0.1}, K: 0})
	if err == nil {
		t.Error("expected error for k=0")
	}
}

func TestSearchCount(t *testing.T) {
	s := newTestStore(t)
	seedListings(t, s)
	ctx := context.Background()

	count, err := s.SearchCount(ctx, "listings-idx", "*")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3, got %d", count)
	}

	if _, err := s.SearchCount(ctx, "listings-idx", "@field:{x}"); err == nil {
		t.Error("expected error for unsupported query")
	}
}

func TestSearchCount_CountsUpserts_Once(t *testing.T) {
	s := newTestStore(t)
	seedListings(t, s)
	ctx := context.Background()

	// Re-index the same listing; the count must not grow.
	putDoc(t, s, "1", "winter tires v2", []float32{0.9, 0.1}, map[string]string{"category": "s:parts"})

	count, err := s.SearchCount(ctx, "listings-idx", "*")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 after re-upsert, got %d", count)
	}

	got, err := s.HGetAll(ctx, "search:listings:1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[db.FieldText] != "winter tires v2" {
		t.Errorf("expected replaced text, got %q", got[db.FieldText])
	}
}

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, 2},
		{"zero norm", []float32{0, 0}, []float32{1, 0}, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := cosineDistance(tc.a, tc.b)
			if got < tc.want-1e-9 || got > tc.want+1e-9 {
				t.Errorf("cosineDistance(%v, %v) = %f, want %f", tc.a, tc.b, got, tc.want)
			}
		})
	}
}
