package ragstore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
)

func TestSearch_EmptySessionSkipsIndex(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()

	// A session with zero chunks returns empty without touching the vector
	// index: dropping the vector table makes any index query fail loudly.
	if _, err := store.Insert(ctx, "ns", testChunk(uuid.NewString(), "doc", 0, []float32{1, 0})); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`DROP TABLE rag_vectors_ns`); err != nil {
		t.Fatal(err)
	}
	matches, err := store.Search(ctx, "ns", uuid.NewString(), []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("empty session should not query the index: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("expected no matches, got %d", len(matches))
	}
}

func TestSearch_UnknownNamespaceIsSoftMiss(t *testing.T) {
	store, _ := newTestStore(t)
	matches, err := store.Search(context.Background(), "nowhere", uuid.NewString(), []float32{1}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Errorf("expected no matches, got %d", len(matches))
	}
}

func TestSearch_QueryDimensionMismatch(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	if err := store.EnsureNamespace(ctx, "ns", 3); err != nil {
		t.Fatal(err)
	}
	_, err := store.Search(ctx, "ns", uuid.NewString(), []float32{1, 0}, 3)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestSearch_SessionIsolationUnderOverfetch(t *testing.T) {
	// 5 chunks for session A and 50 for unrelated sessions; the window
	// (topK=3 * factor=20 = 60) covers the whole namespace, so the result is
	// exactly A's 3 nearest and nothing from other sessions.
	store, _ := newTestStore(t, WithOverfetch(20, 500))
	ctx := context.Background()
	sessionA := uuid.NewString()

	// Session A's chunks: increasing angle from the query axis, so chunk 0 is
	// nearest, then 1, then 2.
	for i := 0; i < 5; i++ {
		emb := []float32{1, float32(i) * 0.2, 0, 0}
		if _, err := store.Insert(ctx, "ns", testChunk(sessionA, fmt.Sprintf("a%d", i), 0, emb)); err != nil {
			t.Fatal(err)
		}
	}
	// Unrelated sessions: 50 chunks, many closer to the query than any of A's.
	for i := 0; i < 50; i++ {
		emb := []float32{1, float32(i) * 0.001, 0, 0}
		if _, err := store.Insert(ctx, "ns", testChunk(uuid.NewString(), fmt.Sprintf("o%d", i), 0, emb)); err != nil {
			t.Fatal(err)
		}
	}

	matches, err := store.Search(ctx, "ns", sessionA, []float32{1, 0, 0, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(matches))
	}

	owned, err := store.ReadByIDs(ctx, "ns", []int64{matches[0].ChunkID, matches[1].ChunkID, matches[2].ChunkID})
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range owned {
		if c.SessionID != sessionA {
			t.Errorf("match leaked from session %s", c.SessionID)
		}
	}
	// ReadByIDs order is unspecified; re-fetch one by one to check ranking.
	wantDocs := []string{"a0", "a1", "a2"}
	for i, m := range matches {
		got, err := store.ReadByIDs(ctx, "ns", []int64{m.ChunkID})
		if err != nil {
			t.Fatal(err)
		}
		if got[0].DocKey != wantDocs[i] {
			t.Errorf("rank %d: expected %s, got %s", i, wantDocs[i], got[0].DocKey)
		}
	}
	for i := 1; i < len(matches); i++ {
		if matches[i-1].Distance > matches[i].Distance {
			t.Error("matches not in ascending distance order")
		}
	}
}

func TestSearch_ExactEmbeddingRanksFirst(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	session := uuid.NewString()

	embeddings := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0.5, 0.5, 0.7},
		{0.2, 0.9, 0.1},
	}
	ids := make([]int64, len(embeddings))
	for i, emb := range embeddings {
		id, err := store.Insert(ctx, "ns", testChunk(session, fmt.Sprintf("d%d", i), 0, emb))
		if err != nil {
			t.Fatal(err)
		}
		ids[i] = id
	}

	for i, emb := range embeddings {
		matches, err := store.Search(ctx, "ns", session, emb, 2)
		if err != nil {
			t.Fatal(err)
		}
		if len(matches) == 0 {
			t.Fatalf("query %d: no matches", i)
		}
		if matches[0].ChunkID != ids[i] {
			t.Errorf("query %d: expected chunk %d first, got %d", i, ids[i], matches[0].ChunkID)
		}
		if matches[0].Distance > 1e-6 {
			t.Errorf("query %d: expected ~0 distance, got %f", i, matches[0].Distance)
		}
	}
}

func TestSearch_BoundedRecall(t *testing.T) {
	// With factor 1 and topK 1 the window is a single global neighbor. A
	// foreign chunk sitting closer to the query than the session's own chunk
	// exhausts the window, so the session chunk is missed. A covering window
	// finds it: the over-fetch factor is an approximation parameter, not a
	// correctness guarantee.
	ctx := context.Background()
	session := uuid.NewString()

	seed := func(store *Store) {
		if _, err := store.Insert(ctx, "ns", testChunk(session, "mine", 0, []float32{1, 0.5, 0})); err != nil {
			t.Fatal(err)
		}
		if _, err := store.Insert(ctx, "ns", testChunk(uuid.NewString(), "theirs", 0, []float32{1, 0, 0})); err != nil {
			t.Fatal(err)
		}
	}

	narrow, _ := newTestStore(t, WithOverfetch(1, 500))
	seed(narrow)
	matches, err := narrow.Search(ctx, "ns", session, []float32{1, 0, 0}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Errorf("narrow window should miss the session chunk, got %d matches", len(matches))
	}

	wide, _ := newTestStore(t, WithOverfetch(10, 500))
	seed(wide)
	matches, err = wide.Search(ctx, "ns", session, []float32{1, 0, 0}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 {
		t.Fatalf("covering window should find the session chunk, got %d matches", len(matches))
	}
}

func TestNamespaces_NeverCrossContaminate(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	session := uuid.NewString()

	// Identical (session, docKey) in two namespaces of different width are
	// independent entries.
	idA, err := store.Insert(ctx, "ns_a", testChunk(session, "doc", 0, []float32{1, 0, 0}))
	if err != nil {
		t.Fatal(err)
	}
	chunkB := testChunk(session, "doc", 0, []float32{0, 1, 0, 0})
	chunkB.Content = "namespace b content"
	idB, err := store.Insert(ctx, "ns_b", chunkB)
	if err != nil {
		t.Fatal(err)
	}
	if idA != idB {
		// Both tables start their identity sequences independently; equal ids
		// across namespaces are expected and must not collide logically.
		t.Logf("ids differ across namespaces: %d vs %d", idA, idB)
	}

	matches, err := store.Search(ctx, "ns_a", session, []float32{1, 0, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match in ns_a, got %d", len(matches))
	}
	got, _ := store.ReadByIDs(ctx, "ns_a", []int64{matches[0].ChunkID})
	if got[0].Content == "namespace b content" {
		t.Error("ns_a search resolved to ns_b content")
	}

	// Deleting the document in one namespace leaves the other intact.
	if _, err := store.DeleteDocument(ctx, "ns_a", session, "doc"); err != nil {
		t.Fatal(err)
	}
	ok, err := store.Exists(ctx, "ns_b", session, "doc", chunkB.ContentHash)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("delete in ns_a removed ns_b's entry")
	}
}
