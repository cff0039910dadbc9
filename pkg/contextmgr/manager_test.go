package contextmgr

import (
	"context"
	"io"
	"log/slog"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// axisEmbedder maps each known text to a fixed unit vector, so cosine
// similarity between texts is fully controlled by the test.
type axisEmbedder struct {
	vectors map[string][]float32
}

func (e *axisEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := e.vectors[t]
		if !ok {
			v = []float32{0, 0, 0, 1}
		}
		out[i] = v
	}
	return out, nil
}

func TestMemoryIndexRanksByScoreThenSeq(t *testing.T) {
	idx := NewMemoryIndex()
	err := idx.Insert(context.Background(), []Doc{
		{Seq: 0, Content: "far", Embedding: []float32{0, 1, 0}},
		{Seq: 1, Content: "tied-late", Embedding: []float32{1, 0, 0}},
		{Seq: 2, Content: "tied-early-no", Embedding: []float32{1, 0, 0}},
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	matches, err := idx.Query(context.Background(), []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("matches = %d, want 2", len(matches))
	}
	// Both exact matches score 1.0; the earlier-inserted doc must come first.
	if matches[0].Doc.Seq != 1 || matches[1].Doc.Seq != 2 {
		t.Errorf("tie broken wrong: seqs %d, %d", matches[0].Doc.Seq, matches[1].Doc.Seq)
	}
	if matches[0].Score != 1.0 {
		t.Errorf("top score = %f, want 1.0", matches[0].Score)
	}
}

func TestMemoryIndexQueryBounds(t *testing.T) {
	idx := NewMemoryIndex()
	_ = idx.Insert(context.Background(), []Doc{
		{Seq: 0, Embedding: []float32{1, 0}},
		{Seq: 1, Embedding: []float32{0, 1}},
	})

	matches, _ := idx.Query(context.Background(), []float32{1, 0}, 0)
	if len(matches) != 2 {
		t.Errorf("k=0 returned %d matches, want all 2", len(matches))
	}
	matches, _ = idx.Query(context.Background(), []float32{1, 0}, 1)
	if len(matches) != 1 {
		t.Errorf("k=1 returned %d matches", len(matches))
	}
}

func TestSimilarFiltersAndOrders(t *testing.T) {
	embedder := &axisEmbedder{vectors: map[string][]float32{
		"tariff history":  {1, 0, 0, 0},
		"grid economics":  {0, 1, 0, 0},
		"unrelated prose": {0, 0, 1, 0},
		"Tariff report":   {1, 0, 0, 0},
		"Grid report":     {0, 0.9, 0.1, 0},
	}}
	mgr := NewManager(embedder, NewMemoryIndex(), Policy{
		TopK:                5,
		SimilarityThreshold: 0.5,
		ChunkSize:           10_000, // keep each AddWritten a single chunk
	}, testLogger())

	for _, content := range []string{"tariff history", "grid economics", "unrelated prose"} {
		if err := mgr.AddWritten(context.Background(), content); err != nil {
			t.Fatalf("AddWritten(%q): %v", content, err)
		}
	}

	got, err := mgr.Similar(context.Background(), []string{"Grid report", "Tariff report"}, 5)
	if err != nil {
		t.Fatalf("Similar: %v", err)
	}
	// Both titles match one indexed chunk each; "unrelated prose" falls
	// below the threshold. Output follows insertion order, not title order.
	want := []string{"tariff history", "grid economics"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Similar = %v, want %v", got, want)
	}
}

func TestSimilarDeduplicatesAcrossTitles(t *testing.T) {
	embedder := &axisEmbedder{vectors: map[string][]float32{
		"shared chunk": {1, 0},
		"title one":    {1, 0},
		"title two":    {1, 0},
	}}
	mgr := NewManager(embedder, NewMemoryIndex(), Policy{
		TopK:                5,
		SimilarityThreshold: 0.5,
		ChunkSize:           10_000,
	}, testLogger())

	if err := mgr.AddWritten(context.Background(), "shared chunk"); err != nil {
		t.Fatalf("AddWritten: %v", err)
	}

	got, err := mgr.Similar(context.Background(), []string{"title one", "title two"}, 5)
	if err != nil {
		t.Fatalf("Similar: %v", err)
	}
	if len(got) != 1 || got[0] != "shared chunk" {
		t.Errorf("Similar = %v, want the shared chunk exactly once", got)
	}
}

func TestSimilarEmptyInputs(t *testing.T) {
	mgr := NewManager(&axisEmbedder{}, NewMemoryIndex(), Policy{TopK: 3}, testLogger())

	if got, err := mgr.Similar(context.Background(), nil, 3); err != nil || got != nil {
		t.Errorf("Similar(nil) = (%v, %v), want (nil, nil)", got, err)
	}
	if err := mgr.AddWritten(context.Background(), ""); err != nil {
		t.Errorf("AddWritten(\"\") error = %v", err)
	}
}
