package contextmgr

import (
	"context"
	"math"
	"sort"
	"sync"
)

// Doc is one indexed chunk of previously written content. Seq records
// insertion order and breaks score ties deterministically: the
// earliest-written chunk wins.
type Doc struct {
	Seq       int
	Content   string
	Embedding []float32
}

// Match is one nearest-neighbour result.
type Match struct {
	Doc   Doc
	Score float64 // cosine similarity in [-1, 1]
}

// VectorIndex stores embedded chunks for one workflow run.
type VectorIndex interface {
	Insert(ctx context.Context, docs []Doc) error
	Query(ctx context.Context, embedding []float32, k int) ([]Match, error)
}

// MemoryIndex is a process-local cosine-similarity index. It backs runs
// without a database and all tests.
type MemoryIndex struct {
	mu   sync.RWMutex
	docs []Doc
}

func NewMemoryIndex() *MemoryIndex { return &MemoryIndex{} }

func (m *MemoryIndex) Insert(_ context.Context, docs []Doc) error {
	m.mu.Lock()
	m.docs = append(m.docs, docs...)
	m.mu.Unlock()
	return nil
}

func (m *MemoryIndex) Query(_ context.Context, embedding []float32, k int) ([]Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matches := make([]Match, 0, len(m.docs))
	for _, d := range m.docs {
		matches = append(matches, Match{Doc: d, Score: cosine(embedding, d.Embedding)})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Doc.Seq < matches[j].Doc.Seq
	})
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
