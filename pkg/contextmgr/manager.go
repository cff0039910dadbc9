package contextmgr

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/tmc/langchaingo/textsplitter"
)

// Policy is the numeric behavior of the manager. Threshold and K come from
// configuration, never hardcoded at call sites.
type Policy struct {
	TopK                int
	SimilarityThreshold float64
	ChunkSize           int
	ChunkOverlap        int
}

// Manager owns the per-run overlap index. AddWritten is called after each
// draft is produced; Similar is called before each draft is written.
type Manager struct {
	embedder Embedder
	index    VectorIndex
	splitter textsplitter.TextSplitter
	policy   Policy
	logger   *slog.Logger

	mu  sync.Mutex
	seq int
}

func NewManager(embedder Embedder, index VectorIndex, policy Policy, logger *slog.Logger) *Manager {
	if policy.TopK <= 0 {
		policy.TopK = 10
	}
	if policy.ChunkSize <= 0 {
		policy.ChunkSize = 1000
	}
	return &Manager{
		embedder: embedder,
		index:    index,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(policy.ChunkSize),
			textsplitter.WithChunkOverlap(policy.ChunkOverlap),
		),
		policy: policy,
		logger: logger,
	}
}

// AddWritten chunks and indexes a finished piece of content.
func (m *Manager) AddWritten(ctx context.Context, content string) error {
	if content == "" {
		return nil
	}
	chunks, err := m.splitter.SplitText(content)
	if err != nil {
		return fmt.Errorf("failed to split content: %w", err)
	}
	embeddings, err := m.embedder.EmbedTexts(ctx, chunks)
	if err != nil {
		return fmt.Errorf("failed to embed content: %w", err)
	}

	m.mu.Lock()
	docs := make([]Doc, len(chunks))
	for i, chunk := range chunks {
		docs[i] = Doc{Seq: m.seq, Content: chunk, Embedding: embeddings[i]}
		m.seq++
	}
	m.mu.Unlock()

	if err := m.index.Insert(ctx, docs); err != nil {
		return fmt.Errorf("failed to index content: %w", err)
	}
	m.logger.Debug("indexed written content", "chunks", len(docs))
	return nil
}

// Similar returns up to k previously written fragments that overlap the
// candidate titles, deduplicated across titles, ordered by insertion
// sequence. Fragments below the similarity threshold are excluded. k <= 0
// uses the configured top-k.
func (m *Manager) Similar(ctx context.Context, candidateTitles []string, k int) ([]string, error) {
	if k <= 0 {
		k = m.policy.TopK
	}
	if len(candidateTitles) == 0 {
		return nil, nil
	}

	embeddings, err := m.embedder.EmbedTexts(ctx, candidateTitles)
	if err != nil {
		return nil, fmt.Errorf("failed to embed candidate titles: %w", err)
	}

	bySeq := make(map[int]Doc)
	for i := range candidateTitles {
		matches, err := m.index.Query(ctx, embeddings[i], k)
		if err != nil {
			return nil, fmt.Errorf("overlap query failed: %w", err)
		}
		for _, match := range matches {
			if match.Score < m.policy.SimilarityThreshold {
				continue
			}
			bySeq[match.Doc.Seq] = match.Doc
		}
	}

	// Insertion order keeps the overlap list stable across runs.
	seqs := make([]int, 0, len(bySeq))
	for seq := range bySeq {
		seqs = append(seqs, seq)
	}
	sort.Ints(seqs)
	if len(seqs) > k {
		seqs = seqs[:k]
	}

	out := make([]string, 0, len(seqs))
	for _, seq := range seqs {
		out = append(out, bySeq[seq].Content)
	}
	return out, nil
}
