package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/SlyyCooper/agenai/pkg/config"
	"github.com/SlyyCooper/agenai/pkg/contextmgr"
	"github.com/SlyyCooper/agenai/pkg/providers"
	"github.com/SlyyCooper/agenai/pkg/research"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Factory builds one Workflow per research request. It holds the
// process-lifetime collaborators; everything per-run (visited set, cost,
// overlap index) is created fresh inside Run.
type Factory struct {
	Config     *config.Config
	Model      providers.Model
	Retrievers []providers.Retriever
	Scraper    providers.Scraper
	Embedder   contextmgr.Embedder
	Pool       *pgxpool.Pool // optional; enables the pgvector overlap index
	Publisher  Publisher
	Billing    Billing
	Logger     *slog.Logger
}

// Run executes one research request end to end, reporting to the sink. The
// terminal event (research_report or error) is emitted by the workflow. A
// nil logger falls back to the factory's; sessions pass one that streams
// records to the client.
func (f *Factory) Run(ctx context.Context, query research.Query, ownerID string, sink ProgressSink, logger *slog.Logger) (*ReportDocument, error) {
	if logger == nil {
		logger = f.Logger
	}
	if logger == nil {
		logger = slog.Default()
	}

	var mgr *contextmgr.Manager
	if f.Embedder != nil {
		index, err := f.newIndex(ctx)
		if err != nil {
			logger.Warn("vector index unavailable, drafting without overlap dedup", "error", err)
		} else {
			if pg, ok := index.(*contextmgr.PGVectorIndex); ok {
				defer func() {
					if err := pg.Drop(context.Background()); err != nil {
						logger.Warn("failed to drop per-run index table", "error", err)
					}
				}()
			}
			mgr = contextmgr.NewManager(f.Embedder, index, contextmgr.Policy{
				TopK:                f.Config.ContextTopK,
				SimilarityThreshold: f.Config.SimilarityThreshold,
				ChunkSize:           f.Config.ChunkSize,
				ChunkOverlap:        f.Config.ChunkOverlap,
			}, logger)
		}
	}

	w := New(Deps{
		Config:     f.Config,
		Model:      f.Model,
		Retrievers: f.Retrievers,
		Scraper:    f.Scraper,
		ContextMgr: mgr,
		Publisher:  f.Publisher,
		Billing:    f.Billing,
		Sink:       sink,
		Logger:     logger,
	})
	return w.Run(ctx, query, ownerID)
}

func (f *Factory) newIndex(ctx context.Context) (contextmgr.VectorIndex, error) {
	if f.Pool == nil {
		return contextmgr.NewMemoryIndex(), nil
	}
	table := fmt.Sprintf("run_overlap_%s", strings.ReplaceAll(uuid.New().String(), "-", ""))
	return contextmgr.NewPGVectorIndex(ctx, f.Pool, table, f.Config.EmbeddingDimension)
}
