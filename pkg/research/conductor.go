package research

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/SlyyCooper/agenai/pkg/providers"
)

// ConductorConfig bounds a single research pass.
type ConductorConfig struct {
	MaxIterations    int // sub-queries generated per pass
	MaxSearchResults int // per retriever, per sub-query
	MaxScrapeWorkers int
	MaxContextLength int // characters before the context is condensed
}

// Conductor runs the retrieval half of the pipeline for one query:
// sub-query generation, concurrent search across all retrievers,
// deduplicated scraping, and context condensation.
type Conductor struct {
	model      providers.Model
	retrievers []providers.Retriever
	scraper    providers.Scraper
	cost       *CostTracker
	cfg        ConductorConfig
	logger     *slog.Logger
}

func NewConductor(model providers.Model, retrievers []providers.Retriever, scraper providers.Scraper,
	cost *CostTracker, cfg ConductorConfig, logger *slog.Logger) *Conductor {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 3
	}
	if cfg.MaxSearchResults <= 0 {
		cfg.MaxSearchResults = 5
	}
	if cfg.MaxScrapeWorkers <= 0 {
		cfg.MaxScrapeWorkers = 4
	}
	return &Conductor{
		model:      model,
		retrievers: retrievers,
		scraper:    scraper,
		cost:       cost,
		cfg:        cfg,
		logger:     logger,
	}
}

// Conduct gathers a ResearchContext for the query. Individual retriever and
// scraper failures are logged and skipped; the only fatal errors are
// contract violations and context cancellation.
func (c *Conductor) Conduct(ctx context.Context, query Query, persona AgentPersona, visited *VisitedURLSet) (*ResearchContext, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	rc := &ResearchContext{}

	if query.SourceMode == SourceModeStatic {
		c.logger.Info("running static research over provided sources", "urls", len(query.SourceURLs))
		c.scrapeInto(ctx, rc, claim(visited, query.SourceURLs))
		return rc, nil
	}

	subQueries := c.generateSubQueries(ctx, query, persona)
	c.logger.Info("generated sub-queries", "count", len(subQueries), "queries", subQueries)

	for _, sq := range subQueries {
		if ctx.Err() != nil {
			return rc, ctx.Err()
		}
		urls := c.searchAll(ctx, sq, visited)
		c.logger.Info("sub-query search complete", "query", sq, "new_urls", len(urls))
		c.scrapeInto(ctx, rc, urls)
	}

	if rc.Len() == 0 {
		c.logger.Warn("research pass produced no content", "query", query.Text)
		return rc, nil
	}
	c.condense(ctx, query, rc)
	return rc, nil
}

// generateSubQueries asks the model for a JSON string list of search
// queries. The repair chain plus the raw-query fallback guarantee it never
// fails: worst case the original query is researched as-is.
func (c *Conductor) generateSubQueries(ctx context.Context, query Query, persona AgentPersona) []string {
	prompt := subQueriesPrompt(query.Text, c.cfg.MaxIterations)
	out, err := c.model.Complete(ctx, []providers.Message{
		{Role: providers.RoleSystem, Content: persona.RolePrompt},
		{Role: providers.RoleUser, Content: prompt},
	}, providers.CompleteOptions{Temperature: 0.7, JSONMode: true})
	if err != nil {
		c.logger.Warn("sub-query generation failed, falling back to raw query", "error", err)
		return []string{query.Text}
	}
	c.cost.Add(EstimateCost(prompt, out))

	queries, err := DecodeStringList(out)
	if err != nil {
		c.logger.Warn("sub-query output unrepairable, falling back to raw query", "error", err)
		return []string{query.Text}
	}

	cleaned := queries[:0]
	for _, q := range queries {
		if q = strings.TrimSpace(q); q != "" {
			cleaned = append(cleaned, q)
		}
	}
	if len(cleaned) == 0 {
		return []string{query.Text}
	}
	if len(cleaned) > c.cfg.MaxIterations {
		cleaned = cleaned[:c.cfg.MaxIterations]
	}
	return cleaned
}

// searchAll fans one sub-query out to every retriever concurrently and
// returns the URLs this worker claimed. A URL enters the visited set the
// moment it is selected, before scraping, so two workers can never scrape
// the same page.
func (c *Conductor) searchAll(ctx context.Context, subQuery string, visited *VisitedURLSet) []string {
	var mu sync.Mutex
	var candidates []providers.Source
	var wg sync.WaitGroup

	for _, r := range c.retrievers {
		wg.Add(1)
		go func(r providers.Retriever) {
			defer wg.Done()
			sources, err := r.Search(ctx, subQuery, c.cfg.MaxSearchResults)
			if err != nil {
				c.logger.Warn("retriever failed", "retriever", r.Name(), "query", subQuery, "error", err)
				return
			}
			mu.Lock()
			candidates = append(candidates, sources...)
			mu.Unlock()
		}(r)
	}
	wg.Wait()

	var claimed []string
	for _, s := range candidates {
		if s.URL == "" {
			continue
		}
		if visited.Add(s.URL) {
			claimed = append(claimed, s.URL)
		}
	}
	return claimed
}

func claim(visited *VisitedURLSet, urls []string) []string {
	var claimed []string
	for _, u := range urls {
		if u != "" && visited.Add(u) {
			claimed = append(claimed, u)
		}
	}
	return claimed
}

// scrapeInto fetches the claimed URLs on a bounded worker pool and appends
// successful fragments in a stable order. Failures drop the URL; there are
// no retries.
func (c *Conductor) scrapeInto(ctx context.Context, rc *ResearchContext, urls []string) {
	results := make([]Fragment, len(urls))
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, c.cfg.MaxScrapeWorkers)

	for i, u := range urls {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			text, err := c.scraper.Fetch(ctx, u)
			if err != nil {
				c.logger.Warn("scrape failed, dropping source", "url", u, "error", err)
				return
			}
			results[i] = Fragment{Content: text, SourceURL: u}
		}(i, u)
	}
	wg.Wait()

	for _, f := range results {
		if f.Content != "" {
			rc.Append(f)
		}
	}
}

// condense replaces an oversized context with a model-written summary that
// keeps facts and source attributions. On failure the raw context is kept.
func (c *Conductor) condense(ctx context.Context, query Query, rc *ResearchContext) {
	if c.cfg.MaxContextLength <= 0 || len(rc.Join()) <= c.cfg.MaxContextLength {
		return
	}
	joined := rc.Join()
	prompt := condensePrompt(query.Text, joined[:c.cfg.MaxContextLength])
	out, err := c.model.Complete(ctx, []providers.Message{
		{Role: providers.RoleUser, Content: prompt},
	}, providers.CompleteOptions{Temperature: 0.2})
	if err != nil {
		c.logger.Warn("context condensation failed, keeping raw context", "error", err)
		return
	}
	c.cost.Add(EstimateCost(prompt, out))

	urls := rc.SourceURLs()
	rc.fragments = []Fragment{{Content: out}}
	for _, u := range urls {
		rc.Append(Fragment{SourceURL: u})
	}
}
