package research

import (
	"context"
	"fmt"
	"log/slog"
)

// Orchestrator is the per-topic research unit: it owns the research context
// it produces and shares the run-wide visited set and cost tracker with its
// siblings.
type Orchestrator struct {
	Query   Query
	Persona AgentPersona
	Context *ResearchContext

	conductor *Conductor
	assembler *Assembler
	visited   *VisitedURLSet
	cost      *CostTracker
	logger    *slog.Logger
}

func NewOrchestrator(query Query, persona AgentPersona, conductor *Conductor, assembler *Assembler,
	visited *VisitedURLSet, cost *CostTracker, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		Query:     query,
		Persona:   persona,
		conductor: conductor,
		assembler: assembler,
		visited:   visited,
		cost:      cost,
		logger:    logger,
	}
}

// Research runs the retrieval pass and stores the resulting context.
func (o *Orchestrator) Research(ctx context.Context) error {
	rc, err := o.conductor.Conduct(ctx, o.Query, o.Persona, o.visited)
	if err != nil {
		return fmt.Errorf("research failed for %q: %w", o.Query.Text, err)
	}
	o.Context = rc
	o.logger.Info("research pass complete", "query", o.Query.Text,
		"fragments", rc.Len(), "total_cost", o.cost.Total())
	return nil
}

// WriteReport assembles the body text from the stored context. The context
// is read-only from this point on.
func (o *Orchestrator) WriteReport(ctx context.Context, mainTopic string, existingHeaders, existingContent []string) (string, error) {
	if o.Context == nil {
		return "", fmt.Errorf("WriteReport called before Research for %q", o.Query.Text)
	}
	return o.assembler.Assemble(ctx, AssembleInput{
		Query:           o.Query,
		Persona:         o.Persona,
		Context:         o.Context.Join(),
		MainTopic:       mainTopic,
		ExistingHeaders: existingHeaders,
		ExistingContent: existingContent,
	})
}

// Cost reports the run-wide accumulated cost.
func (o *Orchestrator) Cost() float64 { return o.cost.Total() }

// SourceURLs lists the sources this orchestrator's context drew from.
func (o *Orchestrator) SourceURLs() []string {
	if o.Context == nil {
		return nil
	}
	return o.Context.SourceURLs()
}
