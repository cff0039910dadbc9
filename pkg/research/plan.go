package research

import (
	"context"
	"log/slog"

	"github.com/SlyyCooper/agenai/pkg/providers"
)

// PlanSubtopics asks the model for report sub-topic titles based on the
// initial research context. The raw (possibly duplicated) list is returned;
// bounding and dedup are the caller's policy. Failures degrade to an empty
// list, never an error: a report with no sub-topics is still a report.
func PlanSubtopics(ctx context.Context, model providers.Model, cost *CostTracker,
	topic, researchData string, max int, logger *slog.Logger) []string {

	prompt := subtopicsPrompt(topic, researchData, max)
	out, err := model.Complete(ctx, []providers.Message{
		{Role: providers.RoleUser, Content: prompt},
	}, providers.CompleteOptions{Temperature: 0.3, JSONMode: true})
	if err != nil {
		logger.Warn("subtopic planning failed", "error", err)
		return nil
	}
	cost.Add(EstimateCost(prompt, out))

	titles, err := DecodeStringList(out)
	if err != nil {
		logger.Warn("subtopic plan output unrepairable", "error", err)
		return nil
	}
	return titles
}
