package research

import (
	"context"
	"log/slog"

	"github.com/SlyyCooper/agenai/pkg/providers"
)

// ChoosePersona resolves the agent persona for a query with a single
// classification call. The result is cached by the caller for the lifetime
// of the run and inherited by sub-topic queries. Classification failures
// degrade to the default persona, never to an error.
func ChoosePersona(ctx context.Context, model providers.Model, cost *CostTracker, topic string, logger *slog.Logger) AgentPersona {
	prompt := personaPrompt(topic)
	out, err := model.Complete(ctx, []providers.Message{
		{Role: providers.RoleUser, Content: prompt},
	}, providers.CompleteOptions{Temperature: 0.2, JSONMode: true})
	if err != nil {
		logger.Warn("persona classification failed, using default agent", "error", err)
		return DefaultPersona()
	}
	cost.Add(EstimateCost(prompt, out))

	var persona AgentPersona
	if err := DecodeJSON(out, &persona); err != nil || persona.Name == "" || persona.RolePrompt == "" {
		logger.Warn("persona response malformed, using default agent", "error", err)
		return DefaultPersona()
	}
	logger.Info("persona selected", "agent", persona.Name)
	return persona
}
