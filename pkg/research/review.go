package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/SlyyCooper/agenai/pkg/providers"
)

// DefaultGuidelines is the reviewer checklist applied when the
// configuration enables guideline review without supplying its own.
var DefaultGuidelines = []string{
	"The report MUST be written in markdown without a top-level (#) header.",
	"The report MUST fully address the stated subtopic with facts and numbers where available.",
	"Every factual claim MUST carry an in-text citation as a markdown hyperlink.",
	"The report MUST NOT contain filler phrases, apologies or meta commentary.",
}

var reviewerPersona = AgentPersona{
	Name: "Reviewer Agent",
	RolePrompt: "You are an expert research article reviewer. " +
		"Your goal is to review research drafts and provide feedback to the reviser only based on specific guidelines.",
}

var reviserPersona = AgentPersona{
	Name: "Reviser Agent",
	RolePrompt: "You are an expert writer. " +
		"Your goal is to revise drafts based on reviewer notes.",
}

// ReviewDraft evaluates a draft against the guidelines. Empty notes mean
// the draft is accepted. A provider failure accepts the draft rather than
// blocking publication.
func ReviewDraft(ctx context.Context, model providers.Model, cost *CostTracker,
	draft string, guidelines []string, logger *slog.Logger) (notes string, revise bool) {

	prompt := reviewPrompt(draft, guidelines)
	out, err := model.Complete(ctx, []providers.Message{
		{Role: providers.RoleSystem, Content: reviewerPersona.RolePrompt},
		{Role: providers.RoleUser, Content: prompt},
	}, providers.CompleteOptions{Temperature: 0.2})
	if err != nil {
		logger.Warn("review call failed, accepting draft", "error", err)
		return "", false
	}
	cost.Add(EstimateCost(prompt, out))

	out = strings.TrimSpace(out)
	if out == "" || strings.EqualFold(out, "none") {
		return "", false
	}
	return out, true
}

// ReviseDraft applies reviewer notes to a draft. The model must return a
// {"draft": ..., "revision_notes": ...} object; a malformed response is
// retried once through the repair chain before the error is surfaced so the
// caller can accept the previous draft as-is.
func ReviseDraft(ctx context.Context, model providers.Model, cost *CostTracker,
	draft, notes string, logger *slog.Logger) (revised, revisionNotes string, err error) {

	type revision struct {
		Draft         string `json:"draft"`
		RevisionNotes string `json:"revision_notes"`
	}

	prompt := revisePrompt(draft, notes)
	for attempt := 0; attempt < 2; attempt++ {
		out, callErr := model.Complete(ctx, []providers.Message{
			{Role: providers.RoleSystem, Content: reviserPersona.RolePrompt},
			{Role: providers.RoleUser, Content: prompt},
		}, providers.CompleteOptions{Temperature: 0.3, JSONMode: true})
		if callErr != nil {
			err = fmt.Errorf("revise call failed: %w", callErr)
			continue
		}
		cost.Add(EstimateCost(prompt, out))

		var rev revision
		if decodeErr := DecodeJSON(out, &rev); decodeErr != nil || rev.Draft == "" {
			err = fmt.Errorf("revision output malformed: %v", decodeErr)
			logger.Warn("revision output malformed", "attempt", attempt+1, "error", decodeErr)
			continue
		}
		return rev.Draft, rev.RevisionNotes, nil
	}
	return "", "", err
}
