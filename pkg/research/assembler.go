package research

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/SlyyCooper/agenai/pkg/providers"
)

// AssembleInput is everything the assembler needs to write one report body.
type AssembleInput struct {
	Query     Query
	Persona   AgentPersona
	Context   string
	MainTopic string // umbrella topic, set for subtopic reports

	// Sibling state, used by subtopic prompts to avoid duplicate coverage.
	ExistingHeaders []string
	ExistingContent []string
}

// Assembler turns a research context into report text. One instance serves
// a whole run; the format config is fixed at construction so every
// sub-call sees identical parameters.
type Assembler struct {
	model  providers.Model
	cost   *CostTracker
	format FormatConfig
	logger *slog.Logger

	// Stream receives token chunks for top-level sections when a session
	// is attached. Nil disables streaming.
	Stream func(chunk string)
}

func NewAssembler(model providers.Model, cost *CostTracker, format FormatConfig, logger *slog.Logger) *Assembler {
	return &Assembler{model: model, cost: cost, format: format, logger: logger}
}

// SetTone applies the query's tone for the run. Called once before any
// assembly so all sub-calls share it.
func (a *Assembler) SetTone(tone string) { a.format.Tone = tone }

// Assemble writes the body text for the query's report type.
func (a *Assembler) Assemble(ctx context.Context, in AssembleInput) (string, error) {
	build, err := promptFor(in.Query.ReportType)
	if err != nil {
		return "", err
	}
	prompt := build(in, a.format)

	// Subtopic bodies are drafted quietly; only top-level sections stream.
	var stream func(string)
	if in.Query.ReportType != ReportTypeSubtopic {
		stream = a.Stream
	}

	out, err := a.model.Complete(ctx, []providers.Message{
		{Role: providers.RoleSystem, Content: in.Persona.RolePrompt},
		{Role: providers.RoleUser, Content: prompt},
	}, providers.CompleteOptions{Temperature: 0.4, MaxTokens: a.format.TotalWords * 4, Stream: stream})
	if err != nil {
		return "", fmt.Errorf("report assembly failed: %w", err)
	}
	a.cost.Add(EstimateCost(prompt, out))
	return strings.TrimSpace(out), nil
}

// WriteIntroduction produces the report title and introduction as its own
// streamed call.
func (a *Assembler) WriteIntroduction(ctx context.Context, persona AgentPersona, topic, context string) (string, error) {
	prompt := introductionPrompt(topic, context, a.format)
	out, err := a.model.Complete(ctx, []providers.Message{
		{Role: providers.RoleSystem, Content: persona.RolePrompt},
		{Role: providers.RoleUser, Content: prompt},
	}, providers.CompleteOptions{Temperature: 0.4, Stream: a.Stream})
	if err != nil {
		return "", fmt.Errorf("introduction failed: %w", err)
	}
	a.cost.Add(EstimateCost(prompt, out))
	return strings.TrimSpace(out), nil
}

// WriteConclusion summarizes the finished report body, streamed like the
// introduction.
func (a *Assembler) WriteConclusion(ctx context.Context, persona AgentPersona, topic, report string) (string, error) {
	prompt := conclusionPrompt(topic, report, a.format)
	out, err := a.model.Complete(ctx, []providers.Message{
		{Role: providers.RoleSystem, Content: persona.RolePrompt},
		{Role: providers.RoleUser, Content: prompt},
	}, providers.CompleteOptions{Temperature: 0.4, Stream: a.Stream})
	if err != nil {
		return "", fmt.Errorf("conclusion failed: %w", err)
	}
	a.cost.Add(EstimateCost(prompt, out))
	return strings.TrimSpace(out), nil
}

var (
	headerRe = regexp.MustCompile(`(?m)^(#{1,4})\s+(.+)$`)
	anchorRe = regexp.MustCompile(`[^\w\s-]`)
)

// ExtractHeaders lists the markdown headers of a report section in order.
func ExtractHeaders(markdown string) []string {
	var headers []string
	for _, m := range headerRe.FindAllStringSubmatch(markdown, -1) {
		headers = append(headers, strings.TrimSpace(m[2]))
	}
	return headers
}

// TableOfContents renders a nested bullet list from markdown headers.
func TableOfContents(markdown string) string {
	var sb strings.Builder
	sb.WriteString("## Table of Contents\n\n")
	for _, m := range headerRe.FindAllStringSubmatch(markdown, -1) {
		depth := len(m[1]) - 1
		if depth < 0 {
			depth = 0
		}
		title := strings.TrimSpace(m[2])
		anchor := strings.ToLower(strings.ReplaceAll(anchorRe.ReplaceAllString(title, ""), " ", "-"))
		sb.WriteString(strings.Repeat("  ", depth))
		sb.WriteString(fmt.Sprintf("- [%s](#%s)\n", title, anchor))
	}
	return sb.String()
}

// References renders the source list for the end of a report.
func References(urls []string) string {
	if len(urls) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("## References\n\n")
	for _, u := range urls {
		sb.WriteString(fmt.Sprintf("- [%s](%s)\n", u, u))
	}
	return sb.String()
}
