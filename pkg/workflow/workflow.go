package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/SlyyCooper/agenai/pkg/config"
	"github.com/SlyyCooper/agenai/pkg/contextmgr"
	"github.com/SlyyCooper/agenai/pkg/providers"
	"github.com/SlyyCooper/agenai/pkg/research"
)

// Workflow runs one multi-agent report from query to publication. A fresh
// Workflow is created per run; the only state shared with the outside is
// the sink, publisher and billing collaborators.
type Workflow struct {
	cfg       *config.Config
	model     providers.Model
	conductor *research.Conductor
	assembler *research.Assembler
	ctxmgr    *contextmgr.Manager
	publisher Publisher
	billing   Billing
	sink      ProgressSink
	logger    *slog.Logger

	visited *research.VisitedURLSet
	cost    *research.CostTracker

	mu    sync.Mutex
	state State
}

// Deps wires a workflow. Publisher, Billing, Sink and ContextManager are
// optional; nil collaborators are replaced by no-ops.
type Deps struct {
	Config     *config.Config
	Model      providers.Model
	Retrievers []providers.Retriever
	Scraper    providers.Scraper
	ContextMgr *contextmgr.Manager
	Publisher  Publisher
	Billing    Billing
	Sink       ProgressSink
	Logger     *slog.Logger
}

func New(d Deps) *Workflow {
	if d.Sink == nil {
		d.Sink = NopSink{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	cost := &research.CostTracker{}
	conductor := research.NewConductor(d.Model, d.Retrievers, d.Scraper, cost, research.ConductorConfig{
		MaxIterations:    d.Config.MaxIterations,
		MaxSearchResults: d.Config.MaxSearchResults,
		MaxScrapeWorkers: d.Config.MaxScrapeWorkers,
		MaxContextLength: d.Config.MaxContextLength,
	}, d.Logger)

	assembler := research.NewAssembler(d.Model, cost, research.FormatConfig{
		TotalWords:    d.Config.TotalWords,
		CitationStyle: d.Config.CitationStyle,
		Language:      d.Config.Language,
	}, d.Logger)
	assembler.Stream = d.Sink.StreamToken

	return &Workflow{
		cfg:       d.Config,
		model:     d.Model,
		conductor: conductor,
		assembler: assembler,
		ctxmgr:    d.ContextMgr,
		publisher: d.Publisher,
		billing:   d.Billing,
		sink:      d.Sink,
		logger:    d.Logger,
		visited:   research.NewVisitedURLSet(),
		cost:      cost,
		state:     StatePlanning,
	}
}

// State reports the current phase.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Workflow) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
	w.logger.Info("workflow state", "state", string(s))
	w.sink.Emit(Event{Type: EventLogs, Content: "state", Output: string(s)})
}

// Run executes the full pipeline and emits exactly one terminal event:
// research_report on success, error on failure.
func (w *Workflow) Run(ctx context.Context, query research.Query, ownerID string) (*ReportDocument, error) {
	doc, err := w.run(ctx, query, ownerID)
	if err != nil {
		w.sink.Emit(Event{Type: EventError, Content: "run_failed", Output: err.Error()})
		return nil, err
	}
	md := doc.Markdown()
	w.sink.Emit(Event{
		Type:    EventReport,
		Content: doc.Title,
		Output:  md,
		Metadata: map[string]interface{}{
			"report_id":  doc.ID.String(),
			"total_cost": doc.TotalCost,
			"sources":    len(doc.References),
		},
	})
	return doc, nil
}

func (w *Workflow) run(ctx context.Context, query research.Query, ownerID string) (*ReportDocument, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	rt, err := research.ParseReportType(string(query.ReportType))
	if err != nil {
		return nil, err
	}
	query.ReportType = rt
	query.Tone = normalizedTone(query.Tone)
	w.assembler.SetTone(query.Tone)

	persona := research.ChoosePersona(ctx, w.model, w.cost, query.Text, w.logger)

	// PLANNING: one full-query research pass, then the sub-topic plan.
	w.setState(StatePlanning)
	initial := research.NewOrchestrator(query, persona, w.conductor, w.assembler, w.visited, w.cost, w.logger)
	if err := initial.Research(ctx); err != nil {
		return nil, fmt.Errorf("initial research failed: %w", err)
	}

	if query.ReportType != research.ReportTypeDetailed {
		return w.runSinglePass(ctx, query, initial, ownerID)
	}

	titles := research.PlanSubtopics(ctx, w.model, w.cost, query.Text, initial.Context.Join(), w.cfg.MaxSubtopics, w.logger)
	plan := NormalizePlan(titles, w.cfg.MaxSubtopics)
	w.logger.Info("subtopic plan derived", "subtopics", []string(plan))

	// HUMAN_FEEDBACK: optional checkpoint before committing to the plan.
	if w.cfg.EnableHumanReview {
		plan = w.humanFeedback(ctx, query, initial, plan)
	}

	// RESEARCHING: one concurrent orchestrator per sub-topic, shared
	// visited set, no short-circuit on individual failure.
	w.setState(StateResearching)
	workers := make([]*research.Orchestrator, len(plan))
	errs := make([]error, len(plan))
	var wg sync.WaitGroup
	for i, subtopic := range plan {
		wg.Add(1)
		go func(i int, subtopic string) {
			defer wg.Done()
			sub := query.Clone(subtopic)
			sub.ReportType = research.ReportTypeSubtopic
			o := research.NewOrchestrator(sub, persona, w.conductor, w.assembler, w.visited, w.cost, w.logger)
			workers[i] = o
			errs[i] = o.Research(ctx)
		}(i, subtopic)
	}
	wg.Wait()

	// DRAFTING: sequential so each draft can avoid its earlier siblings.
	w.setState(StateDrafting)
	drafts := make([]Draft, len(plan))
	var allHeaders []string
	for i, subtopic := range plan {
		drafts[i] = Draft{Subtopic: subtopic}
		if errs[i] != nil {
			w.logger.Error("subtopic research failed, publishing empty draft", "subtopic", subtopic, "error", errs[i])
			drafts[i].Err = errs[i].Error()
			continue
		}

		avoid := w.overlapFor(ctx, subtopic)
		content, err := workers[i].WriteReport(ctx, query.Text, allHeaders, avoid)
		if err != nil {
			w.logger.Error("subtopic drafting failed, publishing empty draft", "subtopic", subtopic, "error", err)
			drafts[i].Err = err.Error()
			continue
		}
		drafts[i].Content = content
		drafts[i].Headers = research.ExtractHeaders(content)
		drafts[i].Sources = workers[i].SourceURLs()
		allHeaders = append(allHeaders, drafts[i].Headers...)
		w.indexWritten(ctx, content)
	}

	// REVIEWING / REVISING: bounded loop per draft.
	if w.cfg.FollowGuidelines {
		for i := range drafts {
			if drafts[i].Content == "" {
				continue
			}
			w.reviewLoop(ctx, &drafts[i])
		}
	}

	// PUBLISHING
	w.setState(StatePublishing)
	doc, err := w.publish(ctx, query, persona, initial, drafts, ownerID)
	if err != nil {
		return nil, err
	}
	w.setState(StateDone)
	return doc, nil
}

// runSinglePass covers the non-detailed report types: one research pass,
// one assembled body, no sub-topic fan-out.
func (w *Workflow) runSinglePass(ctx context.Context, query research.Query, initial *research.Orchestrator, ownerID string) (*ReportDocument, error) {
	w.setState(StateDrafting)
	content, err := initial.WriteReport(ctx, query.Text, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("report drafting failed: %w", err)
	}

	w.setState(StatePublishing)
	doc := &ReportDocument{
		ID:         uuid.New(),
		Title:      query.Text,
		Sections:   []Draft{{Subtopic: query.Text, Content: content, Headers: research.ExtractHeaders(content)}},
		References: initial.SourceURLs(),
		TotalCost:  w.cost.Total(),
		CreatedAt:  time.Now().UTC(),
	}
	if err := w.handOff(ctx, doc, ownerID); err != nil {
		return nil, err
	}
	w.setState(StateDone)
	return doc, nil
}

// humanFeedback emits the plan and blocks on one inbound feedback message.
// No response, or one amounting to "no", keeps the plan; anything else
// regenerates it once with the feedback taken into account.
func (w *Workflow) humanFeedback(ctx context.Context, query research.Query, initial *research.Orchestrator, plan SubtopicPlan) SubtopicPlan {
	w.setState(StateHumanFeedback)
	planJSON, _ := json.Marshal(plan)
	w.sink.Emit(Event{Type: EventLogs, Content: "human_feedback", Output: string(planJSON), Metadata: plan})

	feedback := strings.TrimSpace(w.sink.AwaitFeedback(ctx, w.cfg.FeedbackTimeout))
	if feedback == "" || strings.EqualFold(feedback, "no") {
		w.logger.Info("no human feedback, keeping plan")
		return plan
	}

	w.logger.Info("regenerating plan with human feedback", "feedback", feedback)
	seed := initial.Context.Join() + "\n\nHuman feedback on the proposed outline:\n" + feedback
	titles := research.PlanSubtopics(ctx, w.model, w.cost, query.Text, seed, w.cfg.MaxSubtopics, w.logger)
	if revised := NormalizePlan(titles, w.cfg.MaxSubtopics); len(revised) > 0 {
		return revised
	}
	return plan
}

// overlapFor asks the context manager for previously written fragments the
// next draft must avoid. Without a context manager there is nothing to
// avoid.
func (w *Workflow) overlapFor(ctx context.Context, subtopic string) []string {
	if w.ctxmgr == nil {
		return nil
	}
	avoid, err := w.ctxmgr.Similar(ctx, []string{subtopic}, w.cfg.ContextTopK)
	if err != nil {
		w.logger.Warn("overlap lookup failed, drafting without it", "subtopic", subtopic, "error", err)
		return nil
	}
	return avoid
}

func (w *Workflow) indexWritten(ctx context.Context, content string) {
	if w.ctxmgr == nil {
		return
	}
	if err := w.ctxmgr.AddWritten(ctx, content); err != nil {
		w.logger.Warn("failed to index written draft", "error", err)
	}
}

// reviewLoop runs the bounded review/revise cycle for one draft. Hitting
// the ceiling forces acceptance of the current content.
func (w *Workflow) reviewLoop(ctx context.Context, draft *Draft) {
	for draft.Revisions < w.cfg.MaxRevisions {
		w.setState(StateReviewing)
		notes, revise := research.ReviewDraft(ctx, w.model, w.cost, draft.Content, research.DefaultGuidelines, w.logger)
		if !revise {
			w.logger.Info("draft accepted", "subtopic", draft.Subtopic, "revisions", draft.Revisions)
			return
		}

		verdict := &ReviewVerdict{Notes: notes}
		w.sink.Emit(Event{Type: EventLogs, Content: "review_verdict", Output: verdict.Notes, Metadata: verdict})

		w.setState(StateRevising)
		draft.Revisions++
		revised, revisionNotes, err := research.ReviseDraft(ctx, w.model, w.cost, draft.Content, notes, w.logger)
		if err != nil {
			w.logger.Warn("revision unusable, accepting draft as-is", "subtopic", draft.Subtopic, "error", err)
			return
		}
		draft.Content = revised
		draft.Headers = research.ExtractHeaders(revised)
		w.logger.Info("draft revised", "subtopic", draft.Subtopic, "revision", draft.Revisions, "notes", revisionNotes)
	}
	w.logger.Warn("revision ceiling reached, accepting draft", "subtopic", draft.Subtopic, "revisions", draft.Revisions)
}

func (w *Workflow) publish(ctx context.Context, query research.Query, persona research.AgentPersona,
	initial *research.Orchestrator, drafts []Draft, ownerID string) (*ReportDocument, error) {

	intro, err := w.assembler.WriteIntroduction(ctx, persona, query.Text, initial.Context.Join())
	if err != nil {
		return nil, fmt.Errorf("introduction failed: %w", err)
	}

	var body strings.Builder
	for _, d := range drafts {
		if d.Content == "" {
			continue
		}
		body.WriteString("\n\n## " + d.Subtopic + "\n\n" + d.Content)
	}

	conclusion, err := w.assembler.WriteConclusion(ctx, persona, query.Text, body.String())
	if err != nil {
		return nil, fmt.Errorf("conclusion failed: %w", err)
	}

	references := initial.SourceURLs()
	seen := make(map[string]bool, len(references))
	for _, r := range references {
		seen[r] = true
	}
	for _, d := range drafts {
		for _, s := range d.Sources {
			if !seen[s] {
				seen[s] = true
				references = append(references, s)
			}
		}
	}

	doc := &ReportDocument{
		ID:              uuid.New(),
		Title:           query.Text,
		Introduction:    intro,
		TableOfContents: research.TableOfContents(intro + "\n" + body.String()),
		Sections:        drafts,
		Conclusion:      conclusion,
		References:      references,
		TotalCost:       w.cost.Total(),
		CreatedAt:       time.Now().UTC(),
	}
	if err := w.handOff(ctx, doc, ownerID); err != nil {
		return nil, err
	}
	return doc, nil
}

// handOff delivers the finished document to the storage collaborator and
// notifies billing. Billing is fire-and-forget; publishing failures are
// terminal.
func (w *Workflow) handOff(ctx context.Context, doc *ReportDocument, ownerID string) error {
	if w.publisher != nil {
		locations, err := w.publisher.Publish(ctx, ownerID, doc)
		if err != nil {
			return fmt.Errorf("publish failed: %w", err)
		}
		w.logger.Info("report published", "report_id", doc.ID, "locations", locations)
	}
	if w.billing != nil {
		w.billing.RecordCost(ownerID, doc.TotalCost)
	}
	return nil
}

func normalizedTone(tone string) string {
	if tone == "" {
		return "objective"
	}
	return tone
}
