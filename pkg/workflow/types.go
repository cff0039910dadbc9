// Package workflow coordinates the multi-agent report pipeline: planning,
// concurrent sub-topic research, deduplicated drafting, a bounded
// review/revise loop and publication.
package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// State names the phases of one run. Transitions only move forward, except
// for the reviewing/revising loop.
type State string

const (
	StatePlanning      State = "PLANNING"
	StateResearching   State = "RESEARCHING"
	StateHumanFeedback State = "HUMAN_FEEDBACK"
	StateDrafting      State = "DRAFTING"
	StateReviewing     State = "REVIEWING"
	StateRevising      State = "REVISING"
	StatePublishing    State = "PUBLISHING"
	StateDone          State = "DONE"
)

// SubtopicPlan is the ordered, deduplicated list of sub-topic titles for a
// run. It is immutable once derived.
type SubtopicPlan []string

// Draft is the in-progress content for one sub-topic. A failed sub-topic
// keeps its error here instead of aborting the run.
type Draft struct {
	Subtopic  string   `json:"subtopic"`
	Content   string   `json:"content"`
	Headers   []string `json:"headers"`
	Sources   []string `json:"sources"`
	Revisions int      `json:"revisions"`
	Err       string   `json:"error,omitempty"`
}

// ReviewVerdict carries reviewer notes. A nil verdict means accept.
type ReviewVerdict struct {
	Notes string `json:"notes"`
}

// ReportDocument is the final published artifact. It is immutable once the
// workflow reaches DONE.
type ReportDocument struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	Introduction    string    `json:"introduction"`
	TableOfContents string    `json:"table_of_contents"`
	Sections        []Draft   `json:"sections"`
	Conclusion      string    `json:"conclusion"`
	References      []string  `json:"references"`
	TotalCost       float64   `json:"total_cost"`
	CreatedAt       time.Time `json:"created_at"`
}

// Markdown renders the document for storage and transport.
func (d *ReportDocument) Markdown() string {
	var sb strings.Builder
	sb.WriteString(d.Introduction)
	sb.WriteString("\n\n")
	sb.WriteString(d.TableOfContents)
	for _, s := range d.Sections {
		if s.Content == "" {
			continue
		}
		sb.WriteString("\n\n## ")
		sb.WriteString(s.Subtopic)
		sb.WriteString("\n\n")
		sb.WriteString(s.Content)
	}
	sb.WriteString("\n\n## Conclusion\n\n")
	sb.WriteString(d.Conclusion)
	if len(d.References) > 0 {
		sb.WriteString("\n\n## References\n\n")
		for _, r := range d.References {
			sb.WriteString(fmt.Sprintf("- [%s](%s)\n", r, r))
		}
	}
	return sb.String()
}

// Publisher hands a finished document to the external rendering/storage
// collaborator. The returned map carries opaque per-format locations.
type Publisher interface {
	Publish(ctx context.Context, ownerID string, doc *ReportDocument) (map[string]string, error)
}

// Billing receives cost notifications, fire-and-forget.
type Billing interface {
	RecordCost(ownerID string, delta float64)
}
