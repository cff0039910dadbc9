// Package research implements the single-topic research pipeline: sub-query
// planning, retrieval, scraping and report assembly for one query.
package research

import (
	"fmt"
	"strings"
	"sync"
)

// SourceMode controls where a research pass gets its sources from.
const (
	SourceModeWeb    = "web"    // search the configured retrievers
	SourceModeStatic = "static" // scrape only the query's SourceURLs
)

// Query is the immutable input for one research run. Sub-topic queries are
// spawned with Clone, never by mutation.
type Query struct {
	Text       string   `json:"text"`
	ReportType ReportType `json:"report_type"`
	SourceMode string   `json:"source_mode"`
	Tone       string   `json:"tone"`
	SourceURLs []string `json:"source_urls"`
}

// Validate rejects contract errors before any provider is called.
func (q Query) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("query text must not be empty")
	}
	if _, err := ParseReportType(string(q.ReportType)); q.ReportType != "" && err != nil {
		return err
	}
	if q.SourceMode == SourceModeStatic && len(q.SourceURLs) == 0 {
		return fmt.Errorf("static source mode requires at least one source URL")
	}
	return nil
}

// Clone returns a copy of the query with new text, inheriting every other
// field. Used to spawn sub-topic queries from the parent.
func (q Query) Clone(text string) Query {
	out := q
	out.Text = text
	out.SourceURLs = append([]string(nil), q.SourceURLs...)
	return out
}

// AgentPersona is the role identity used for all model calls in one run.
type AgentPersona struct {
	Name       string `json:"server"`
	RolePrompt string `json:"agent_role_prompt"`
}

// DefaultPersona is used when classification fails or returns garbage.
func DefaultPersona() AgentPersona {
	return AgentPersona{
		Name: "Default Agent",
		RolePrompt: "You are a critical-thinking AI research assistant. Your sole purpose is " +
			"to write well written, critically acclaimed, objective and structured reports on given text.",
	}
}

// Fragment is one piece of retrieved content with its origin.
type Fragment struct {
	Content   string `json:"content"`
	SourceURL string `json:"source_url"`
}

// ResearchContext is the ordered, append-only collection of fragments
// gathered during one research pass. It is owned by a single orchestrator
// and must be treated as read-only once handed to the assembler.
type ResearchContext struct {
	fragments []Fragment
}

func (c *ResearchContext) Append(f Fragment) {
	c.fragments = append(c.fragments, f)
}

func (c *ResearchContext) Len() int { return len(c.fragments) }

func (c *ResearchContext) Fragments() []Fragment { return c.fragments }

// Join concatenates fragment contents into one prompt-ready blob.
// Fragments that only carry a source URL (left behind by condensation)
// are skipped.
func (c *ResearchContext) Join() string {
	parts := make([]string, 0, len(c.fragments))
	for _, f := range c.fragments {
		if f.Content == "" {
			continue
		}
		if f.SourceURL != "" {
			parts = append(parts, fmt.Sprintf("Source: %s\n%s", f.SourceURL, f.Content))
		} else {
			parts = append(parts, f.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}

// SourceURLs returns the distinct source URLs in insertion order.
func (c *ResearchContext) SourceURLs() []string {
	seen := make(map[string]bool, len(c.fragments))
	urls := make([]string, 0, len(c.fragments))
	for _, f := range c.fragments {
		if f.SourceURL == "" || seen[f.SourceURL] {
			continue
		}
		seen[f.SourceURL] = true
		urls = append(urls, f.SourceURL)
	}
	return urls
}

// VisitedURLSet tracks URLs already claimed for scraping. It is shared by
// every concurrent sub-topic worker of a run; Add is the single atomic
// insert-if-absent that makes duplicate fetches impossible.
type VisitedURLSet struct {
	mu   sync.Mutex
	urls map[string]bool
}

func NewVisitedURLSet() *VisitedURLSet {
	return &VisitedURLSet{urls: make(map[string]bool)}
}

// Add claims url for the caller. It returns false if some worker already
// claimed it.
func (v *VisitedURLSet) Add(url string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.urls[url] {
		return false
	}
	v.urls[url] = true
	return true
}

func (v *VisitedURLSet) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.urls)
}

// CostTracker accumulates the estimated spend of a run. The total only
// ever increases.
type CostTracker struct {
	mu    sync.Mutex
	total float64
}

// Add increases the total. Negative deltas are a programming error.
func (c *CostTracker) Add(delta float64) {
	if delta < 0 {
		panic(fmt.Sprintf("cost delta must be non-negative, got %f", delta))
	}
	c.mu.Lock()
	c.total += delta
	c.mu.Unlock()
}

func (c *CostTracker) Total() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// EstimateCost approximates the dollar cost of one completion from prompt
// and output length, using a flat blended token rate.
func EstimateCost(prompt, completion string) float64 {
	const charsPerToken = 4
	const dollarsPerKTokens = 0.005
	tokens := float64(len(prompt)+len(completion)) / charsPerToken
	return tokens / 1000 * dollarsPerKTokens
}
