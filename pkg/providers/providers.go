// Package providers defines the narrow capability contracts the research
// pipeline consumes: a language model, web retrievers and page scrapers.
// Concrete backends are pluggable; the pipeline only sees these interfaces.
package providers

import "context"

// Role constants for chat messages.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Message is one chat turn sent to a Model.
type Message struct {
	Role    string
	Content string
}

// CompleteOptions tunes a single completion call. Stream, when set, is
// invoked for every token chunk as it arrives; the full text is still
// returned at the end.
type CompleteOptions struct {
	Temperature float64
	MaxTokens   int
	JSONMode    bool
	Stream      func(chunk string)
}

// Model is a pluggable language-model backend.
type Model interface {
	Complete(ctx context.Context, messages []Message, opts CompleteOptions) (string, error)
}

// Source is one search hit returned by a Retriever.
type Source struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Retriever is a pluggable web/document search backend. Implementations
// report provider failures as errors and must never panic on bad input.
type Retriever interface {
	Name() string
	Search(ctx context.Context, query string, maxResults int) ([]Source, error)
}

// Scraper fetches the raw text content of a URL.
type Scraper interface {
	Fetch(ctx context.Context, url string) (string, error)
}
