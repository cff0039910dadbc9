package workflow

import (
	"context"
	"time"
)

// Event is one progress message emitted to the client.
type Event struct {
	Type     string      `json:"type"`
	Content  string      `json:"content"`
	Output   string      `json:"output"`
	Metadata interface{} `json:"metadata,omitempty"`
}

// Event types on the wire.
const (
	EventLogs            = "logs"
	EventAuth            = "auth"
	EventError           = "error"
	EventReport          = "research_report"
	EventConnectionState = "connection_state"
)

// ProgressSink is where a running workflow reports to. A session implements
// it over its outbound queue; the CLI implements it over stdout. All
// methods must be safe for concurrent use and must tolerate a disconnected
// peer (emissions on a dead sink are dropped, not errors).
type ProgressSink interface {
	Emit(ev Event)
	StreamToken(token string)
	// AwaitFeedback blocks for one human feedback message or the timeout.
	// An empty string means no feedback arrived.
	AwaitFeedback(ctx context.Context, timeout time.Duration) string
}

// NopSink discards everything; used for headless runs.
type NopSink struct{}

func (NopSink) Emit(Event)                                          {}
func (NopSink) StreamToken(string)                                  {}
func (NopSink) AwaitFeedback(context.Context, time.Duration) string { return "" }
