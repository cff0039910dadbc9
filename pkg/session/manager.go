// Package session owns client connections: the lifecycle state machine,
// the authentication handshake, ordered outbound delivery and inbound
// message dispatch into running workflows.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/SlyyCooper/agenai/pkg/research"
	"github.com/SlyyCooper/agenai/pkg/workflow"
)

// Verifier checks a client credential and resolves it to a user identity.
// The user store itself is an external collaborator.
type Verifier interface {
	Verify(ctx context.Context, token string) (userID string, err error)
}

// Runner starts one research run. Implemented by workflow.Factory.
type Runner interface {
	Run(ctx context.Context, query research.Query, ownerID string, sink workflow.ProgressSink, logger *slog.Logger) (*workflow.ReportDocument, error)
}

// inboundMessage is the envelope for every client→server message. Dispatch
// is by Type; unknown types are non-fatal.
type inboundMessage struct {
	Type       string   `json:"type"`
	Token      string   `json:"token,omitempty"`
	Task       string   `json:"task,omitempty"`
	ReportType string   `json:"report_type,omitempty"`
	SourceMode string   `json:"source_mode,omitempty"`
	Tone       string   `json:"tone,omitempty"`
	SourceURLs []string `json:"source_urls,omitempty"`
	Content    string   `json:"content,omitempty"`
}

// Manager accepts connections, drives their state machines and keeps the
// identity → connections multimap (an identity may hold several concurrent
// connections).
type Manager struct {
	verifier    Verifier
	runner      Runner
	authTimeout time.Duration
	logger      *slog.Logger

	mu    sync.Mutex
	conns map[string][]*Conn
}

func NewManager(verifier Verifier, runner Runner, authTimeout time.Duration, logger *slog.Logger) *Manager {
	if authTimeout <= 0 {
		authTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		verifier:    verifier,
		runner:      runner,
		authTimeout: authTimeout,
		logger:      logger,
		conns:       make(map[string][]*Conn),
	}
}

// HandleConn runs the full lifecycle of one connection and returns when the
// connection is closed. It is safe to call from many goroutines, one per
// accepted transport.
func (m *Manager) HandleConn(ctx context.Context, t Transport) {
	conn := newConn(t, m.logger)
	conn.setState(StateConnected)
	go conn.sender()

	conn.setState(StateAuthenticating)
	if !m.authenticate(ctx, conn) {
		conn.beginClose()
		m.awaitClosed(conn)
		return
	}

	m.addConn(conn)
	defer func() {
		m.removeConn(conn)
		conn.beginClose()
		m.awaitClosed(conn)
	}()

	m.readLoop(ctx, conn)
}

// authenticate waits for the single auth message, bounded by the auth
// timeout. Anything except a timely, valid credential is fatal for the
// connection; one terminal auth event is attempted either way.
func (m *Manager) authenticate(ctx context.Context, conn *Conn) bool {
	type readResult struct {
		msg inboundMessage
		err error
	}
	ch := make(chan readResult, 1)
	go func() {
		var msg inboundMessage
		err := conn.transport.ReadJSON(&msg)
		ch <- readResult{msg, err}
	}()

	timer := time.NewTimer(m.authTimeout)
	defer timer.Stop()

	var res readResult
	select {
	case res = <-ch:
	case <-timer.C:
		m.logger.Warn("auth handshake timed out", "conn_id", conn.ID)
		conn.Emit(workflow.Event{Type: workflow.EventAuth, Content: "failed", Output: "authentication timed out"})
		return false
	case <-ctx.Done():
		return false
	}

	if res.err != nil {
		m.logger.Warn("connection dropped during auth", "conn_id", conn.ID, "error", res.err)
		return false
	}
	if res.msg.Type != "auth" {
		conn.Emit(workflow.Event{Type: workflow.EventAuth, Content: "failed",
			Output: fmt.Sprintf("expected auth message, got %q", res.msg.Type)})
		return false
	}

	userID, err := m.verifier.Verify(ctx, res.msg.Token)
	if err != nil {
		m.logger.Warn("credential verification failed", "conn_id", conn.ID, "error", err)
		conn.Emit(workflow.Event{Type: workflow.EventAuth, Content: "failed", Output: "invalid credential"})
		return false
	}

	conn.mu.Lock()
	conn.userID = userID
	conn.mu.Unlock()
	conn.setState(StateAuthenticated)
	conn.Emit(workflow.Event{Type: workflow.EventAuth, Content: "success",
		Metadata: map[string]string{"user_id": userID}})
	m.logger.Info("connection authenticated", "conn_id", conn.ID, "user_id", userID)
	return true
}

// readLoop dispatches inbound messages until disconnect.
func (m *Manager) readLoop(ctx context.Context, conn *Conn) {
	for {
		var msg inboundMessage
		if err := conn.transport.ReadJSON(&msg); err != nil {
			m.logger.Info("connection read ended", "conn_id", conn.ID, "error", err)
			return
		}

		switch msg.Type {
		case "research_request":
			m.startResearch(ctx, conn, msg)
		case "human_feedback":
			if !conn.deliverFeedback(msg.Content) {
				m.logger.Warn("human_feedback with no pending wait-point, dropped", "conn_id", conn.ID)
			}
		case "":
			conn.Emit(workflow.Event{Type: workflow.EventError, Content: "bad_message",
				Output: "message must be a JSON object with a type field"})
		default:
			conn.Emit(workflow.Event{Type: workflow.EventError, Content: "unknown_type",
				Output: fmt.Sprintf("unknown message type %q", msg.Type)})
		}
	}
}

// startResearch validates the request and launches a workflow bound to this
// connection. Pipeline logs stream back through the connection's slog
// handler; the workflow emits its own terminal event.
func (m *Manager) startResearch(ctx context.Context, conn *Conn, msg inboundMessage) {
	reportType, err := research.ParseReportType(msg.ReportType)
	if err != nil {
		conn.Emit(workflow.Event{Type: workflow.EventError, Content: "bad_request", Output: err.Error()})
		return
	}
	query := research.Query{
		Text:       msg.Task,
		ReportType: reportType,
		SourceMode: msg.SourceMode,
		Tone:       msg.Tone,
		SourceURLs: msg.SourceURLs,
	}
	if err := query.Validate(); err != nil {
		conn.Emit(workflow.Event{Type: workflow.EventError, Content: "bad_request", Output: err.Error()})
		return
	}

	runLogger := slog.New(NewLogHandler(conn, m.logger.Handler()))
	go func() {
		if _, err := m.runner.Run(ctx, query, conn.UserID(), conn, runLogger); err != nil {
			m.logger.Error("research run failed", "conn_id", conn.ID, "error", err)
		}
	}()
}

func (m *Manager) addConn(conn *Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conns[conn.UserID()] = append(m.conns[conn.UserID()], conn)
}

// removeConn drops the connection from the multimap, deleting the identity
// entry entirely once its last connection goes away.
func (m *Manager) removeConn(conn *Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	userID := conn.UserID()
	remaining := m.conns[userID][:0]
	for _, c := range m.conns[userID] {
		if c != conn {
			remaining = append(remaining, c)
		}
	}
	if len(remaining) == 0 {
		delete(m.conns, userID)
	} else {
		m.conns[userID] = remaining
	}
}

// ConnectionsFor reports how many live connections an identity holds.
func (m *Manager) ConnectionsFor(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conns[userID])
}

// awaitClosed blocks until the sender has drained and closed the transport.
func (m *Manager) awaitClosed(conn *Conn) {
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(5 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-tick.C:
			if conn.State() == StateClosed {
				return
			}
		case <-deadline:
			_ = conn.transport.Close()
			return
		}
	}
}
