package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/SlyyCooper/agenai/pkg/workflow"
)

// ConnState is a connection's position in the lifecycle state machine.
type ConnState int

const (
	StateConnecting ConnState = iota
	StateConnected
	StateAuthenticating
	StateAuthenticated
	StateClosing
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateAuthenticating:
		return "AUTHENTICATING"
	case StateAuthenticated:
		return "AUTHENTICATED"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	}
	return "UNKNOWN"
}

// Transport is the minimal JSON message channel a connection needs. The
// websocket adapter lives in the server package; tests use an in-memory
// implementation.
type Transport interface {
	ReadJSON(v interface{}) error
	WriteJSON(v interface{}) error
	Close() error
}

// closeSentinel is enqueued ahead of sender shutdown so everything already
// queued is delivered first.
const closeSentinel = "__close__"

// Conn is one client connection: its state, its outbound queue and the
// feedback wait-point of an attached workflow. Conn implements
// workflow.ProgressSink.
type Conn struct {
	ID        uuid.UUID
	transport Transport
	queue     *eventQueue
	logger    *slog.Logger

	mu       sync.Mutex
	cond     *sync.Cond
	state    ConnState
	userID   string
	feedback chan string // non-nil while a workflow waits on feedback

	closeOnce sync.Once
	done      chan struct{}
}

func newConn(t Transport, logger *slog.Logger) *Conn {
	c := &Conn{
		ID:        uuid.New(),
		transport: t,
		queue:     newEventQueue(),
		logger:    logger,
		state:     StateConnecting,
		done:      make(chan struct{}),
	}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// State returns the current connection state.
func (c *Conn) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// UserID returns the authenticated identity, empty before auth.
func (c *Conn) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// setState advances the state machine and announces the transition. Every
// transition emits exactly one connection_state event.
func (c *Conn) setState(s ConnState) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	c.cond.Broadcast()
	c.mu.Unlock()

	c.logger.Debug("connection state", "conn_id", c.ID, "state", s.String())
	c.queue.Push(workflow.Event{Type: workflow.EventConnectionState, Content: s.String()})
}

// Emit enqueues a progress event for delivery. Safe from any goroutine;
// events enqueued on a closing connection are silently dropped.
func (c *Conn) Emit(ev workflow.Event) {
	c.queue.Push(ev)
}

// StreamToken forwards one model token chunk to the client.
func (c *Conn) StreamToken(token string) {
	c.queue.Push(workflow.Event{Type: workflow.EventLogs, Content: "streaming_output", Output: token})
}

// AwaitFeedback blocks for one human_feedback message or the timeout,
// whichever comes first. Only one wait-point may be pending at a time.
func (c *Conn) AwaitFeedback(ctx context.Context, timeout time.Duration) string {
	ch := make(chan string, 1)
	c.mu.Lock()
	c.feedback = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.feedback = nil
		c.mu.Unlock()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case fb := <-ch:
		return fb
	case <-timer.C:
		c.logger.Info("human feedback timed out", "conn_id", c.ID)
		return ""
	case <-ctx.Done():
		return ""
	case <-c.done:
		return ""
	}
}

// deliverFeedback routes an inbound human_feedback message to the pending
// wait-point. It reports whether anyone was waiting.
func (c *Conn) deliverFeedback(content string) bool {
	c.mu.Lock()
	ch := c.feedback
	c.feedback = nil
	c.mu.Unlock()
	if ch == nil {
		return false
	}
	ch <- content
	return true
}

// sender is the single reader of the outbound queue. Events that require
// an authenticated connection are requeued, not dropped, until the
// handshake completes; order is preserved because only the sender requeues.
func (c *Conn) sender() {
	for {
		ev, ok := c.queue.Pop()
		if !ok {
			return
		}
		if ev.Type == closeSentinel {
			c.finishClose()
			return
		}
		if !c.sendableNow(ev) {
			if c.State() >= StateClosing {
				continue // dead connection; drop and drain to the sentinel
			}
			c.queue.PushFront(ev)
			c.waitForAuthOrClose()
			continue
		}
		if err := c.transport.WriteJSON(ev); err != nil {
			c.logger.Warn("outbound send failed", "conn_id", c.ID, "error", err)
			// The connection is dead; drop remaining traffic and shut down.
			c.beginClose()
		}
	}
}

// sendableNow gates pipeline traffic behind authentication. Handshake and
// lifecycle events always pass.
func (c *Conn) sendableNow(ev workflow.Event) bool {
	switch ev.Type {
	case workflow.EventAuth, workflow.EventConnectionState, workflow.EventError:
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state >= StateAuthenticated
}

// waitForAuthOrClose blocks until the connection either authenticates or
// starts closing.
func (c *Conn) waitForAuthOrClose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.state < StateAuthenticated {
		c.cond.Wait()
	}
}

// beginClose enqueues the shutdown sentinel exactly once. Everything
// already queued ahead of it is still delivered (best effort).
func (c *Conn) beginClose() {
	c.closeOnce.Do(func() {
		c.setState(StateClosing)
		c.queue.Push(workflow.Event{Type: closeSentinel})
		c.queue.Close()
		close(c.done)
	})
}

func (c *Conn) finishClose() {
	_ = c.transport.Close()
	c.setState(StateClosed)
}
