package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/SlyyCooper/agenai/pkg/research"
	"github.com/SlyyCooper/agenai/pkg/workflow"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTransport is an in-memory Transport: inbound messages are fed through
// a channel, outbound events are recorded.
type fakeTransport struct {
	in        chan []byte
	mu        sync.Mutex
	out       []workflow.Event
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{in: make(chan []byte, 16), closed: make(chan struct{})}
}

func (t *fakeTransport) ReadJSON(v interface{}) error {
	select {
	case b := <-t.in:
		return json.Unmarshal(b, v)
	case <-t.closed:
		return io.EOF
	}
}

func (t *fakeTransport) WriteJSON(v interface{}) error {
	ev, ok := v.(workflow.Event)
	if !ok {
		return fmt.Errorf("unexpected outbound type %T", v)
	}
	t.mu.Lock()
	t.out = append(t.out, ev)
	t.mu.Unlock()
	return nil
}

func (t *fakeTransport) Close() error {
	t.closeOnce.Do(func() { close(t.closed) })
	return nil
}

func (t *fakeTransport) send(tb testing.TB, v interface{}) {
	tb.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		tb.Fatalf("marshal inbound: %v", err)
	}
	t.in <- b
}

func (t *fakeTransport) snapshot() []workflow.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]workflow.Event(nil), t.out...)
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(tb testing.TB, what string, cond func() bool) {
	tb.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	tb.Fatalf("timed out waiting for %s", what)
}

// fakeRunner records research requests and optionally waits on feedback.
type fakeRunner struct {
	mu           sync.Mutex
	queries      []research.Query
	owners       []string
	wantFeedback bool
	feedback     chan string
}

func (r *fakeRunner) Run(ctx context.Context, query research.Query, ownerID string,
	sink workflow.ProgressSink, _ *slog.Logger) (*workflow.ReportDocument, error) {

	r.mu.Lock()
	r.queries = append(r.queries, query)
	r.owners = append(r.owners, ownerID)
	r.mu.Unlock()

	if r.wantFeedback {
		r.feedback <- sink.AwaitFeedback(ctx, time.Second)
	}
	sink.Emit(workflow.Event{Type: workflow.EventReport, Content: query.Text, Output: "# report"})
	return nil, nil
}

func TestEventQueueFIFOPerProducer(t *testing.T) {
	q := newEventQueue()
	const perProducer = 50
	producers := []string{"A", "B", "C"}

	var wg sync.WaitGroup
	for _, p := range producers {
		wg.Add(1)
		go func(p string) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(workflow.Event{Type: "logs", Content: p, Output: fmt.Sprintf("%d", i)})
			}
		}(p)
	}

	var popped []workflow.Event
	done := make(chan struct{})
	go func() {
		defer close(done)
		for len(popped) < len(producers)*perProducer {
			ev, ok := q.Pop()
			if !ok {
				return
			}
			popped = append(popped, ev)
		}
	}()
	wg.Wait()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not drain the queue")
	}

	// Global order is unspecified, but each producer's events must come out
	// in the order that producer pushed them.
	last := map[string]int{"A": -1, "B": -1, "C": -1}
	for _, ev := range popped {
		var n int
		fmt.Sscanf(ev.Output, "%d", &n)
		if n != last[ev.Content]+1 {
			t.Fatalf("producer %s: event %d arrived after %d", ev.Content, n, last[ev.Content])
		}
		last[ev.Content] = n
	}
}

func TestEventQueuePushFrontPreservesHead(t *testing.T) {
	q := newEventQueue()
	q.Push(workflow.Event{Output: "second"})
	q.Push(workflow.Event{Output: "third"})
	q.PushFront(workflow.Event{Output: "first"})

	for _, want := range []string{"first", "second", "third"} {
		ev, ok := q.Pop()
		if !ok || ev.Output != want {
			t.Fatalf("Pop() = (%q, %v), want %q", ev.Output, ok, want)
		}
	}
}

func TestAuthTimeoutClosesWithoutAuthenticating(t *testing.T) {
	transport := newFakeTransport()
	verifier := NewStaticVerifier(map[string]string{"tok": "user-1"})
	m := NewManager(verifier, &fakeRunner{}, 20*time.Millisecond, testLogger())

	done := make(chan struct{})
	go func() {
		defer close(done)
		m.HandleConn(context.Background(), transport) // no auth message ever arrives
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("HandleConn did not return after the auth timeout")
	}

	var sawAuthenticated, sawClosed, sawAuthFailed bool
	for _, ev := range transport.snapshot() {
		if ev.Type == workflow.EventConnectionState && ev.Content == "AUTHENTICATED" {
			sawAuthenticated = true
		}
		if ev.Type == workflow.EventConnectionState && ev.Content == "CLOSING" {
			sawClosed = true
		}
		if ev.Type == workflow.EventAuth && ev.Content == "failed" {
			sawAuthFailed = true
		}
	}
	if sawAuthenticated {
		t.Error("connection reached AUTHENTICATED without credentials")
	}
	if !sawClosed || !sawAuthFailed {
		t.Errorf("missing close/auth-failure events: %+v", transport.snapshot())
	}
}

func TestInvalidTokenRejected(t *testing.T) {
	transport := newFakeTransport()
	verifier := NewStaticVerifier(map[string]string{"tok": "user-1"})
	m := NewManager(verifier, &fakeRunner{}, time.Second, testLogger())

	transport.send(t, map[string]string{"type": "auth", "token": "wrong"})

	done := make(chan struct{})
	go func() { defer close(done); m.HandleConn(context.Background(), transport) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("HandleConn did not return for an invalid token")
	}

	for _, ev := range transport.snapshot() {
		if ev.Type == workflow.EventAuth && ev.Content == "success" {
			t.Fatal("invalid token produced an auth success event")
		}
	}
	if m.ConnectionsFor("user-1") != 0 {
		t.Error("rejected connection was registered in the multimap")
	}
}

func TestPreAuthEventsHeldUntilAuthenticated(t *testing.T) {
	conn := newConn(newFakeTransport(), testLogger())
	transport := conn.transport.(*fakeTransport)
	conn.setState(StateConnected)
	go conn.sender()

	// Pipeline traffic queued before the handshake completes.
	conn.Emit(workflow.Event{Type: workflow.EventLogs, Content: "state", Output: "PLANNING"})
	conn.Emit(workflow.Event{Type: workflow.EventLogs, Content: "state", Output: "RESEARCHING"})

	// The gated events must not reach the transport yet.
	time.Sleep(20 * time.Millisecond)
	for _, ev := range transport.snapshot() {
		if ev.Type == workflow.EventLogs {
			t.Fatalf("pipeline event delivered before auth: %+v", ev)
		}
	}

	conn.setState(StateAuthenticated)
	waitFor(t, "held events to flush", func() bool {
		var logs []workflow.Event
		for _, ev := range transport.snapshot() {
			if ev.Type == workflow.EventLogs {
				logs = append(logs, ev)
			}
		}
		return len(logs) == 2 && logs[0].Output == "PLANNING" && logs[1].Output == "RESEARCHING"
	})

	conn.beginClose()
}

func TestUnknownMessageTypeIsNonFatal(t *testing.T) {
	transport := newFakeTransport()
	verifier := NewStaticVerifier(map[string]string{"tok": "user-1"})
	runner := &fakeRunner{}
	m := NewManager(verifier, runner, time.Second, testLogger())

	go m.HandleConn(context.Background(), transport)

	transport.send(t, map[string]string{"type": "auth", "token": "tok"})
	waitFor(t, "auth success", func() bool {
		for _, ev := range transport.snapshot() {
			if ev.Type == workflow.EventAuth && ev.Content == "success" {
				return true
			}
		}
		return false
	})

	transport.send(t, map[string]string{"type": "bogus"})
	waitFor(t, "unknown_type error event", func() bool {
		for _, ev := range transport.snapshot() {
			if ev.Type == workflow.EventError && ev.Content == "unknown_type" {
				return true
			}
		}
		return false
	})

	// Still authenticated and still serving requests.
	if m.ConnectionsFor("user-1") != 1 {
		t.Error("connection dropped after an unknown message type")
	}
	transport.send(t, map[string]string{"type": "research_request", "task": "solar tariffs"})
	waitFor(t, "report event", func() bool {
		for _, ev := range transport.snapshot() {
			if ev.Type == workflow.EventReport {
				return true
			}
		}
		return false
	})
	transport.Close()
}

func TestResearchRequestDispatch(t *testing.T) {
	transport := newFakeTransport()
	verifier := NewStaticVerifier(map[string]string{"tok": "user-1"})
	runner := &fakeRunner{}
	m := NewManager(verifier, runner, time.Second, testLogger())

	go m.HandleConn(context.Background(), transport)

	transport.send(t, map[string]string{"type": "auth", "token": "tok"})
	transport.send(t, map[string]interface{}{
		"type":        "research_request",
		"task":        "economic impact of solar tariffs",
		"report_type": "detailed_report",
		"tone":        "analytical",
	})

	waitFor(t, "runner invocation", func() bool {
		runner.mu.Lock()
		defer runner.mu.Unlock()
		return len(runner.queries) == 1
	})

	runner.mu.Lock()
	query, owner := runner.queries[0], runner.owners[0]
	runner.mu.Unlock()
	if query.Text != "economic impact of solar tariffs" || query.ReportType != research.ReportTypeDetailed || query.Tone != "analytical" {
		t.Errorf("runner got query %+v", query)
	}
	if owner != "user-1" {
		t.Errorf("runner got owner %q, want user-1", owner)
	}
	transport.Close()
}

func TestBadResearchRequestEmitsErrorOnly(t *testing.T) {
	transport := newFakeTransport()
	verifier := NewStaticVerifier(map[string]string{"tok": "user-1"})
	runner := &fakeRunner{}
	m := NewManager(verifier, runner, time.Second, testLogger())

	go m.HandleConn(context.Background(), transport)

	transport.send(t, map[string]string{"type": "auth", "token": "tok"})
	transport.send(t, map[string]string{"type": "research_request", "task": ""})

	waitFor(t, "bad_request error event", func() bool {
		for _, ev := range transport.snapshot() {
			if ev.Type == workflow.EventError && ev.Content == "bad_request" {
				return true
			}
		}
		return false
	})
	runner.mu.Lock()
	defer runner.mu.Unlock()
	if len(runner.queries) != 0 {
		t.Error("invalid request reached the runner")
	}
	transport.Close()
}

func TestHumanFeedbackRoutedToWaitingRun(t *testing.T) {
	transport := newFakeTransport()
	verifier := NewStaticVerifier(map[string]string{"tok": "user-1"})
	runner := &fakeRunner{wantFeedback: true, feedback: make(chan string, 1)}
	m := NewManager(verifier, runner, time.Second, testLogger())

	go m.HandleConn(context.Background(), transport)

	transport.send(t, map[string]string{"type": "auth", "token": "tok"})
	transport.send(t, map[string]string{"type": "research_request", "task": "solar tariffs"})

	waitFor(t, "runner start", func() bool {
		runner.mu.Lock()
		defer runner.mu.Unlock()
		return len(runner.queries) == 1
	})
	// Give the run a moment to reach its wait-point before answering.
	time.Sleep(10 * time.Millisecond)
	transport.send(t, map[string]string{"type": "human_feedback", "content": "focus on storage"})

	select {
	case fb := <-runner.feedback:
		if fb != "focus on storage" {
			t.Errorf("feedback = %q", fb)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("feedback never reached the waiting run")
	}
	transport.Close()
}

func TestConnectionRemovedFromMultimapOnClose(t *testing.T) {
	verifier := NewStaticVerifier(map[string]string{"tok": "user-1"})
	m := NewManager(verifier, &fakeRunner{}, time.Second, testLogger())

	first := newFakeTransport()
	second := newFakeTransport()
	go m.HandleConn(context.Background(), first)
	go m.HandleConn(context.Background(), second)

	first.send(t, map[string]string{"type": "auth", "token": "tok"})
	second.send(t, map[string]string{"type": "auth", "token": "tok"})
	waitFor(t, "both connections registered", func() bool {
		return m.ConnectionsFor("user-1") == 2
	})

	first.Close()
	waitFor(t, "first connection deregistered", func() bool {
		return m.ConnectionsFor("user-1") == 1
	})

	second.Close()
	waitFor(t, "identity entry removed", func() bool {
		return m.ConnectionsFor("user-1") == 0
	})
}

func TestConnStateString(t *testing.T) {
	tests := []struct {
		state    ConnState
		expected string
	}{
		{StateConnecting, "CONNECTING"},
		{StateConnected, "CONNECTED"},
		{StateAuthenticating, "AUTHENTICATING"},
		{StateAuthenticated, "AUTHENTICATED"},
		{StateClosing, "CLOSING"},
		{StateClosed, "CLOSED"},
		{ConnState(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.expected {
			t.Errorf("ConnState(%d).String() = %q, want %q", tt.state, got, tt.expected)
		}
	}

	// The lifecycle only moves forward; the gating comparisons in the
	// sender depend on this ordering.
	order := []ConnState{StateConnecting, StateConnected, StateAuthenticating, StateAuthenticated, StateClosing, StateClosed}
	for i := 1; i < len(order); i++ {
		if order[i-1] >= order[i] {
			t.Errorf("state %s is not ordered before %s", order[i-1], order[i])
		}
	}
}

func TestStaticVerifier(t *testing.T) {
	v := NewStaticVerifier(map[string]string{"tok": "user-1"})
	if userID, err := v.Verify(context.Background(), "tok"); err != nil || userID != "user-1" {
		t.Errorf("Verify(tok) = (%q, %v)", userID, err)
	}
	if _, err := v.Verify(context.Background(), "nope"); err != ErrInvalidToken {
		t.Errorf("Verify(nope) error = %v, want ErrInvalidToken", err)
	}
	v.Add("tok2", "user-2")
	if userID, _ := v.Verify(context.Background(), "tok2"); userID != "user-2" {
		t.Errorf("Verify(tok2) = %q", userID)
	}
}
