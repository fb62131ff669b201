package testutil

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/thinkaloud/thinkaloud/internal/notify"
	"github.com/thinkaloud/thinkaloud/internal/transport"
)

// CreateTempConfigFile creates a temporary config file for testing
func CreateTempConfigFile(t *testing.T, configContent string) string {
	t.Helper()

	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.toml")

	err := os.WriteFile(configPath, []byte(configContent), 0644)
	if err != nil {
		t.Fatalf("Failed to create temp config file: %v", err)
	}

	return configPath
}

// TestContext returns a context with timeout for testing
func TestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

// WaitForCondition waits for a condition to be true or times out
func WaitForCondition(t *testing.T, condition func() bool, timeout time.Duration) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			t.Fatalf("Condition not met within %v", timeout)
		default:
			if condition() {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
}

// CaptureOutput captures stdout for testing
func CaptureOutput(t *testing.T, fn func()) string {
	t.Helper()

	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	out, _ := io.ReadAll(r)
	return string(out)
}

// FakeTransport implements transport.Transport; tests drive it with Emit
// and Fail.
type FakeTransport struct {
	StartErr error

	mu        sync.Mutex
	active    bool
	starts    int
	stops     int
	sessionID string
	onMessage func(transport.Message)
	onError   func(error)
}

var _ transport.Transport = (*FakeTransport)(nil)

func NewFakeTransport() *FakeTransport {
	return &FakeTransport{}
}

func (f *FakeTransport) Start(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.StartErr != nil {
		return f.StartErr
	}
	f.active = true
	f.sessionID = sessionID
	return nil
}

func (f *FakeTransport) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.active = false
	return nil
}

func (f *FakeTransport) OnMessage(handler func(transport.Message)) {
	f.mu.Lock()
	f.onMessage = handler
	f.mu.Unlock()
}

func (f *FakeTransport) OnError(handler func(error)) {
	f.mu.Lock()
	f.onError = handler
	f.mu.Unlock()
}

func (f *FakeTransport) IsActive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

// Emit delivers msg to the registered observer as the read loop would.
func (f *FakeTransport) Emit(msg transport.Message) {
	f.mu.Lock()
	handler := f.onMessage
	f.mu.Unlock()
	if handler != nil {
		handler(msg)
	}
}

func (f *FakeTransport) Fail(err error) {
	f.mu.Lock()
	handler := f.onError
	f.mu.Unlock()
	if handler != nil {
		handler(err)
	}
}

func (f *FakeTransport) Starts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

func (f *FakeTransport) Stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

func (f *FakeTransport) SessionID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessionID
}

// FakeDisplay implements display.Pusher.
type FakeDisplay struct {
	Err      error
	Accepted string // returned instead of the pushed text when set

	mu     sync.Mutex
	pushed []string
}

func (f *FakeDisplay) Push(ctx context.Context, text, userID string) (string, error) {
	f.mu.Lock()
	f.pushed = append(f.pushed, text)
	f.mu.Unlock()
	if f.Err != nil {
		return "", f.Err
	}
	if f.Accepted != "" {
		return f.Accepted, nil
	}
	return text, nil
}

func (f *FakeDisplay) Pushed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.pushed...)
}

// RecordingNotifier implements notify.Notifier and remembers what it was
// asked to show.
type RecordingNotifier struct {
	mu     sync.Mutex
	sent   []notify.MessageType
	errors []string
}

func (n *RecordingNotifier) Send(mt notify.MessageType, detail string) {
	n.mu.Lock()
	n.sent = append(n.sent, mt)
	n.mu.Unlock()
}

func (n *RecordingNotifier) Error(msg string) {
	n.mu.Lock()
	n.errors = append(n.errors, msg)
	n.mu.Unlock()
}

func (n *RecordingNotifier) Has(mt notify.MessageType) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, s := range n.sent {
		if s == mt {
			return true
		}
	}
	return false
}

func (n *RecordingNotifier) Errors() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.errors...)
}

// ScriptedClassifier answers from Answers in order, then from Decide, then
// "no". Every utterance it was asked about is kept.
type ScriptedClassifier struct {
	Answers []bool
	Decide  func(utterance string) bool
	Err     error

	mu    sync.Mutex
	asked []string
}

func (c *ScriptedClassifier) IsFeedback(ctx context.Context, utterance, currentText string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.asked = append(c.asked, utterance)
	if c.Err != nil {
		return false, c.Err
	}
	if len(c.Answers) > 0 {
		ans := c.Answers[0]
		c.Answers = c.Answers[1:]
		return ans, nil
	}
	if c.Decide != nil {
		return c.Decide(utterance), nil
	}
	return false, nil
}

func (c *ScriptedClassifier) Asked() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.asked...)
}

// FakeEngine implements correction.Engine. Apply waits on Block when set,
// giving up when ctx ends.
type FakeEngine struct {
	PlanFunc  func(text, feedback string) (string, error)
	ApplyFunc func(text, plan, feedback string) (string, error)
	Block     chan struct{}

	mu    sync.Mutex
	calls []string
}

func (e *FakeEngine) Plan(ctx context.Context, text, feedback string) (string, error) {
	e.record("plan")
	if e.PlanFunc != nil {
		return e.PlanFunc(text, feedback)
	}
	return "plan: " + feedback, nil
}

func (e *FakeEngine) Apply(ctx context.Context, text, plan, feedback string) (string, error) {
	if e.Block != nil {
		select {
		case <-e.Block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	e.record("apply")
	if e.ApplyFunc != nil {
		return e.ApplyFunc(text, plan, feedback)
	}
	return text + " (" + feedback + ")", nil
}

func (e *FakeEngine) record(call string) {
	e.mu.Lock()
	e.calls = append(e.calls, call)
	e.mu.Unlock()
}

func (e *FakeEngine) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}
