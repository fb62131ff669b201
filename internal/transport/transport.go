// Package transport streams microphone audio to the study backend over a
// websocket and delivers the backend's JSON messages to a single observer.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/thinkaloud/thinkaloud/internal/observe"
	"github.com/thinkaloud/thinkaloud/internal/recording"
)

type Transport interface {
	// Start returns once the connection is open and capture has begun.
	Start(ctx context.Context, sessionID string) error
	Stop() error
	OnMessage(handler func(Message))
	// OnError receives failures that happen after Start returned:
	// exhausted reconnects and microphone errors.
	OnError(handler func(error))
	IsActive() bool
}

// Capturer owns the microphone. *recording.Recorder satisfies it.
type Capturer interface {
	Config() recording.Config
	Start(ctx context.Context) (<-chan recording.AudioFrame, <-chan error, error)
	Stop() error
	Wait()
}

type Config struct {
	URL          string // ws:// or wss:// endpoint
	SessionParam string // query key carrying the session id, default "user_id"
	Language     string // sent as ?language= when set

	Encoding    string        // recording.EncodingPCM16 or recording.EncodingWAV
	WAVInterval time.Duration // blob length for the wav encoding

	ConnectTimeout       time.Duration
	MaxReconnectAttempts int
	RetryDelays          []time.Duration

	// A reconnected connection that stays open this long counts as healthy
	// and resets the attempt counter.
	StableAfter time.Duration
}

func DefaultConfig() Config {
	return Config{
		URL:                  "ws://localhost:8000/ws",
		SessionParam:         "user_id",
		Language:             "ja",
		Encoding:             recording.EncodingPCM16,
		WAVInterval:          250 * time.Millisecond,
		ConnectTimeout:       5 * time.Second,
		MaxReconnectAttempts: defaultMaxReconnectAttempts,
		RetryDelays:          defaultRetryDelays,
		StableAfter:          10 * time.Second,
	}
}

// WebSocketTransport implements Transport with gorilla/websocket.
type WebSocketTransport struct {
	config   Config
	capturer Capturer
	metrics  *observe.Metrics

	lifecycle sync.Mutex // serializes Start and Stop

	mu        sync.Mutex // guards everything below
	conn      *websocket.Conn
	sessionID string
	running   bool
	ctx       context.Context
	cancel    context.CancelFunc
	onMessage func(Message)
	onError   func(error)

	writeMu sync.Mutex // one writer at a time on conn

	// owned by the read loop
	policy      reconnectPolicy
	connectedAt time.Time
	received    bool

	wg sync.WaitGroup
}

var _ Transport = (*WebSocketTransport)(nil)

// New builds a transport; metrics may be nil.
func New(config Config, capturer Capturer, metrics *observe.Metrics) *WebSocketTransport {
	def := DefaultConfig()
	if config.SessionParam == "" {
		config.SessionParam = def.SessionParam
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = def.ConnectTimeout
	}
	if config.StableAfter <= 0 {
		config.StableAfter = def.StableAfter
	}
	return &WebSocketTransport{
		config:   config,
		capturer: capturer,
		metrics:  metrics,
		policy:   newReconnectPolicy(config.MaxReconnectAttempts, config.RetryDelays),
	}
}

func (t *WebSocketTransport) OnMessage(handler func(Message)) {
	t.mu.Lock()
	t.onMessage = handler
	t.mu.Unlock()
}

func (t *WebSocketTransport) OnError(handler func(error)) {
	t.mu.Lock()
	t.onError = handler
	t.mu.Unlock()
}

func (t *WebSocketTransport) IsActive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}

func (t *WebSocketTransport) Start(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrMissingSessionID
	}

	t.lifecycle.Lock()
	defer t.lifecycle.Unlock()

	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	// goroutines of a session that ended on exhausted reconnects
	t.wg.Wait()
	t.capturer.Wait()

	encoder, err := recording.NewEncoder(t.config.Encoding, t.capturer.Config(), t.config.WAVInterval)
	if err != nil {
		return fmt.Errorf("frame encoder: %w", err)
	}

	// the session outlives the caller's request context
	sessionCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	conn, err := t.dial(ctx, sessionID)
	if err != nil {
		cancel()
		return err
	}

	t.mu.Lock()
	t.conn = conn
	t.sessionID = sessionID
	t.running = true
	t.ctx = sessionCtx
	t.cancel = cancel
	t.mu.Unlock()

	t.policy.reset()
	t.connectedAt = time.Now()
	t.received = false
	t.metrics.StreamStarted(sessionCtx)

	frames, captureErrs, err := t.capturer.Start(sessionCtx)
	if err != nil {
		t.teardown()
		return fmt.Errorf("start capture: %w", err)
	}

	t.wg.Add(2)
	go t.readLoop(sessionCtx)
	go t.pumpAudio(sessionCtx, encoder, frames, captureErrs)

	log.Printf("Transport: streaming session %s", sessionID)
	return nil
}

// Stop is idempotent and a no-op when inactive.
func (t *WebSocketTransport) Stop() error {
	t.lifecycle.Lock()
	defer t.lifecycle.Unlock()

	if !t.teardown() {
		return nil
	}
	t.wg.Wait()
	t.capturer.Wait()

	log.Printf("Transport: stopped")
	return nil
}

// teardown ends the live session: cancels its context, releases the
// microphone and closes the connection with a normal-closure frame.
// It reports whether a session was live.
func (t *WebSocketTransport) teardown() bool {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return false
	}
	t.running = false
	cancel := t.cancel
	conn := t.conn
	t.conn = nil
	ctx := t.ctx
	t.mu.Unlock()

	cancel()
	if err := t.capturer.Stop(); err != nil {
		log.Printf("Transport: stop capture: %v", err)
	}
	if conn != nil {
		t.closeConn(conn)
	}
	t.metrics.StreamStopped(ctx)
	return true
}

func (t *WebSocketTransport) closeConn(conn *websocket.Conn) {
	t.writeMu.Lock()
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	t.writeMu.Unlock()
	conn.Close()
}

func (t *WebSocketTransport) buildURL(sessionID string) (string, error) {
	u, err := url.Parse(t.config.URL)
	if err != nil {
		return "", fmt.Errorf("parse websocket url: %w", err)
	}
	q := u.Query()
	q.Set(t.config.SessionParam, sessionID)
	if t.config.Language != "" {
		q.Set("language", t.config.Language)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (t *WebSocketTransport) dial(ctx context.Context, sessionID string) (*websocket.Conn, error) {
	wsURL, err := t.buildURL(sessionID)
	if err != nil {
		return nil, err
	}

	dialCtx, cancel := context.WithTimeout(ctx, t.config.ConnectTimeout)
	defer cancel()

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: t.config.ConnectTimeout,
	}
	conn, resp, err := dialer.DialContext(dialCtx, wsURL, nil)
	if err != nil {
		if errors.Is(dialCtx.Err(), context.DeadlineExceeded) || isTimeout(err) {
			return nil, fmt.Errorf("%w: not open after %v", ErrConnectTimeout, t.config.ConnectTimeout)
		}
		if resp != nil {
			return nil, fmt.Errorf("websocket dial: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return conn, nil
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (t *WebSocketTransport) currentConn() *websocket.Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn
}

func (t *WebSocketTransport) readLoop(ctx context.Context) {
	defer t.wg.Done()

	for {
		conn := t.currentConn()
		if conn == nil {
			return
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("Transport: connection closed unexpectedly: %v", err)
			t.dropConn(conn)

			if time.Since(t.connectedAt) >= t.config.StableAfter || t.received {
				t.policy.reset()
			}
			if !t.reconnect(ctx) {
				t.exhausted(ctx)
				return
			}
			continue
		}

		t.received = true
		t.dispatch(ctx, data)
	}
}

func (t *WebSocketTransport) dropConn(conn *websocket.Conn) {
	t.mu.Lock()
	if t.conn == conn {
		t.conn = nil
	}
	t.mu.Unlock()
	conn.Close()
}

// reconnect redials with the last session id until the policy runs out.
func (t *WebSocketTransport) reconnect(ctx context.Context) bool {
	t.mu.Lock()
	sessionID := t.sessionID
	t.mu.Unlock()

	for {
		attempt, ok := t.policy.next()
		if !ok {
			return false
		}

		delay := t.policy.delay(attempt)
		log.Printf("Transport: reconnect attempt %d/%d after %v", attempt, t.policy.max, delay)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}

		conn, err := t.dial(ctx, sessionID)
		if err != nil {
			if ctx.Err() != nil {
				return false
			}
			log.Printf("Transport: reconnect failed: %v", err)
			t.metrics.RecordReconnect(ctx, "failed")
			continue
		}

		t.mu.Lock()
		if ctx.Err() != nil {
			t.mu.Unlock()
			conn.Close()
			return false
		}
		t.conn = conn
		t.mu.Unlock()

		t.connectedAt = time.Now()
		t.received = false
		t.metrics.RecordReconnect(ctx, "ok")
		log.Printf("Transport: reconnected")
		return true
	}
}

// exhausted deactivates the transport after the last failed attempt.
// Stop waits on this goroutine, so it must not take the lifecycle lock.
func (t *WebSocketTransport) exhausted(ctx context.Context) {
	t.mu.Lock()
	live := t.running && ctx.Err() == nil
	t.mu.Unlock()
	if !live {
		return
	}

	log.Printf("Transport: giving up after %d reconnect attempts", t.policy.max)
	t.metrics.RecordReconnect(ctx, "exhausted")
	t.teardown()
	t.reportError(ErrReconnectExhausted)
}

func (t *WebSocketTransport) dispatch(ctx context.Context, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Transport: dropping malformed message: %v", err)
		return
	}
	t.metrics.RecordMessage(ctx, msg.Type)

	t.mu.Lock()
	handler := t.onMessage
	t.mu.Unlock()
	if handler != nil {
		handler(msg)
	}
}

func (t *WebSocketTransport) reportError(err error) {
	t.mu.Lock()
	handler := t.onError
	t.mu.Unlock()
	if handler != nil {
		handler(err)
	}
}

// pumpAudio encodes captured frames onto the live connection. Frames that
// arrive while no connection is open are dropped.
func (t *WebSocketTransport) pumpAudio(ctx context.Context, encoder recording.Encoder, frames <-chan recording.AudioFrame, captureErrs <-chan error) {
	defer t.wg.Done()

	var dropped int
	lastDropLog := time.Now()

	for frames != nil || captureErrs != nil {
		select {
		case <-ctx.Done():
			return

		case err, ok := <-captureErrs:
			if !ok {
				captureErrs = nil
				continue
			}
			if err != nil && ctx.Err() == nil {
				t.reportError(fmt.Errorf("microphone: %w", err))
			}

		case frame, ok := <-frames:
			if !ok {
				frames = nil
				continue
			}
			payload, err := encoder.Encode(frame)
			if err != nil {
				log.Printf("Transport: encode frame: %v", err)
				continue
			}
			if payload == nil {
				continue
			}
			if !t.send(payload) {
				t.metrics.RecordDroppedFrame(ctx)
				dropped++
				if time.Since(lastDropLog) > time.Second {
					log.Printf("Transport: dropped %d frames while disconnected", dropped)
					lastDropLog = time.Now()
					dropped = 0
				}
			}
		}
	}
}

func (t *WebSocketTransport) send(payload []byte) bool {
	conn := t.currentConn()
	if conn == nil {
		return false
	}

	t.writeMu.Lock()
	err := conn.WriteMessage(websocket.BinaryMessage, payload)
	t.writeMu.Unlock()
	if err != nil {
		// the read loop notices the broken connection and reconnects
		log.Printf("Transport: write frame: %v", err)
		return false
	}
	return true
}
