package transport

import "time"

var defaultRetryDelays = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	4 * time.Second,
}

const defaultMaxReconnectAttempts = 3

// reconnectPolicy counts consecutive reconnect attempts against a cap.
// Only the read loop touches it while a session is live.
type reconnectPolicy struct {
	max      int
	delays   []time.Duration
	attempts int
}

func newReconnectPolicy(max int, delays []time.Duration) reconnectPolicy {
	if max <= 0 {
		max = defaultMaxReconnectAttempts
	}
	if len(delays) == 0 {
		delays = defaultRetryDelays
	}
	return reconnectPolicy{max: max, delays: delays}
}

// next consumes one attempt. ok is false once the cap is reached.
func (p *reconnectPolicy) next() (attempt int, ok bool) {
	if p.attempts >= p.max {
		return p.attempts, false
	}
	p.attempts++
	return p.attempts, true
}

func (p *reconnectPolicy) reset() {
	p.attempts = 0
}

// delay returns the wait before the given 1-based attempt, reusing the last
// configured delay past the end of the list.
func (p *reconnectPolicy) delay(attempt int) time.Duration {
	if attempt < 1 || len(p.delays) == 0 {
		return 0
	}
	i := attempt - 1
	if i >= len(p.delays) {
		i = len(p.delays) - 1
	}
	return p.delays[i]
}
