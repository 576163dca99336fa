package remote

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// RateLimit selects how calls to a Limiter are spaced.
type RateLimit string

const (
	// Debounce runs only the last call of a burst, once the burst has been
	// quiet for the wait duration.
	Debounce RateLimit = "debounce"
	// Throttle runs at most one call per wait duration, leading and trailing.
	Throttle RateLimit = "throttle"
)

// ParseRateLimit accepts "debounce" or "throttle", case-insensitively.
func ParseRateLimit(s string) (RateLimit, error) {
	switch RateLimit(strings.ToLower(strings.TrimSpace(s))) {
	case Debounce, "":
		return Debounce, nil
	case Throttle:
		return Throttle, nil
	default:
		return "", fmt.Errorf("unknown rate limit %q", s)
	}
}

// Limiter spaces calls according to its RateLimit.
// A wait of zero or less runs every call immediately.
type Limiter struct {
	mode RateLimit
	wait time.Duration

	mu    sync.Mutex
	timer *time.Timer
	next  func()
	last  time.Time
}

func NewLimiter(mode RateLimit, wait time.Duration) *Limiter {
	if mode == "" {
		mode = Debounce
	}
	return &Limiter{mode: mode, wait: wait}
}

func (l *Limiter) Do(fn func()) {
	if l.wait <= 0 {
		fn()
		return
	}
	if l.mode == Throttle {
		l.throttle(fn)
		return
	}
	l.debounce(fn)
}

// Cancel drops a scheduled call.
func (l *Limiter) Cancel() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	l.next = nil
}

func (l *Limiter) debounce(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.next = fn
	if l.timer != nil {
		l.timer.Stop()
	}
	l.timer = time.AfterFunc(l.wait, l.fire)
}

func (l *Limiter) throttle(fn func()) {
	l.mu.Lock()
	now := time.Now()
	remaining := l.wait - now.Sub(l.last)
	if remaining <= 0 {
		if l.timer != nil {
			l.timer.Stop()
			l.timer = nil
		}
		l.next = nil
		l.last = now
		l.mu.Unlock()
		fn()
		return
	}

	l.next = fn
	if l.timer == nil {
		l.timer = time.AfterFunc(remaining, l.fire)
	}
	l.mu.Unlock()
}

func (l *Limiter) fire() {
	l.mu.Lock()
	fn := l.next
	l.next = nil
	l.timer = nil
	l.last = time.Now()
	l.mu.Unlock()

	if fn != nil {
		fn()
	}
}
