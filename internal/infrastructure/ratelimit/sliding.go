// Package ratelimit implements a sliding-log admission limiter keyed by
// client identifier. State is transient and bounded by Sweep.
package ratelimit

import (
	"sync"
	"time"
)

type SlidingLimiter struct {
	rate   int
	window time.Duration
	now    func() time.Time

	mu  sync.Mutex
	log map[string][]time.Time
}

func NewSlidingLimiter(rate int, window time.Duration) *SlidingLimiter {
	return &SlidingLimiter{
		rate:   rate,
		window: window,
		now:    time.Now,
		log:    make(map[string][]time.Time),
	}
}

// Admit reports whether identifier may proceed and, if so, records the
// request. Check and record happen under one lock so two concurrent calls
// can never both take the last remaining slot.
func (l *SlidingLimiter) Admit(identifier string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	stamps := l.log[identifier]
	kept := stamps[:0]
	for _, ts := range stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= l.rate {
		l.log[identifier] = kept
		return false
	}

	l.log[identifier] = append(kept, now)
	return true
}

// Sweep drops identifiers idle for longer than twice the window and
// returns how many were removed.
func (l *SlidingLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-2 * l.window)
	removed := 0
	for identifier, stamps := range l.log {
		if len(stamps) == 0 || stamps[len(stamps)-1].Before(cutoff) {
			delete(l.log, identifier)
			removed++
		}
	}
	return removed
}
