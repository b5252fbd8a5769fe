package ratelimit

import (
	"sync"
	"testing"
	"time"
)

func newTestLimiter(rate int, window time.Duration) (*SlidingLimiter, *time.Time) {
	l := NewSlidingLimiter(rate, window)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestAdmitWithinWindow(t *testing.T) {
	l, now := newTestLimiter(3, 60*time.Second)

	for i := 0; i < 3; i++ {
		if !l.Admit("client-a") {
			t.Fatalf("request %d expected to be admitted", i+1)
		}
	}
	if l.Admit("client-a") {
		t.Fatal("4th request within window expected to be rejected")
	}

	*now = now.Add(61 * time.Second)
	if !l.Admit("client-a") {
		t.Fatal("request after window elapsed expected to be admitted")
	}
}

func TestRejectionDoesNotConsumeSlot(t *testing.T) {
	l, now := newTestLimiter(1, 60*time.Second)

	if !l.Admit("client-a") {
		t.Fatal("first request expected to be admitted")
	}
	for i := 0; i < 5; i++ {
		if l.Admit("client-a") {
			t.Fatal("expected rejection while window is full")
		}
	}

	// Rejected attempts must not extend the window.
	*now = now.Add(61 * time.Second)
	if !l.Admit("client-a") {
		t.Fatal("expected admission once the only recorded request aged out")
	}
}

func TestIdentifiersAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)

	if !l.Admit("client-a") {
		t.Fatal("client-a expected to be admitted")
	}
	if !l.Admit("client-b") {
		t.Fatal("client-b expected to be admitted independently")
	}
}

func TestNoDoubleAdmissionUnderConcurrency(t *testing.T) {
	l := NewSlidingLimiter(1, time.Minute)

	const callers = 32
	var wg sync.WaitGroup
	results := make(chan bool, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- l.Admit("client-a")
		}()
	}
	wg.Wait()
	close(results)

	admitted := 0
	for ok := range results {
		if ok {
			admitted++
		}
	}
	if admitted != 1 {
		t.Fatalf("expected exactly one admission, got %d", admitted)
	}
}

func TestSweepDropsIdleIdentifiers(t *testing.T) {
	l, now := newTestLimiter(3, time.Minute)

	l.Admit("idle")
	*now = now.Add(3 * time.Minute)
	l.Admit("active")

	removed := l.Sweep()
	if removed != 1 {
		t.Fatalf("expected 1 swept identifier, got %d", removed)
	}
	if _, ok := l.log["idle"]; ok {
		t.Fatal("idle identifier should have been removed")
	}
	if _, ok := l.log["active"]; !ok {
		t.Fatal("active identifier should have been kept")
	}
}
