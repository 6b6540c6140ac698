package server

import (
	"testing"
	"time"
)

func TestRateLimiter_RefillsOverWindow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := newRateLimiter(10, 10*time.Second)
	l.now = func() time.Time { return now }

	for i := 0; i < 10; i++ {
		if ok, _ := l.reserve("a"); !ok {
			t.Fatalf("request %d rejected", i+1)
		}
	}

	ok, wait := l.reserve("a")
	if ok {
		t.Fatal("11th request allowed")
	}
	if wait <= 0 || wait > time.Second {
		t.Errorf("wait = %v, want (0, 1s]", wait)
	}

	now = now.Add(10 * time.Second)
	for i := 0; i < 10; i++ {
		if ok, _ := l.reserve("a"); !ok {
			t.Fatalf("request %d after window rejected", i+1)
		}
	}
}

func TestRateLimiter_SweepsIdleClients(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := newRateLimiter(10, 10*time.Second)
	l.now = func() time.Time { return now }

	l.reserve("a")
	l.reserve("b")
	if l.size() != 2 {
		t.Fatalf("size() = %d, want 2", l.size())
	}

	now = now.Add(time.Minute)
	l.reserve("c")

	if l.size() != 1 {
		t.Errorf("size() = %d after sweep, want 1", l.size())
	}
}
