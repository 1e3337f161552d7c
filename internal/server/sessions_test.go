package server

import (
	"sync"
	"testing"
)

func TestSessionGateLimitsConcurrentSessions(t *testing.T) {
	t.Parallel()

	g := NewSessionGate(2)
	if !g.Acquire() || !g.Acquire() {
		t.Fatal("first two sessions should be admitted")
	}
	if g.Acquire() {
		t.Fatal("third session should be rejected")
	}
	g.Release()
	if !g.Acquire() {
		t.Fatal("released slot should be reusable")
	}
	if g.Active() != 2 {
		t.Fatalf("Active() = %d, want 2", g.Active())
	}
}

func TestSessionGateUnlimited(t *testing.T) {
	t.Parallel()

	g := NewSessionGate(0)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !g.Acquire() {
				t.Error("unlimited gate rejected a session")
			}
		}()
	}
	wg.Wait()
	if g.Active() != 50 {
		t.Fatalf("Active() = %d, want 50", g.Active())
	}
}

func TestSessionGateReleaseWithoutAcquirePanics(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Fatal("Release() on an empty gate should panic")
		}
	}()
	NewSessionGate(1).Release()
}
