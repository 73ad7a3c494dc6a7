package ratelimit

import (
	"testing"
	"time"
)

func TestAllowPerKey(t *testing.T) {
	now := time.Date(2024, time.June, 14, 10, 0, 0, 0, time.UTC)
	l := New(1, 2)
	l.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		if !l.Allow("alice") {
			t.Fatalf("Attempt %d within burst was refused", i)
		}
	}
	if l.Allow("alice") {
		t.Fatalf("Attempt beyond burst was allowed")
	}
	if !l.Allow("bob") {
		t.Errorf("One key's attempts limited another key")
	}

	now = now.Add(time.Minute + time.Second)
	if !l.Allow("alice") {
		t.Errorf("Bucket did not refill after a minute")
	}
	if l.Allow("alice") {
		t.Errorf("Bucket refilled more than one token per minute")
	}
}

func TestDisabledAndNil(t *testing.T) {
	l := New(0, 0)
	for i := 0; i < 100; i++ {
		if !l.Allow("alice") {
			t.Fatalf("Disabled limiter refused attempt %d", i)
		}
	}

	var nilLimiter *Limiter
	if !nilLimiter.Allow("alice") {
		t.Errorf("Nil limiter refused an attempt")
	}
}

func TestPruneForgetsIdleKeys(t *testing.T) {
	now := time.Date(2024, time.June, 14, 10, 0, 0, 0, time.UTC)
	l := New(1, 1)
	l.now = func() time.Time { return now }

	l.Allow("old")
	now = now.Add(2 * idleTimeout)
	l.Allow("fresh")
	l.pruneLocked(now)

	if _, ok := l.keys["old"]; ok {
		t.Errorf("Idle key was not pruned")
	}
	if _, ok := l.keys["fresh"]; !ok {
		t.Errorf("Recently used key was pruned")
	}
}
