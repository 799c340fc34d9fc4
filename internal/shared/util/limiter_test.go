package util

import (
	"testing"
	"time"
)

func TestLimiter(t *testing.T) {
	// 10 tokens per second, burst of 2
	l := NewLimiter(10, 2)

	if !l.Allow() {
		t.Error("expected first token to be allowed")
	}
	if !l.Allow() {
		t.Error("expected second token to be allowed (burst)")
	}
	if l.Allow() {
		t.Error("expected third token to be rejected (burst exhausted)")
	}
	if d := l.RetryAfter(); d <= 0 || d > 100*time.Millisecond {
		t.Errorf("unexpected retry delay %v", d)
	}

	time.Sleep(150 * time.Millisecond)
	if !l.Allow() {
		t.Error("expected token to be refilled after wait")
	}
}

func TestLimiterUnlimited(t *testing.T) {
	l := NewLimiter(0, 0)
	for i := 0; i < 100; i++ {
		if !l.Allow() {
			t.Fatalf("event %d rejected by an unlimited limiter", i)
		}
	}
	if d := l.RetryAfter(); d != 0 {
		t.Errorf("expected no delay, got %v", d)
	}
}
