package worker

import (
	"context"
	"testing"
	"time"
)

func TestNewLimiter_BurstFloor(t *testing.T) {
	for _, burst := range []int{-3, 0} {
		if got := NewLimiter(5, burst).burst; got != 1 {
			t.Errorf("NewLimiter(5, %d).burst = %d, want 1", burst, got)
		}
	}
	if got := NewLimiter(5, 7).burst; got != 7 {
		t.Errorf("burst = %d, want 7", got)
	}
}

func TestLimiter_BucketsArePerBackend(t *testing.T) {
	l := NewLimiter(1, 1)

	if err := l.Wait(context.Background(), "openai"); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if l.Allow("openai") {
		t.Error("openai bucket should be empty")
	}
	if !l.Allow("medgemma") {
		t.Error("medgemma has its own bucket")
	}
}

func TestLimiter_WaitRespectsDeadline(t *testing.T) {
	l := NewLimiter(0.01, 1)
	l.Allow("gemini")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx, "gemini"); err == nil {
		t.Error("Wait succeeded although the next token is far past the deadline")
	}
}

func TestLimiter_ZeroRateIsUnlimited(t *testing.T) {
	l := NewLimiter(0, 1)
	for i := range 50 {
		if !l.Allow("anthropic") {
			t.Fatalf("call %d throttled", i)
		}
	}
}

func TestLimiter_SetRateOverridesOneKey(t *testing.T) {
	l := NewLimiter(100, 100)
	l.SetRate("medgemma", 0.1, 1)

	if !l.Allow("medgemma") {
		t.Fatal("first medgemma call throttled")
	}
	if l.Allow("medgemma") {
		t.Error("override burst of 1 not applied")
	}
	if !l.Allow("openai") {
		t.Error("override leaked into another key")
	}
}
