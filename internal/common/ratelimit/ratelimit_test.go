package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	tests := []struct {
		rps         float64
		wantEnabled bool
		wantString  string
	}{
		{0, false, "disabled"},
		{-2, false, "disabled"},
		{5, true, "5.00 rps"},
		{0.5, true, "1 request per 2s"},
	}

	for _, tt := range tests {
		l := New(tt.rps)
		if l.Enabled() != tt.wantEnabled {
			t.Errorf("New(%v).Enabled() = %v, want %v", tt.rps, l.Enabled(), tt.wantEnabled)
		}
		if got := l.String(); got != tt.wantString {
			t.Errorf("New(%v).String() = %q, want %q", tt.rps, got, tt.wantString)
		}
		if !tt.wantEnabled && l.RPS() != 0 {
			t.Errorf("New(%v).RPS() = %v, want 0", tt.rps, l.RPS())
		}
	}
}

func TestLimiter_NilIsDisabled(t *testing.T) {
	var l *Limiter
	if l.Enabled() {
		t.Error("nil limiter reports enabled")
	}
	if err := l.Wait(context.Background()); err != nil {
		t.Errorf("nil Wait() = %v", err)
	}
}

func TestLimiter_Disabled(t *testing.T) {
	l := New(0)
	start := time.Now()
	for i := 0; i < 50; i++ {
		if err := l.Wait(context.Background()); err != nil {
			t.Fatalf("Wait() = %v", err)
		}
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Errorf("disabled limiter blocked for %v", time.Since(start))
	}
}

func TestLimiter_Spacing(t *testing.T) {
	l := New(20)

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Wait(context.Background()); err != nil {
			t.Fatalf("Wait() = %v", err)
		}
	}
	// Burst of one: the 2nd and 3rd requests wait ~50ms each.
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("3 requests at 20 rps took %v, want >= ~100ms", elapsed)
	}
}

func TestLimiter_WaitCanceled(t *testing.T) {
	l := New(0.1)
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait() = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx); err == nil {
		t.Error("Wait() with expiring context = nil, want error")
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	l := New(1000)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				if err := l.Wait(context.Background()); err != nil {
					t.Errorf("Wait() = %v", err)
				}
			}
		}()
	}
	wg.Wait()
}
