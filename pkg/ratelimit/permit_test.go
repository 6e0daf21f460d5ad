package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestNewPermit_ClampsCapacity(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		want     int
	}{
		{"positive", 3, 3},
		{"one", 1, 1},
		{"zero clamps to one", 0, 1},
		{"negative clamps to one", -5, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPermit(tt.capacity)
			if got := p.Capacity(); got != tt.want {
				t.Errorf("Capacity() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPermit_AcquireRelease(t *testing.T) {
	p := NewPermit(2)
	ctx := context.Background()

	if err := p.Acquire(ctx); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	if err := p.Acquire(ctx); err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
	if got := p.InFlight(); got != 2 {
		t.Errorf("InFlight() = %d, want 2", got)
	}

	p.Release()
	if got := p.InFlight(); got != 1 {
		t.Errorf("InFlight() after release = %d, want 1", got)
	}

	if err := p.Acquire(ctx); err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}

	p.Release()
	p.Release()
	if got := p.InFlight(); got != 0 {
		t.Errorf("InFlight() after draining = %d, want 0", got)
	}
}

func TestPermit_AcquireBlocksAtCapacity(t *testing.T) {
	p := NewPermit(1)
	ctx := context.Background()

	if err := p.Acquire(ctx); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	blockedCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()

	if err := p.Acquire(blockedCtx); err != context.DeadlineExceeded {
		t.Errorf("Acquire at capacity = %v, want context.DeadlineExceeded", err)
	}

	p.Release()
	if err := p.Acquire(ctx); err != nil {
		t.Errorf("Acquire after release: %v", err)
	}
}

func TestPermit_AcquireCanceledContext(t *testing.T) {
	p := NewPermit(1)

	if err := p.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := p.Acquire(ctx); err != context.Canceled {
		t.Errorf("Acquire with canceled context = %v, want context.Canceled", err)
	}
}

func TestPermit_UnblocksWaiter(t *testing.T) {
	p := NewPermit(1)
	ctx := context.Background()

	if err := p.Acquire(ctx); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	acquired := make(chan error, 1)
	go func() {
		acquired <- p.Acquire(ctx)
	}()

	time.Sleep(10 * time.Millisecond)
	p.Release()

	select {
	case err := <-acquired:
		if err != nil {
			t.Errorf("waiter Acquire = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired after release")
	}
}
