package syncer

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncerCoalescesBursts(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	var fired atomic.Int32

	for i := 0; i < 3; i++ {
		d.Schedule(func() { fired.Add(1) })
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(100 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Fatalf("expected one coalesced run, got %d", got)
	}
}

func TestDebouncerCancelPending(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	var fired atomic.Int32

	d.Schedule(func() { fired.Add(1) })
	d.CancelPending()

	time.Sleep(60 * time.Millisecond)
	if got := fired.Load(); got != 0 {
		t.Fatalf("expected cancelled task not to fire, got %d runs", got)
	}
}

func TestDebouncerRunsAgainAfterFiring(t *testing.T) {
	d := NewDebouncer(10 * time.Millisecond)
	var fired atomic.Int32

	d.Schedule(func() { fired.Add(1) })
	time.Sleep(40 * time.Millisecond)
	d.Schedule(func() { fired.Add(1) })
	time.Sleep(40 * time.Millisecond)

	if got := fired.Load(); got != 2 {
		t.Fatalf("expected two separate runs, got %d", got)
	}
}
