package notify

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestCommandExecutor_ExecuteSync(t *testing.T) {
	e := NewCommandExecutor(time.Second)
	if err := e.ExecuteSync("exit 0"); err != nil {
		t.Errorf("expected success, got %v", err)
	}
	if err := e.ExecuteSync("exit 3"); err == nil {
		t.Error("expected a non-zero exit to return an error")
	}
}

func TestCommandExecutor_BoundsConcurrency(t *testing.T) {
	e := NewCommandExecutor(2 * time.Second)

	var running, maxRunning atomic.Int32
	n := maxConcurrentNotifications * 3
	done := make(chan struct{}, n)

	for i := 0; i < n; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			if err := e.sem.Acquire(context.Background(), 1); err != nil {
				return
			}
			defer e.sem.Release(1)
			cur := running.Add(1)
			for {
				prev := maxRunning.Load()
				if cur <= prev || maxRunning.CompareAndSwap(prev, cur) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
		}()
	}

	for i := 0; i < n; i++ {
		<-done
	}

	if got := maxRunning.Load(); got > int32(maxConcurrentNotifications) {
		t.Errorf("observed %d concurrent slots, want <= %d", got, maxConcurrentNotifications)
	}
}
