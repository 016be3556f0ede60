package ro_test

import (
	"context"
	"syscall"
	"testing"
	"time"

	sro "github.com/samber/ro"

	iro "github.com/kestrelhq/agenthost/internal/ro"
)

func TestGracefulShutdownEmitsSignal(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	obs := iro.GracefulShutdownWithSignals(ctx, syscall.SIGUSR1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		results, _, err := sro.CollectWithContext(ctx, obs)
		if err != nil {
			t.Errorf("collect error: %v", err)
			return
		}
		if len(results) != 1 || results[0] != syscall.SIGUSR1 {
			t.Errorf("results = %v, want [SIGUSR1]", results)
		}
	}()

	// Give the subscriber time to install the signal handler.
	time.Sleep(50 * time.Millisecond)
	if err := syscall.Kill(syscall.Getpid(), syscall.SIGUSR1); err != nil {
		t.Fatal(err)
	}

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("timed out waiting for signal observable")
	}
}

func TestWaitForShutdownCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := iro.WaitForShutdown(ctx)
	if err == nil {
		t.Fatal("expected error for canceled context")
	}
}
