package common

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"testing"
	"time"
)

func TestInterrupted_Stop(t *testing.T) {
	ch := Interrupted()
	signal.Stop(ch)
	select {
	case sig := <-ch:
		t.Errorf("have %v want no signal", sig)
	default:
	}
}

func TestInterruptContext(t *testing.T) {
	ctx, cancel := InterruptContext(context.Background())
	defer cancel()

	if err := syscall.Kill(os.Getpid(), syscall.SIGINT); err != nil {
		t.Fatal(err)
	}
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("context not canceled by interrupt")
	}
	if ctx.Err() != context.Canceled {
		t.Errorf("have %v want %v", ctx.Err(), context.Canceled)
	}
}

func TestInterruptContext_ParentDone(t *testing.T) {
	parent, cancelParent := context.WithCancel(context.Background())
	ctx, cancel := InterruptContext(parent)
	defer cancel()
	cancelParent()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("child not canceled with parent")
	}
}
