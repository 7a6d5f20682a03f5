package listener

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestReachable(t *testing.T) {
	l := New("https://unifi-controller:8443", "admin", "secret", 30*time.Second, zap.NewNop())
	if !l.Reachable() {
		t.Error("Reachable() = false, want the stubbed true")
	}
}

func TestConnectedDevices_EmptyWithoutSession(t *testing.T) {
	l := New("https://unifi-controller:8443", "admin", "secret", 30*time.Second, zap.NewNop())

	devices := l.ConnectedDevices()
	if devices == nil {
		t.Fatal("ConnectedDevices() = nil, want empty slice")
	}
	if len(devices) != 0 {
		t.Errorf("ConnectedDevices() returned %d devices from a dormant listener", len(devices))
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	l := New("https://unifi-controller:8443", "admin", "secret", 10*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop after context cancellation")
	}
}
