package server

import (
	"context"
	"net/http"
	"testing"
	"time"

	platformgrpc "github.com/louisbranch/statecraft/internal/platform/grpc"
)

func TestNewRequiresSession(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{HTTPAddr: "127.0.0.1:0", HealthAddr: "127.0.0.1:0"}, Deps{}); err == nil {
		t.Fatal("expected session error")
	}
}

func TestNewRejectsBadAddress(t *testing.T) {
	t.Parallel()

	sess := newTestSession(t, scriptedClient())
	if _, err := New(Config{HTTPAddr: "bad-addr", HealthAddr: "127.0.0.1:0"}, Deps{Session: sess}); err == nil {
		t.Fatal("expected listen error")
	}
}

func TestServeHTTPAndHealthUntilCancel(t *testing.T) {
	t.Parallel()

	sess := newTestSession(t, scriptedClient())
	srv, err := New(Config{HTTPAddr: "127.0.0.1:0", HealthAddr: "127.0.0.1:0"}, Deps{Session: sess})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ctx)
	}()

	waitCtx, waitCancel := context.WithTimeout(ctx, 3*time.Second)
	defer waitCancel()
	if err := platformgrpc.WaitForHealth(waitCtx, srv.HealthAddr(), HealthService, nil); err != nil {
		t.Fatalf("wait for health: %v", err)
	}

	resp, err := http.Get("http://" + srv.Addr() + "/up")
	if err != nil {
		t.Fatalf("get /up: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-serveErr:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestServeAutoAdvances(t *testing.T) {
	t.Parallel()

	sess := newTestSession(t, scriptedClient())
	srv, err := New(Config{
		HTTPAddr:    "127.0.0.1:0",
		HealthAddr:  "127.0.0.1:0",
		AutoAdvance: 20 * time.Millisecond,
	}, Deps{Session: sess})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ctx)
	}()

	deadline := time.Now().Add(3 * time.Second)
	for sess.Notifications().Len() == 0 {
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("auto-advance never produced notifications")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	if err := <-serveErr; err != nil {
		t.Fatalf("serve: %v", err)
	}
}
