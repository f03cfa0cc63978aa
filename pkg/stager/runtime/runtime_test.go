package runtime

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/marmos91/stager/pkg/config"
	"github.com/marmos91/stager/pkg/stager/store"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.GetDefaultConfig()
	cfg.Database = store.Config{
		Type:   store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{Path: ":memory:"},
	}
	disabled := false
	cfg.API.Enabled = &disabled
	cfg.ShutdownTimeout = 5 * time.Second
	return cfg
}

func freePort(t *testing.T) int {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve port: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()
	return port
}

func TestNew(t *testing.T) {
	rt, err := New(context.Background(), testConfig(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() { _ = rt.Close() }()

	if rt.Coordinator() == nil {
		t.Error("expected coordinator to be initialized")
	}
	if rt.APIServer() != nil {
		t.Error("expected no API server when the API is disabled")
	}
	if got := rt.Backends().Count(); got != 1 {
		t.Errorf("expected 1 storage element, got %d", got)
	}

	stats := rt.Runner().Stats()
	for _, name := range []string{"resolve", "submit", "monitor", "finalize"} {
		if _, ok := stats[name]; !ok {
			t.Errorf("expected agent %q to be scheduled", name)
		}
	}
}

func TestNewSkipsDisabledAgents(t *testing.T) {
	cfg := testConfig(t)
	cfg.Agents.Submit.Enabled = false
	cfg.Agents.Monitor.Enabled = false

	rt, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() { _ = rt.Close() }()

	stats := rt.Runner().Stats()
	if len(stats) != 2 {
		t.Fatalf("expected 2 scheduled agents, got %d", len(stats))
	}
	if _, ok := stats["submit"]; ok {
		t.Error("submit agent should not be scheduled")
	}
}

func TestNewInvalidNotifier(t *testing.T) {
	cfg := testConfig(t)
	cfg.Notifier.Type = "carrier-pigeon"

	rt, err := New(context.Background(), cfg)
	if err == nil {
		_ = rt.Close()
		t.Fatal("expected error for unknown notifier type")
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	rt, err := New(context.Background(), testConfig(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rt.Serve(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve() error = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}

	if err := rt.Serve(context.Background()); err == nil {
		t.Error("expected second Serve() to fail")
	}
}

func TestServeAPI(t *testing.T) {
	cfg := testConfig(t)
	enabled := true
	cfg.API.Enabled = &enabled
	cfg.API.Port = freePort(t)

	rt, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- rt.Serve(ctx) }()

	addrCtx, addrCancel := context.WithTimeout(ctx, 5*time.Second)
	defer addrCancel()
	addr, err := rt.APIServer().Addr(addrCtx)
	if err != nil {
		t.Fatalf("API server did not bind: %v", err)
	}

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/health/ready", cfg.API.Port))
	if err != nil {
		t.Fatalf("GET /health/ready on %s: %v", addr, err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 from readiness, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve() error = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}
