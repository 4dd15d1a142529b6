package metrics

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"
)

func TestNewRegistersAllMetricsWithoutCollision(t *testing.T) {
	m, reg := New()
	m.EventsReceived.Inc()
	m.JobsEnqueued.WithLabelValues("add").Inc()
	m.IndexDocuments.Set(42)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatalf("expected at least one metric family registered")
	}
}

func TestServeNoopWhenAddrEmpty(t *testing.T) {
	_, reg := New()
	if err := Serve(context.Background(), "", reg); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
}

func freeAddr(t *testing.T) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := lis.Addr().String()
	lis.Close()
	return addr
}

func TestServeExposesMetricsEndpoint(t *testing.T) {
	m, reg := New()
	m.EventsReceived.Inc()

	addr := freeAddr(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- Serve(ctx, addr, reg) }()

	var resp *http.Response
	var getErr error
	for i := 0; i < 20; i++ {
		resp, getErr = http.Get("http://" + addr + "/metrics")
		if getErr == nil {
			break
		}
		time.Sleep(25 * time.Millisecond)
	}
	if getErr != nil {
		t.Fatalf("GET /metrics: %v", getErr)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case <-errCh:
	case <-time.After(time.Second):
		t.Fatal("Serve did not shut down after cancel")
	}
}
