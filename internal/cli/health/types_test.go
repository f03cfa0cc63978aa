package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"healthy","data":{"service":"stager","uptime":"1m5s","uptime_sec":65}}`))
	}))
	defer srv.Close()

	resp, err := Fetch(context.Background(), srv.URL+"/")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if !resp.Healthy() {
		t.Errorf("expected healthy, got %q", resp.Status)
	}
	if resp.Data.Service != "stager" || resp.Data.UptimeSec != 65 {
		t.Errorf("unexpected data: %+v", resp.Data)
	}
}

func TestFetchInvalidBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	if _, err := Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for a non-JSON body")
	}
}
