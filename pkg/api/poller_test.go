package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestPollerEmitsSnapshots(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"id":"sess-1","status":"in_progress"}`))
	}))
	defer srv.Close()

	p := PollSession(context.Background(), New(srv.URL), "sess-1", 10*time.Millisecond)
	defer p.Stop()

	for i := 0; i < 3; i++ {
		select {
		case s := <-p.Snapshots():
			if s.ID != "sess-1" {
				t.Fatalf("snapshot ID = %q", s.ID)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for snapshot")
		}
	}
	if calls.Load() < 3 {
		t.Errorf("calls = %d, want >= 3", calls.Load())
	}
	if p.ConsecutiveFailures() != 0 {
		t.Errorf("ConsecutiveFailures = %d after successes", p.ConsecutiveFailures())
	}
}

func TestPollerCountsFailuresAndRecovers(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// First two fetches fail, then the server comes back.
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"id":"sess-1","status":"in_progress"}`))
	}))
	defer srv.Close()

	p := PollSession(context.Background(), New(srv.URL), "sess-1", 10*time.Millisecond)
	defer p.Stop()

	select {
	case <-p.Snapshots():
	case <-time.After(2 * time.Second):
		t.Fatalf("never recovered; failures = %d", p.ConsecutiveFailures())
	}
	if p.ConsecutiveFailures() != 0 {
		t.Errorf("ConsecutiveFailures = %d after recovery", p.ConsecutiveFailures())
	}
	if calls.Load() < 3 {
		t.Errorf("calls = %d, want >= 3", calls.Load())
	}
}

func TestPollerStopsOnFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := PollSession(context.Background(), New(srv.URL), "sess-gone", 10*time.Millisecond)
	defer p.Stop()

	select {
	case err := <-p.Fatal():
		if !isFatal(err) {
			t.Fatalf("got %T, want FatalSessionError", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for fatal error")
	}

	// The snapshot channel closes once the loop exits.
	select {
	case _, ok := <-p.Snapshots():
		if ok {
			t.Fatal("received snapshot after fatal error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("snapshot channel never closed")
	}
}

func TestPollerStop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"sess-1","status":"pending"}`))
	}))
	defer srv.Close()

	p := PollSession(context.Background(), New(srv.URL), "sess-1", 10*time.Millisecond)
	p.Stop() // must not hang

	if _, ok := <-p.Snapshots(); ok {
		// A buffered snapshot may still be drained; the channel must end closed.
		if _, ok := <-p.Snapshots(); ok {
			t.Fatal("snapshots still flowing after Stop")
		}
	}
}
