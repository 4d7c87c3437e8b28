package jira

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func fieldServer(calls *atomic.Int32, fail *atomic.Bool) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/3/field" {
			http.NotFound(w, r)
			return
		}
		calls.Add(1)
		if fail.Load() {
			http.Error(w, "gone away", http.StatusBadGateway)
			return
		}
		w.Write([]byte(`[
			{"id":"summary","name":"Summary","custom":false},
			{"id":"customfield_10007","name":"Sprint","custom":true}
		]`))
	}))
}

func TestFieldsCached(t *testing.T) {
	var calls atomic.Int32
	var fail atomic.Bool
	srv := fieldServer(&calls, &fail)
	defer srv.Close()

	c := newTestClient(t, srv)
	for i := 0; i < 3; i++ {
		fields, err := c.Fields(context.Background())
		if err != nil {
			t.Fatalf("Fields: %v", err)
		}
		if len(fields) != 2 {
			t.Fatalf("got %d fields", len(fields))
		}
	}
	if calls.Load() != 1 {
		t.Errorf("upstream calls = %d, want 1", calls.Load())
	}
}

func TestFieldsTTLExpiry(t *testing.T) {
	var calls atomic.Int32
	var fail atomic.Bool
	srv := fieldServer(&calls, &fail)
	defer srv.Close()

	c := newTestClient(t, srv)
	now := time.Now()
	c.fields.now = func() time.Time { return now }

	if _, err := c.Fields(context.Background()); err != nil {
		t.Fatal(err)
	}
	now = now.Add(fieldCacheTTL + time.Minute)
	if _, err := c.Fields(context.Background()); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 2 {
		t.Errorf("upstream calls = %d, want 2 after expiry", calls.Load())
	}
}

func TestFieldsStaleServedOnRefreshFailure(t *testing.T) {
	var calls atomic.Int32
	var fail atomic.Bool
	srv := fieldServer(&calls, &fail)
	defer srv.Close()

	c := newTestClient(t, srv)
	now := time.Now()
	c.fields.now = func() time.Time { return now }

	if _, err := c.Fields(context.Background()); err != nil {
		t.Fatal(err)
	}

	fail.Store(true)
	now = now.Add(fieldCacheTTL + time.Minute)
	fields, err := c.Fields(context.Background())
	if err != nil {
		t.Fatalf("stale copy not served: %v", err)
	}
	if len(fields) != 2 {
		t.Fatalf("stale fields = %+v", fields)
	}
}

func TestFieldsInitialFailurePropagates(t *testing.T) {
	var calls atomic.Int32
	var fail atomic.Bool
	fail.Store(true)
	srv := fieldServer(&calls, &fail)
	defer srv.Close()

	c := newTestClient(t, srv)
	if _, err := c.Fields(context.Background()); err == nil {
		t.Fatal("expected error with no cached copy")
	}
}

func TestRefreshFieldsBypassesTTL(t *testing.T) {
	var calls atomic.Int32
	var fail atomic.Bool
	srv := fieldServer(&calls, &fail)
	defer srv.Close()

	c := newTestClient(t, srv)
	if _, err := c.Fields(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := c.RefreshFields(context.Background()); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 2 {
		t.Errorf("upstream calls = %d, want 2", calls.Load())
	}
}

func TestFieldNames(t *testing.T) {
	var calls atomic.Int32
	var fail atomic.Bool
	srv := fieldServer(&calls, &fail)
	defer srv.Close()

	c := newTestClient(t, srv)
	names, err := c.FieldNames(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "Summary" || names[1] != "Sprint" {
		t.Errorf("names = %v", names)
	}
}
