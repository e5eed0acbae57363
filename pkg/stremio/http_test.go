package stremio

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/login" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"result":{"authKey":"abc123"}}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(WithAPIURL(srv.URL))
	key, err := c.Login(context.Background(), "user@example.com", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if key != "abc123" {
		t.Fatalf("expected authKey abc123, got %q", key)
	}
}

func TestGetCollection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":{"addons":[
			{"transportUrl":"https://a.example.com/manifest.json","manifest":{"id":"a","name":"A","version":"1.0.0"},"flags":{"protected":true}},
			{"transportUrl":"https://b.example.com/manifest.json","manifest":{"id":"b","name":"B","version":"2.0.0"}}
		]}}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(WithAPIURL(srv.URL))
	coll, err := c.GetCollection(context.Background(), "key")
	if err != nil {
		t.Fatalf("GetCollection: %v", err)
	}
	if len(coll) != 2 {
		t.Fatalf("expected 2 addons, got %d", len(coll))
	}
	if !coll[0].IsProtected() || coll[0].Manifest.ID != "a" {
		t.Fatalf("unexpected first descriptor: %+v", coll[0])
	}
	if coll[1].Manifest.Version != "2.0.0" {
		t.Fatalf("unexpected second descriptor: %+v", coll[1])
	}
}

func TestUnauthorizedEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"code":1,"message":"session does not exist"}}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(WithAPIURL(srv.URL))
	if _, err := c.GetCollection(context.Background(), "stale"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestFetchManifest404NoRetry(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewHTTPClient()
	if _, err := c.FetchManifest(context.Background(), srv.URL+"/manifest.json"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Fatalf("404 must not be retried, got %d requests", n)
	}
}

func TestFetchManifestRetriesTransientFailure(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"id":"com.example.x","name":"X","version":"1.2.3"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient()
	m, err := c.FetchManifest(context.Background(), srv.URL+"/manifest.json")
	if err != nil {
		t.Fatalf("FetchManifest: %v", err)
	}
	if m.Version != "1.2.3" {
		t.Fatalf("unexpected manifest: %+v", m)
	}
	if n := atomic.LoadInt32(&hits); n != 3 {
		t.Fatalf("expected 3 attempts, got %d", n)
	}
}

func TestFetchManifestRejectsIncomplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"no id or version"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient()
	_, err := c.FetchManifest(context.Background(), srv.URL+"/manifest.json")
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

func TestCheckReachable(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer up.Close()

	c := NewHTTPClient()
	if !c.CheckReachable(context.Background(), up.URL) {
		t.Fatal("expected live server to be reachable")
	}
	if c.CheckReachable(context.Background(), "http://127.0.0.1:1/nothing") {
		t.Fatal("expected closed port to be unreachable")
	}
}

func TestCheckReachableFallsBackToGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewHTTPClient()
	if !c.CheckReachable(context.Background(), srv.URL) {
		t.Fatal("expected GET fallback to succeed")
	}
}
