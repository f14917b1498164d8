package main

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

func newTestProxy(t *testing.T, store string) (*httptest.Server, *atomic.Int32) {
	var handleCount atomic.Int32
	r := chi.NewRouter()
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		n := handleCount.Add(1)
		w.Header().Set("Cache-Control", "max-age=60, stale-while-revalidate=30")
		w.Header().Set("Content-Type", "text/test")
		fmt.Fprintf(w, "Called %d times", n)
	})
	r.Post("/*", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Write(body)
	})
	origin := httptest.NewServer(r)
	t.Cleanup(origin.Close)

	cfg := Config{}
	cfg.Server.Origin = origin.URL
	cfg.Cache.Store = store
	if err := cfg.validate(); err != nil {
		t.Fatal(err)
	}
	registry := prometheus.NewRegistry()
	client, err := newClient(cfg, registry, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { client.Close() })

	srv := httptest.NewServer(newRouter(cfg, client, registry, zerolog.Nop()))
	t.Cleanup(srv.Close)
	return srv, &handleCount
}

func readBody(t *testing.T, res *http.Response, err error) (*http.Response, string) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatal(err)
	}
	return res, string(body)
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	res, err := http.Get(url)
	return readBody(t, res, err)
}

func TestProxyServesSecondRequestFromCache(t *testing.T) {
	for _, store := range []string{"memory", "sqlite"} {
		t.Run(store, func(t *testing.T) {
			srv, handleCount := newTestProxy(t, store)

			get(t, srv.URL+"/page?q=1")
			res, body := get(t, srv.URL+"/page?q=1")
			if body != "Called 1 times" {
				t.Fatalf("Body is %s", body)
			}
			if handleCount.Load() != 1 {
				t.Fatalf("Origin called %d times", handleCount.Load())
			}
			if ct := res.Header.Get("Content-Type"); ct != "text/test" {
				t.Fatalf("Content-Type header is %s", ct)
			}
			if cs := res.Header.Get("Cache-Status"); !strings.Contains(cs, "hit") {
				t.Fatalf("Cache-Status header is %s", cs)
			}
		})
	}
}

func TestProxyForwardsRequestBody(t *testing.T) {
	srv, _ := newTestProxy(t, "memory")
	res, err := http.Post(srv.URL+"/echo", "text/plain", strings.NewReader("hello"))
	if _, body := readBody(t, res, err); body != "hello" {
		t.Fatalf("Body is %s", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestProxy(t, "memory")
	get(t, srv.URL+"/page")
	get(t, srv.URL+"/page")

	_, body := get(t, srv.URL+"/metrics")
	for _, metric := range []string{
		`cacheclient_responses_total{status="CACHE_HIT"} 1`,
		`cacheclient_responses_total{status="CACHE_MISS"} 1`,
		"cacheclient_leased_connections 0",
		"cacheclient_cache_entries 1",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("Metric %s missing from %s", metric, body)
		}
	}
}
