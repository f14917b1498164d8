package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

func TestRouteOf(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"http://localhost:8080/static/dom", "http://localhost:8080"},
		{"http://Example.com/", "http://example.com:80"},
		{"https://example.com/a?b=c", "https://example.com:443"},
		{"http://[::1]:9000/", "http://[::1]:9000"},
	}
	for _, tt := range tests {
		u, _ := url.Parse(tt.url)
		route, err := RouteOf(u)
		if err != nil {
			t.Fatalf("%s: %s", tt.url, err)
		}
		if route.String() != tt.want {
			t.Fatalf("Route of %s is %s, expected %s", tt.url, route, tt.want)
		}
	}
}

func TestRouteOfRejectsRelativeAndUnknownScheme(t *testing.T) {
	for _, raw := range []string{"/static/dom", "ftp://example.com/"} {
		u, _ := url.Parse(raw)
		if _, err := RouteOf(u); err == nil {
			t.Fatalf("Expected error for %s", raw)
		}
	}
}

func TestConnReusesConnection(t *testing.T) {
	var (
		mu      sync.Mutex
		remotes []string
	)
	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		remotes = append(remotes, r.RemoteAddr)
		mu.Unlock()
		w.Write([]byte("ok"))
	})
	server := httptest.NewServer(r)
	defer server.Close()

	u, _ := url.Parse(server.URL)
	route, _ := RouteOf(u)
	conn, err := NewDialer(Config{ConnectTimeout: time.Second, SocketTimeout: time.Second}, zerolog.Nop()).
		Dial(context.Background(), route)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	for i := 0; i < 3; i++ {
		req, _ := http.NewRequest("GET", server.URL+"/", nil)
		res, err := conn.RoundTrip(req)
		if err != nil {
			t.Fatal(err)
		}
		io.ReadAll(res.Body)
		res.Body.Close()
	}
	mu.Lock()
	defer mu.Unlock()
	if len(remotes) != 3 || remotes[0] != remotes[1] || remotes[1] != remotes[2] {
		t.Fatalf("Requests came from %v", remotes)
	}
}

func TestSocketTimeout(t *testing.T) {
	release := make(chan struct{})
	r := chi.NewRouter()
	r.Get("/slow", func(w http.ResponseWriter, r *http.Request) {
		<-release
	})
	server := httptest.NewServer(r)
	defer server.Close()
	defer close(release)

	u, _ := url.Parse(server.URL)
	route, _ := RouteOf(u)
	conn, _ := NewDialer(Config{ConnectTimeout: time.Second, SocketTimeout: 100 * time.Millisecond}, zerolog.Nop()).
		Dial(context.Background(), route)
	defer conn.Close()

	req, _ := http.NewRequest("GET", server.URL+"/slow", nil)
	start := time.Now()
	if _, err := conn.RoundTrip(req); err == nil {
		t.Fatal("Expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("Timeout took %s", elapsed)
	}
}
