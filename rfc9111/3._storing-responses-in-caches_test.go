package rfc9111

import (
	"net/http"
	"testing"
)

func TestMustNotStore(t *testing.T) {
	tests := []struct {
		name         string
		method       string
		reqHeader    http.Header
		status       int
		cacheControl string
		shared       bool
		want         bool
	}{
		{"max-age", "GET", nil, 200, "max-age=3, stale-while-revalidate=5", Shared, false},
		{"no freshness", "GET", nil, 200, "public", Shared, true},
		{"no-store", "GET", nil, 200, "max-age=60, no-store", Shared, true},
		{"request no-store", "GET", http.Header{"Cache-Control": {"no-store"}}, 200, "max-age=60", Shared, true},
		{"private shared", "GET", nil, 200, "private, max-age=60", Shared, true},
		{"private in private cache", "GET", nil, 200, "private, max-age=60", Private, false},
		{"s-maxage shared", "GET", nil, 200, "s-maxage=60", Shared, false},
		{"s-maxage private", "GET", nil, 200, "s-maxage=60", Private, true},
		{"post", "POST", nil, 200, "max-age=60", Shared, true},
		{"head", "HEAD", nil, 200, "max-age=60", Shared, false},
		{"server error", "GET", nil, 500, "max-age=60", Shared, true},
		{"not found", "GET", nil, 404, "max-age=60", Shared, false},
		{"authorization", "GET", http.Header{"Authorization": {"Bearer x"}}, 200, "max-age=60", Shared, true},
		{"authorization public", "GET", http.Header{"Authorization": {"Bearer x"}}, 200, "public, max-age=60", Shared, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(tt.method, "http://example.com/", nil)
			if tt.reqHeader != nil {
				req.Header = tt.reqHeader
			}
			header := http.Header{"Cache-Control": {tt.cacheControl}}
			if got := MustNotStore(req, tt.status, header, tt.shared); got != tt.want {
				t.Fatalf("MustNotStore is %v, expected %v", got, tt.want)
			}
		})
	}
}

func TestMustInvalidate(t *testing.T) {
	if !MustInvalidate("POST", 200) {
		t.Fatal("POST 200 should invalidate")
	}
	if MustInvalidate("POST", 500) {
		t.Fatal("POST 500 should not invalidate")
	}
	if MustInvalidate("GET", 200) {
		t.Fatal("GET should not invalidate")
	}
}
