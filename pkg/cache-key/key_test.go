package cachekey

import (
	"net/http"
	"testing"
)

func TestRequestFromKey(t *testing.T) {
	r, _ := http.NewRequest("GET", "http://dev.localhost/page?a=b", nil)
	key, err := Key(r)
	if err != nil {
		t.Fatal(err)
	}
	req, err := RequestFromKey(key)
	if err != nil {
		t.Fatalf("%s: %s", key, err)
	}
	if url := req.URL.String(); url != "http://dev.localhost:80/page?a=b" {
		t.Fatalf("Created request url for key %s is %s", key, url)
	}
}

func TestKeyIsNormalized(t *testing.T) {
	a, _ := http.NewRequest("GET", "http://Example.com/static/dom", nil)
	b, _ := http.NewRequest("GET", "http://example.com:80/static/dom", nil)
	ka, _ := Key(a)
	kb, _ := Key(b)
	if ka != kb {
		t.Fatalf("Keys differ: %q %q", ka, kb)
	}
}

func TestKeyDistinguishesMethodAndCacheKey(t *testing.T) {
	get, _ := http.NewRequest("GET", "http://example.com/", nil)
	head, _ := http.NewRequest("HEAD", "http://example.com/", nil)
	withCK, _ := http.NewRequest("GET", "http://example.com/", nil)
	withCK.Header.Set("Cache-Key", "tenant-1")
	keys := map[string]bool{}
	for _, r := range []*http.Request{get, head, withCK} {
		k, _ := Key(r)
		keys[k] = true
	}
	if len(keys) != 3 {
		t.Fatalf("Keys: %v", keys)
	}
	req, err := RequestFromKey(func() string { k, _ := Key(withCK); return k }())
	if err != nil || req.Header.Get("Cache-Key") != "tenant-1" {
		t.Fatalf("Request from key: %v %v", req, err)
	}
}

func TestURIKeysForUnsafeRequest(t *testing.T) {
	post, _ := http.NewRequest("POST", "http://example.com/list", nil)
	keys, err := URIKeys(post)
	if err != nil {
		t.Fatal(err)
	}
	get, _ := http.NewRequest("GET", "http://example.com/list", nil)
	getKey, _ := Key(get)
	if len(keys) != 2 || keys[0] != getKey {
		t.Fatalf("Keys: %v", keys)
	}
}

func TestRequestFromKeyRejectsPost(t *testing.T) {
	if _, err := RequestFromKey("POST:http://example.com:80/\t"); err != ErrorMethodNotSupported {
		t.Fatalf("Error is %v", err)
	}
}

func TestRelativeURLHasNoKey(t *testing.T) {
	r, _ := http.NewRequest("GET", "/page", nil)
	if _, err := Key(r); err == nil {
		t.Fatal("Expected error")
	}
}
