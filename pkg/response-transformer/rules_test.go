package responsetransformer

import (
	"net/http"
	"testing"
)

func makeRes(method, url string) *http.Response {
	req, _ := http.NewRequest(method, url, nil)
	return &http.Response{StatusCode: http.StatusOK, Header: make(http.Header), Request: req}
}

func TestRuleFinder(t *testing.T) {
	rules := Rules{
		Rule{Prefix: "/wp-", Override: "no-store"},
		Rule{Path: "/search", Query: map[string]string{"q": ""}, Override: "max-age=10"},
		Rule{Override: "default"},
	}

	if rule := rules.find(makeRes("GET", "http://a/").Request); rule == nil || rule.Override != "default" {
		t.Fatal("Incorrect rule")
	}
	if rule := rules.find(makeRes("GET", "http://a/wp-admin").Request); rule == nil || rule.Override != "no-store" {
		t.Fatal("Incorrect rule")
	}
	if rule := rules.find(makeRes("GET", "http://a/search?q=go").Request); rule == nil || rule.Override != "max-age=10" {
		t.Fatal("Incorrect rule")
	}
	if rule := rules.find(makeRes("GET", "http://a/search").Request); rule == nil || rule.Override != "default" {
		t.Fatal("Incorrect rule")
	}
}

func TestApplyOnlyToCacheableRequests(t *testing.T) {
	rules := Rules{Rule{Override: "max-age=60"}}

	res := makeRes("POST", "http://a/")
	rules.Apply(res)
	if cc := res.Header.Get("Cache-Control"); cc != "" {
		t.Fatalf("Cache-Control header set on POST response: %s", cc)
	}

	res = makeRes("GET", "http://a/")
	res.StatusCode = http.StatusNotFound
	rules.Apply(res)
	if cc := res.Header.Get("Cache-Control"); cc != "" {
		t.Fatalf("Cache-Control header set on error response: %s", cc)
	}
}

func TestApply(t *testing.T) {
	res := &http.Response{Header: make(http.Header)}
	ruleDefault := Rule{Default: "default"}
	ruleOverride := Rule{Override: "override"}

	// try to apply default
	applyRuleToResponse(ruleDefault, res)
	if cc := res.Header.Get("Cache-Control"); cc != "default" {
		t.Fatalf("Cache-Control header wrong, is '%s'", cc)
	}

	// change cc and check default is not set
	res.Header.Set("Cache-Control", "no-cache")
	applyRuleToResponse(ruleDefault, res)
	if cc := res.Header.Get("Cache-Control"); cc != "no-cache" {
		t.Fatalf("Cache-Control header wrong, is '%s'", cc)
	}

	// check that override works
	applyRuleToResponse(ruleOverride, res)
	if cc := res.Header.Get("Cache-Control"); cc != "override" {
		t.Fatalf("Cache-Control header wrong, is '%s'", cc)
	}
}

func TestExtend(t *testing.T) {
	res := &http.Response{Header: make(http.Header)}
	res.Header.Set("Cache-Control", "max-age=3, Stale-While-Revalidate=1")
	applyRuleToResponse(Rule{Extend: "stale-while-revalidate=30, public"}, res)
	if cc := res.Header.Get("Cache-Control"); cc != "max-age=3, Stale-While-Revalidate=1, public" {
		t.Fatalf("Cache-Control header wrong, is '%s'", cc)
	}

	res.Header.Del("Cache-Control")
	applyRuleToResponse(Rule{Default: "max-age=3", Extend: "stale-while-revalidate=5"}, res)
	if cc := res.Header.Get("Cache-Control"); cc != "max-age=3, stale-while-revalidate=5" {
		t.Fatalf("Cache-Control header wrong, is '%s'", cc)
	}
}
