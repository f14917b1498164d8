// Package responsetransformer adjusts the headers of origin responses
// before the cache decides whether and how long to store them.
// Use it to give a freshness lifetime or a stale-while-revalidate window to
// content from origins that do not declare one.
package responsetransformer

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

type Rules []Rule

// Rule matches requests by path and query. The first matching rule applies.
type Rule struct {
	Prefix string            `yaml:"prefix"`
	Path   string            `yaml:"path"`
	Query  map[string]string `yaml:"query"`
	// Cache-Control to set if the response has none.
	Default string `yaml:"default"`
	// Cache-Control replacing the one of the response.
	Override string `yaml:"override"`
	// Directives added to the Cache-Control of the response, unless already
	// present, e.g. "stale-while-revalidate=30".
	Extend  string            `yaml:"extend"`
	Headers map[string]string `yaml:"headers"`
}

// Apply applies the matching rule to a successful response to a GET or
// HEAD request. It has the signature of a response modifier.
func (r Rules) Apply(res *http.Response) error {
	// only apply rules for successes
	if res.StatusCode != http.StatusOK || res.Request == nil {
		return nil
	}
	if res.Request.Method != http.MethodGet && res.Request.Method != http.MethodHead {
		return nil
	}
	if rule := r.find(res.Request); rule != nil {
		applyRuleToResponse(*rule, res)
	}
	return nil
}

func applyRuleToResponse(rule Rule, res *http.Response) {
	if rule.Override != "" {
		log.Trace().Msg("Overriding Cache-Control header")
		res.Header.Set("Cache-Control", rule.Override)
	} else if rule.Default != "" && res.Header.Get("Cache-Control") == "" {
		log.Trace().Msg("Applying default Cache-Control header")
		res.Header.Set("Cache-Control", rule.Default)
	}
	if rule.Extend != "" {
		extendCacheControl(res.Header, rule.Extend)
	}
	for name, value := range rule.Headers {
		log.Trace().Msgf("Setting header %s", name)
		res.Header.Set(name, value)
	}
}

// extendCacheControl adds the directives whose names are not in the header yet.
func extendCacheControl(header http.Header, directives string) {
	present := make(map[string]bool)
	var current []string
	for _, field := range header.Values("Cache-Control") {
		for _, d := range strings.Split(field, ",") {
			if d = strings.TrimSpace(d); d != "" {
				current = append(current, d)
				present[directiveName(d)] = true
			}
		}
	}
	for _, d := range strings.Split(directives, ",") {
		if d = strings.TrimSpace(d); d != "" && !present[directiveName(d)] {
			current = append(current, d)
		}
	}
	header.Set("Cache-Control", strings.Join(current, ", "))
}

func directiveName(directive string) string {
	name, _, _ := strings.Cut(directive, "=")
	return strings.ToLower(strings.TrimSpace(name))
}

func (r Rules) find(req *http.Request) *Rule {
	log.Trace().Msgf("Finding rule for request %s:%s", req.Method, req.URL.Path)
rulesLoop:
	for _, rule := range r {
		if rule.Path != "" && rule.Path != req.URL.Path {
			continue
		}
		if rule.Prefix != "" && !strings.HasPrefix(req.URL.Path, rule.Prefix) {
			continue
		}
		if len(rule.Query) > 0 {
			qry := req.URL.Query()
			for name, value := range rule.Query {
				if value == "" && !qry.Has(name) {
					continue rulesLoop
				} else if value != "" && qry.Get(name) != value {
					continue rulesLoop
				}
			}
		}
		return &rule
	}
	return nil
}
