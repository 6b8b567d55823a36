package match

import (
	"slices"
	"strings"

	"github.com/sophialabs/contractmock/internal/domain/scenario"
)

// Request represents an HTTP request in domain terms, free of net/http.
// Header keys are expected in canonical form but lookup is case-insensitive.
// Query holds the first value of each parameter.
type Request struct {
	Method  string
	Path    string
	Headers map[string][]string
	Query   map[string]string
}

// Outcome records the evaluation of one rule against a request. Reason is
// empty on a match.
type Outcome struct {
	RuleID string
	Index  int
	Match  bool
	Reason string
	Score  int
}

// Observer is invoked once per rule regardless of outcome. Tracing only,
// never control flow.
type Observer func(Outcome)

// EvalResult holds the best match across a scenario's rules.
type EvalResult struct {
	Rule     *scenario.Rule
	Index    int
	Score    int
	Outcomes []Outcome
}

// Matched reports whether any rule matched.
func (r EvalResult) Matched() bool {
	return r.Rule != nil
}

// Matcher evaluates scenario rules against incoming requests.
type Matcher struct{}

// New creates a Matcher.
func New() *Matcher {
	return &Matcher{}
}

// Evaluate runs every rule against the request and returns the single
// highest-scoring match. Evaluation never short-circuits across rules so the
// observer sees a complete per-rule diagnostic. Ties go to the
// first-declared rule: a later rule replaces the best only on a strictly
// greater score.
func (m *Matcher) Evaluate(req *Request, rules []scenario.Rule, obs Observer) EvalResult {
	result := EvalResult{Index: -1, Outcomes: make([]Outcome, 0, len(rules))}

	for i := range rules {
		rule := &rules[i]
		reason := evaluateRule(req, &rule.Match)
		out := Outcome{
			RuleID: rule.ID,
			Index:  i,
			Match:  reason == "",
			Reason: reason,
			Score:  Score(&rule.Match),
		}
		result.Outcomes = append(result.Outcomes, out)
		if obs != nil {
			obs(out)
		}

		if out.Match && (result.Rule == nil || out.Score > result.Score) {
			result.Rule = rule
			result.Index = i
			result.Score = out.Score
		}
	}

	return result
}

// Score ranks how narrowly a rule is targeted: exact paths beat wildcards,
// and every declared constraint adds weight. Used only to break ties among
// matching rules.
func Score(m *scenario.Match) int {
	score := 0
	if strings.Contains(m.Path, "*") {
		score++
	} else {
		score += 10
	}
	for _, seg := range strings.Split(m.Path, "/") {
		if seg != "" {
			score++
		}
	}
	if m.Method != "" {
		score += 5
	}
	score += 2 * len(m.Headers)
	score += 3 * len(m.Query)
	return score
}

// evaluateRule checks predicates in order (path, method, headers, query) and
// returns the first failure reason, or "" on a match.
func evaluateRule(req *Request, m *scenario.Match) string {
	if !PathMatches(m.Path, req.Path) {
		return "path mismatch"
	}

	if m.Method != "" && !strings.EqualFold(m.Method, req.Method) {
		return "method mismatch"
	}

	for _, key := range sortedKeys(m.Headers) {
		want := m.Headers[key]
		values, found := lookupHeader(req.Headers, key)
		if !found {
			return "header " + key + " missing"
		}
		if want == nil {
			continue // presence is enough
		}
		if !slices.Contains(values, *want) {
			return "header " + key + " mismatch"
		}
	}

	for _, key := range sortedKeys(m.Query) {
		want := m.Query[key]
		got, found := req.Query[key]
		if !found {
			return "query " + key + " missing"
		}
		if got != want {
			return "query " + key + " mismatch"
		}
	}

	return ""
}

// PathMatches tests a rule path pattern against an actual request path.
// Patterns are exact, or carry a single "*" splitting them into a prefix and
// suffix. The prefix must equal the actual path or be a segment-aligned
// leading portion of it; a non-empty suffix must terminate the actual path.
// One trailing slash is normalized away on both sides, except for the root.
func PathMatches(pattern, actual string) bool {
	star := strings.IndexByte(pattern, '*')
	if star < 0 {
		return pattern == actual
	}

	prefix := trimTrailingSlash(pattern[:star])
	suffix := pattern[star+1:]
	path := trimTrailingSlash(actual)

	if prefix != path {
		rest, ok := strings.CutPrefix(path, prefix)
		if !ok || !strings.HasPrefix(rest, "/") {
			return false
		}
	}
	if suffix != "" && !strings.HasSuffix(actual, suffix) {
		return false
	}
	return true
}

func trimTrailingSlash(s string) string {
	if len(s) > 1 && strings.HasSuffix(s, "/") {
		return s[:len(s)-1]
	}
	return s
}

func lookupHeader(headers map[string][]string, key string) ([]string, bool) {
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
