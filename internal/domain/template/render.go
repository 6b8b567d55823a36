package template

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RenderError aborts a render when the parser reported errors anywhere in
// the body structure. No partial output is ever produced.
type RenderError struct {
	Errors []ParseError
}

func (e *RenderError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, pe := range e.Errors {
		msgs[i] = pe.Error()
	}
	return "template render failed: " + strings.Join(msgs, "; ")
}

// RenderResult is the rendered value plus the distinct helper names used,
// in first-seen order.
type RenderResult struct {
	Value   any
	Helpers []string
}

// Renderer substitutes helper values into JSON-like body structures. Helper
// resolution happens at render time: two {{now}} occurrences rendered apart
// may differ, and every {{uuid}} is fresh.
type Renderer struct {
	counters *CounterStore
	newUUID  func() string
	now      func() time.Time
}

// NewRenderer creates a renderer sharing the given counter store across
// requests.
func NewRenderer(counters *CounterStore) *Renderer {
	return &Renderer{
		counters: counters,
		newUUID:  uuid.NewString,
		now:      time.Now,
	}
}

// Render walks v (string / array / object / primitive), parses every string
// and substitutes helper tokens. If any string anywhere carries a parse
// error the whole render fails with a *RenderError listing all of them.
// Object keys are never templated; only values are rewritten.
func (r *Renderer) Render(scenarioName string, v any) (RenderResult, error) {
	var errs []ParseError
	collectErrors(v, &errs)
	if len(errs) > 0 {
		return RenderResult{}, &RenderError{Errors: errs}
	}

	used := &usedSet{seen: make(map[string]bool)}
	rendered := r.renderValue(scenarioName, v, used)
	return RenderResult{Value: rendered, Helpers: used.names}, nil
}

func collectErrors(v any, errs *[]ParseError) {
	switch t := v.(type) {
	case string:
		*errs = append(*errs, Parse(t).Errors...)
	case []any:
		for _, item := range t {
			collectErrors(item, errs)
		}
	case map[string]any:
		for _, val := range t {
			collectErrors(val, errs)
		}
	}
}

func (r *Renderer) renderValue(scenarioName string, v any, used *usedSet) any {
	switch t := v.(type) {
	case string:
		return r.renderString(scenarioName, t, used)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = r.renderValue(scenarioName, item, used)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for key, val := range t {
			out[key] = r.renderValue(scenarioName, val, used)
		}
		return out
	default:
		return v
	}
}

func (r *Renderer) renderString(scenarioName, s string, used *usedSet) string {
	res := Parse(s)
	if len(res.Tokens) == 1 && res.Tokens[0].Type == TextToken {
		return res.Tokens[0].Text
	}

	var b strings.Builder
	for _, tok := range res.Tokens {
		switch tok.Type {
		case TextToken:
			b.WriteString(tok.Text)
		case HelperToken:
			b.WriteString(r.resolve(scenarioName, tok.Helper))
			used.add(tok.Helper)
		}
	}
	return b.String()
}

func (r *Renderer) resolve(scenarioName, helper string) string {
	switch helper {
	case "uuid":
		return r.newUUID()
	case "now":
		return r.now().UTC().Format(time.RFC3339)
	case "increment":
		return strconv.FormatInt(r.counters.Next(scenarioName), 10)
	default:
		// Unreachable: the parser only emits known helpers.
		panic(fmt.Sprintf("unknown helper %q", helper))
	}
}

type usedSet struct {
	seen  map[string]bool
	names []string
}

func (u *usedSet) add(name string) {
	if !u.seen[name] {
		u.seen[name] = true
		u.names = append(u.names, name)
	}
}
