package services_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sophialabs/contractmock/internal/domain/scenario"
	"github.com/sophialabs/contractmock/internal/infrastructure/services"
)

const validScenario = `
scenario: orders-down
description: payment outage
version: 1.0.0
rules:
  - id: list-blocked
    match:
      path: /orders
      method: GET
      query:
        region: eu
      headers:
        Authorization: null
    respond:
      status: 503
      body:
        message: "service unavailable"
      headers:
        Retry-After: "30"
      delayMs: 100
`

func validate(t *testing.T, doc string) (*scenario.Scenario, []services.ValidationError) {
	t.Helper()
	v := services.NewValidator()
	return v.ValidateFile("orders-down.yaml", []byte(doc))
}

func findByPath(errs []services.ValidationError, path string) (services.ValidationError, bool) {
	for _, e := range errs {
		if e.Path == path {
			return e, true
		}
	}
	return services.ValidationError{}, false
}

func TestValidateFile_ValidScenario(t *testing.T) {
	sc, errs := validate(t, validScenario)
	if sc == nil {
		t.Fatalf("expected scenario, got errors: %v", errs)
	}
	for _, e := range errs {
		if e.Severity == services.SeverityError {
			t.Fatalf("unexpected error: %s", e)
		}
	}

	if sc.Name != "orders-down" || sc.Version != "1.0.0" {
		t.Errorf("got %s/%s, want orders-down/1.0.0", sc.Name, sc.Version)
	}
	if len(sc.Rules) != 1 {
		t.Fatalf("rules = %d, want 1", len(sc.Rules))
	}
	rule := sc.Rules[0]
	if rule.ID != "list-blocked" || rule.Match.Path != "/orders" || rule.Match.Method != "GET" {
		t.Errorf("unexpected rule: %+v", rule)
	}
	if rule.Match.Query["region"] != "eu" {
		t.Errorf("query = %v", rule.Match.Query)
	}
	if val, ok := rule.Match.Headers["Authorization"]; !ok || val != nil {
		t.Errorf("Authorization should be a presence-only predicate, got %v", rule.Match.Headers)
	}
	if rule.Respond.Status != 503 || !rule.Respond.HasBody || rule.Respond.DelayMs != 100 {
		t.Errorf("unexpected respond: %+v", rule.Respond)
	}
	if rule.Respond.Headers["Retry-After"] != "30" {
		t.Errorf("respond headers = %v", rule.Respond.Headers)
	}
}

func TestValidateFile_RootShape(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		path string
	}{
		{"missing scenario name", "rules:\n  - id: a\n    match: {path: /a}\n    respond: {status: 200}\n", "scenario"},
		{"missing rules", "scenario: s\n", "rules"},
		{"empty rules", "scenario: s\nrules: []\n", "rules"},
		{"bad version", "scenario: s\nversion: v1\nrules:\n  - match: {path: /a}\n    respond: {status: 200}\n", "version"},
		{"unknown root key", "scenario: s\nextra: 1\nrules:\n  - match: {path: /a}\n    respond: {status: 200}\n", "extra"},
		{"reserved name prefix", "scenario: auto-gen-500\nrules:\n  - match: {path: /a}\n    respond: {status: 200}\n", "scenario"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc, errs := validate(t, tt.doc)
			if sc != nil {
				t.Fatal("expected validation to fail")
			}
			if _, ok := findByPath(errs, tt.path); !ok {
				t.Errorf("no finding at %q, got: %v", tt.path, errs)
			}
		})
	}
}

func TestValidateFile_RuleShape(t *testing.T) {
	doc := func(match, respond string) string {
		return "scenario: s\nrules:\n  - match:\n      " + match + "\n    respond:\n      " + respond + "\n"
	}

	tests := []struct {
		name string
		doc  string
		path string
	}{
		{"path missing slash", doc("path: orders", "status: 200"), "rules[0].match.path"},
		{"two wildcards", doc("path: /a/*/b/*", "status: 200"), "rules[0].match.path"},
		{"unknown method", doc("path: /a\n      method: FETCH", "status: 200"), "rules[0].match.method"},
		{"status too low", doc("path: /a", "status: 42"), "rules[0].respond.status"},
		{"status not a number", doc("path: /a", "status: teapot"), "rules[0].respond.status"},
		{"negative delay", doc("path: /a", "status: 200\n      delayMs: -5"), "rules[0].respond.delayMs"},
		{"unknown respond key", doc("path: /a", "status: 200\n      bodyfile: x.json"), "rules[0].respond.bodyfile"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc, errs := validate(t, tt.doc)
			if sc != nil {
				t.Fatal("expected validation to fail")
			}
			if _, ok := findByPath(errs, tt.path); !ok {
				t.Errorf("no finding at %q, got: %v", tt.path, errs)
			}
		})
	}
}

func TestValidateFile_MissingStatusAndPath(t *testing.T) {
	doc := "scenario: s\nrules:\n  - match:\n      method: GET\n    respond:\n      body: ok\n"
	sc, errs := validate(t, doc)
	if sc != nil {
		t.Fatal("expected validation to fail")
	}
	if _, ok := findByPath(errs, "rules[0].match.path"); !ok {
		t.Errorf("missing path not reported: %v", errs)
	}
	if _, ok := findByPath(errs, "rules[0].respond.status"); !ok {
		t.Errorf("missing status not reported: %v", errs)
	}
}

func TestValidateFile_BodyAndBodyFileConflict(t *testing.T) {
	doc := "scenario: s\nrules:\n  - match: {path: /a}\n    respond:\n      status: 200\n      body: ok\n      bodyFile: x.json\n"
	sc, errs := validate(t, doc)
	if sc != nil {
		t.Fatal("expected validation to fail")
	}
	found := false
	for _, e := range errs {
		if strings.Contains(e.Message, "mutually exclusive") {
			found = true
		}
	}
	if !found {
		t.Errorf("conflict not reported: %v", errs)
	}
}

func TestValidateFile_DuplicateRuleID(t *testing.T) {
	doc := `scenario: s
rules:
  - id: same
    match: {path: /a}
    respond: {status: 200}
  - id: same
    match: {path: /b}
    respond: {status: 200}
`
	sc, errs := validate(t, doc)
	if sc != nil {
		t.Fatal("expected validation to fail")
	}
	e, ok := findByPath(errs, "rules[1].id")
	if !ok {
		t.Fatalf("duplicate id not reported: %v", errs)
	}
	if e.RuleID != "same" {
		t.Errorf("RuleID = %q, want same", e.RuleID)
	}
}

func TestValidateFile_DuplicateYAMLKey(t *testing.T) {
	doc := "scenario: s\nscenario: other\nrules:\n  - match: {path: /a}\n    respond: {status: 200}\n"
	sc, errs := validate(t, doc)
	if sc != nil {
		t.Fatal("expected validation to fail")
	}
	found := false
	for _, e := range errs {
		if e.Message == "duplicate key" && e.Line == 2 {
			found = true
		}
	}
	if !found {
		t.Errorf("duplicate key not reported with line: %v", errs)
	}
}

func TestValidateFile_DuplicateKeysInsideRuleMaps(t *testing.T) {
	doc := `scenario: s
version: 1.0.0
rules:
  - match:
      path: /orders
      query:
        dryRun: "true"
        dryRun: "false"
      headers:
        X-Token: a
        X-Token: null
    respond:
      status: 200
      headers:
        X-Id: a
        X-Id: b
`
	sc, errs := validate(t, doc)
	if sc != nil {
		t.Fatal("expected validation to fail")
	}
	for _, path := range []string{
		"rules[0].match.query.dryRun",
		"rules[0].match.headers.X-Token",
		"rules[0].respond.headers.X-Id",
	} {
		e, ok := findByPath(errs, path)
		if !ok {
			t.Errorf("duplicate key at %s not reported: %v", path, errs)
			continue
		}
		if e.Message != "duplicate key" || e.Line == 0 {
			t.Errorf("finding at %s = %+v, want a duplicate key error with a line", path, e)
		}
	}
}

func TestValidateFile_SyntaxErrorCarriesLine(t *testing.T) {
	doc := "scenario: s\nrules:\n  - match: {path: /a\n"
	sc, errs := validate(t, doc)
	if sc != nil {
		t.Fatal("expected validation to fail")
	}
	if len(errs) != 1 || errs[0].Line == 0 {
		t.Errorf("expected one syntax finding with a line number, got: %v", errs)
	}
}

func TestValidateFile_TemplatePlacement(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		path string
		msg  string
	}{
		{
			"template in match path",
			"scenario: s\nrules:\n  - match:\n      path: \"/orders/{{uuid}}\"\n    respond: {status: 200}\n",
			"rules[0].match.path",
			"not allowed here",
		},
		{
			"template in respond header",
			"scenario: s\nrules:\n  - match: {path: /a}\n    respond:\n      status: 200\n      headers:\n        X-Id: \"{{uuid}}\"\n",
			"rules[0].respond.headers.X-Id",
			"not allowed here",
		},
		{
			"unknown-helper in body",
			"scenario: s\nrules:\n  - match: {path: /a}\n    respond:\n      status: 200\n      body:\n        id: \"{{random}}\"\n",
			"rules[0].respond.body.id",
			"unknown-helper",
		},
		{
			"helper with arguments in body",
			"scenario: s\nrules:\n  - match: {path: /a}\n    respond:\n      status: 200\n      body: \"{{now format}}\"\n",
			"rules[0].respond.body",
			"arguments",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc, errs := validate(t, tt.doc)
			if sc != nil {
				t.Fatal("expected validation to fail")
			}
			e, ok := findByPath(errs, tt.path)
			if !ok {
				t.Fatalf("no finding at %q, got: %v", tt.path, errs)
			}
			if !strings.Contains(e.Message, tt.msg) {
				t.Errorf("message = %q, want substring %q", e.Message, tt.msg)
			}
		})
	}
}

func TestValidateFile_ValidTemplatesPass(t *testing.T) {
	doc := `scenario: s
rules:
  - match: {path: /a}
    respond:
      status: 201
      body:
        id: "{{uuid}}"
        at: "{{now}}"
        seq: "{{increment}}"
`
	sc, errs := validate(t, doc)
	if sc == nil {
		t.Fatalf("expected valid scenario, got: %v", errs)
	}
}

func TestValidateFile_BodyFile(t *testing.T) {
	dir := t.TempDir()
	body := `{"id": "{{uuid}}", "broken": "{{nope}}"}`
	if err := os.WriteFile(filepath.Join(dir, "order.json"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	doc := "scenario: s\nrules:\n  - match: {path: /a}\n    respond:\n      status: 200\n      bodyFile: order.json\n"
	v := services.NewValidator()

	sc, errs := v.ValidateFile(filepath.Join(dir, "s.yaml"), []byte(doc))
	if sc != nil {
		t.Fatal("expected validation to fail on the unknown-helper in the body file")
	}
	found := false
	for _, e := range errs {
		if strings.Contains(e.Message, "unknown-helper") {
			found = true
		}
	}
	if !found {
		t.Errorf("body file template error not reported: %v", errs)
	}

	sc, errs = v.ValidateFile(filepath.Join(dir, "s.yaml"), []byte(strings.Replace(doc, "order.json", "missing.json", 1)))
	if sc != nil {
		t.Fatal("expected validation to fail on the missing file")
	}
	if _, ok := findByPath(errs, "rules[0].respond.bodyFile"); !ok {
		t.Errorf("unreadable body file not reported: %v", errs)
	}
}

func TestValidateFile_TimeoutWarnsButLoads(t *testing.T) {
	doc := "scenario: s\nrules:\n  - match: {path: /a}\n    respond:\n      status: 200\n      timeout: 5000\n"
	sc, errs := validate(t, doc)
	if sc == nil {
		t.Fatalf("timeout should load with a warning, got: %v", errs)
	}
	if sc.Rules[0].Respond.Timeout == nil || *sc.Rules[0].Respond.Timeout != 5000 {
		t.Errorf("timeout = %v, want 5000", sc.Rules[0].Respond.Timeout)
	}
	warned := false
	for _, e := range errs {
		if e.Severity == services.SeverityWarning && e.Path == "rules[0].respond.timeout" {
			warned = true
		}
	}
	if !warned {
		t.Errorf("expected a timeout warning, got: %v", errs)
	}
}

func TestValidateSet_DuplicateNames(t *testing.T) {
	v := services.NewValidator()
	errs := v.ValidateSet([]*scenario.Scenario{
		{Name: "orders-down", SourceFile: "a.yaml"},
		{Name: "orders-down", SourceFile: "b.yaml"},
	})
	if len(errs) != 1 {
		t.Fatalf("errs = %v, want one duplicate finding", errs)
	}
	if errs[0].File != "b.yaml" {
		t.Errorf("duplicate reported against %s, want the second-seen file b.yaml", errs[0].File)
	}
}

func TestReport_HasErrorsAndFormat(t *testing.T) {
	r := services.Report{Findings: []services.ValidationError{
		{Severity: services.SeverityWarning, File: "a.yaml", Path: "rules[0].respond.timeout", Message: "warn"},
	}}
	if r.HasErrors() {
		t.Error("warnings alone must not count as errors")
	}

	r.Findings = append(r.Findings, services.ValidationError{
		Severity: services.SeverityError, File: "a.yaml", Path: "version", Message: "must match x.y.z", Line: 3, Column: 1,
	})
	if !r.HasErrors() {
		t.Error("expected HasErrors after adding an error")
	}
	out := r.Format()
	if !strings.Contains(out, "a.yaml: version: must match x.y.z") || !strings.Contains(out, "[line=3 col=1]") {
		t.Errorf("unexpected format:\n%s", out)
	}
	if len(r.Warnings()) != 1 {
		t.Errorf("warnings = %d, want 1", len(r.Warnings()))
	}
}
