package template_test

import (
	"strings"
	"testing"

	"github.com/sophialabs/contractmock/internal/domain/template"
)

func TestCheckAllowed_ValidTemplates(t *testing.T) {
	body := map[string]any{
		"id":   "{{uuid}}",
		"list": []any{"{{now}}", "plain"},
	}
	if v := template.CheckAllowed("body", body); len(v) != 0 {
		t.Errorf("unexpected violations: %v", v)
	}
}

func TestCheckAllowed_ReportsParserErrorsWithPath(t *testing.T) {
	body := map[string]any{
		"items": []any{"ok", "{{bogus}}"},
	}
	violations := template.CheckAllowed("body", body)
	if len(violations) != 1 {
		t.Fatalf("violations = %v", violations)
	}
	if violations[0].Path != "body.items[1]" {
		t.Errorf("path = %q, want body.items[1]", violations[0].Path)
	}
	if !strings.Contains(violations[0].Message, "unknown-helper") {
		t.Errorf("message = %q", violations[0].Message)
	}
}

func TestCheckAllowed_TemplateInObjectKey(t *testing.T) {
	body := map[string]any{
		"{{uuid}}": "value",
	}
	violations := template.CheckAllowed("body", body)
	if len(violations) != 1 {
		t.Fatalf("violations = %v", violations)
	}
	if !strings.Contains(violations[0].Message, "object keys") {
		t.Errorf("message = %q", violations[0].Message)
	}
}

func TestCheckForbidden_FlagsEvenValidSyntax(t *testing.T) {
	violations := template.CheckForbidden("match.path", "/users/{{uuid}}")
	if len(violations) != 1 {
		t.Fatalf("violations = %v", violations)
	}
	if violations[0].Path != "match.path" {
		t.Errorf("path = %q", violations[0].Path)
	}
}

func TestCheckForbidden_PlainStringsPass(t *testing.T) {
	if v := template.CheckForbidden("match.path", "/users/{id}"); len(v) != 0 {
		t.Errorf("unexpected violations: %v", v)
	}
}

func TestCheckForbidden_WalksStructures(t *testing.T) {
	v := template.CheckForbidden("respond.headers", map[string]any{
		"X-Trace": "{{uuid}}",
		"X-Okay":  "static",
	})
	if len(v) != 1 || v[0].Path != "respond.headers.X-Trace" {
		t.Errorf("violations = %v", v)
	}
}
