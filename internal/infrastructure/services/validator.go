package services

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sophialabs/contractmock/internal/domain/scenario"
	"github.com/sophialabs/contractmock/internal/domain/template"
)

// Severity ranks a validation finding. Any error-severity finding across the
// scenario set aborts startup; warnings are reported and ignored.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// ValidationError is one finding with enough context to render a precise,
// greppable diagnostic.
type ValidationError struct {
	Severity Severity
	File     string
	Path     string // dotted/bracketed pointer, e.g. rules[2].respond.status
	Message  string
	RuleID   string
	Line     int
	Column   int
}

func (e ValidationError) String() string {
	var b strings.Builder
	b.WriteString(string(e.Severity))
	b.WriteString(" ")
	b.WriteString(e.File)
	if e.Path != "" {
		b.WriteString(": ")
		b.WriteString(e.Path)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.RuleID != "" {
		fmt.Fprintf(&b, " [rule=%s]", e.RuleID)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, " [line=%d col=%d]", e.Line, e.Column)
	}
	return b.String()
}

// Report aggregates findings across all files and stages so operators fix
// scenario files in one round-trip.
type Report struct {
	Findings []ValidationError
}

// HasErrors reports whether any error-severity finding exists.
func (r Report) HasErrors() bool {
	for _, f := range r.Findings {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Warnings returns the warning-severity findings.
func (r Report) Warnings() []ValidationError {
	var out []ValidationError
	for _, f := range r.Findings {
		if f.Severity == SeverityWarning {
			out = append(out, f)
		}
	}
	return out
}

// Format renders the whole report, one finding per line.
func (r Report) Format() string {
	lines := make([]string, len(r.Findings))
	for i, f := range r.Findings {
		lines[i] = f.String()
	}
	return strings.Join(lines, "\n")
}

var versionPattern = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

var yamlLinePattern = regexp.MustCompile(`line (\d+)`)

// Validator turns raw scenario YAML into validated scenarios. Stages gate
// each other: a failing stage stops deeper walking of the same file, but all
// findings within a stage are aggregated.
type Validator struct{}

// NewValidator creates a Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateFile validates one scenario file. On any error-severity finding
// the scenario is nil; warnings may accompany a valid scenario.
func (v *Validator) ValidateFile(path string, data []byte) (*scenario.Scenario, []ValidationError) {
	var errs []ValidationError

	// Stage 1: strict YAML parse.
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		errs = append(errs, yamlSyntaxError(path, err))
		return nil, errs
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		errs = append(errs, ValidationError{
			Severity: SeverityError, File: path, Message: "file is empty",
		})
		return nil, errs
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		errs = append(errs, ValidationError{
			Severity: SeverityError, File: path,
			Message: "document must be a mapping",
			Line:    doc.Line, Column: doc.Column,
		})
		return nil, errs
	}

	// Stage 2: root shape (plus the reserved-name check, stage 5, which
	// needs nothing deeper than the name itself).
	sc := &scenario.Scenario{
		SourceFile: path,
		SourceDir:  filepath.Dir(path),
	}
	rulesNode, rootErrs := v.validateRoot(path, doc, sc)
	errs = append(errs, rootErrs...)
	if hasErrorSeverity(rootErrs) {
		return nil, errs
	}

	// Stages 3-4: per-rule shape, template placement, id uniqueness.
	ruleErrs := v.validateRules(path, rulesNode, sc)
	errs = append(errs, ruleErrs...)
	if hasErrorSeverity(ruleErrs) {
		return nil, errs
	}

	return sc, errs
}

// ValidateSet applies cross-file checks once every file is individually
// valid: scenario names must be globally unique, duplicates reported against
// the second-seen file.
func (v *Validator) ValidateSet(scenarios []*scenario.Scenario) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]string)
	for _, sc := range scenarios {
		if first, dup := seen[sc.Name]; dup {
			errs = append(errs, ValidationError{
				Severity: SeverityError,
				File:     sc.SourceFile,
				Path:     "scenario",
				Message:  fmt.Sprintf("scenario name %q already defined in %s", sc.Name, first),
			})
			continue
		}
		seen[sc.Name] = sc.SourceFile
	}
	return errs
}

func (v *Validator) validateRoot(path string, doc *yaml.Node, sc *scenario.Scenario) (*yaml.Node, []ValidationError) {
	var errs []ValidationError
	var rulesNode *yaml.Node

	add := func(e ValidationError) {
		e.File = path
		errs = append(errs, e)
	}

	walkMapping(doc, &errs, path, "", func(key string, keyNode, val *yaml.Node) {
		switch key {
		case "scenario":
			name, ok := scalarString(val)
			if !ok || name == "" {
				add(ValidationError{
					Severity: SeverityError, Path: "scenario",
					Message: "must be a non-empty string",
					Line:    val.Line, Column: val.Column,
				})
				return
			}
			if strings.HasPrefix(name, scenario.ReservedPrefix) {
				add(ValidationError{
					Severity: SeverityError, Path: "scenario",
					Message: fmt.Sprintf("name must not start with reserved prefix %q", scenario.ReservedPrefix),
					Line:    val.Line, Column: val.Column,
				})
				return
			}
			sc.Name = name
		case "description":
			desc, ok := scalarString(val)
			if !ok {
				add(ValidationError{
					Severity: SeverityError, Path: "description",
					Message: "must be a string",
					Line:    val.Line, Column: val.Column,
				})
				return
			}
			sc.Description = desc
		case "version":
			ver, ok := scalarString(val)
			if !ok || !versionPattern.MatchString(ver) {
				add(ValidationError{
					Severity: SeverityError, Path: "version",
					Message: "must match x.y.z",
					Line:    val.Line, Column: val.Column,
				})
				return
			}
			sc.Version = ver
		case "rules":
			if val.Kind != yaml.SequenceNode || len(val.Content) == 0 {
				add(ValidationError{
					Severity: SeverityError, Path: "rules",
					Message: "must be a non-empty array",
					Line:    val.Line, Column: val.Column,
				})
				return
			}
			rulesNode = val
		default:
			add(ValidationError{
				Severity: SeverityError, Path: key,
				Message: "unknown key",
				Line:    keyNode.Line, Column: keyNode.Column,
			})
		}
	})

	if sc.Name == "" && !hasFinding(errs, "scenario") {
		add(ValidationError{Severity: SeverityError, Path: "scenario", Message: "is required"})
	}
	if rulesNode == nil && !hasFinding(errs, "rules") {
		add(ValidationError{Severity: SeverityError, Path: "rules", Message: "is required"})
	}

	return rulesNode, errs
}

func (v *Validator) validateRules(path string, rulesNode *yaml.Node, sc *scenario.Scenario) []ValidationError {
	var errs []ValidationError
	idSeen := make(map[string]int)

	for i, item := range rulesNode.Content {
		ptr := fmt.Sprintf("rules[%d]", i)
		rule, ruleErrs := v.validateRule(path, ptr, item, sc.SourceDir)
		errs = append(errs, ruleErrs...)
		if hasErrorSeverity(ruleErrs) {
			continue
		}

		if rule.ID != "" {
			if first, dup := idSeen[rule.ID]; dup {
				errs = append(errs, ValidationError{
					Severity: SeverityError, File: path, Path: ptr + ".id",
					RuleID:  rule.ID,
					Message: fmt.Sprintf("duplicate rule id, first used by rules[%d]", first),
				})
				continue
			}
			idSeen[rule.ID] = i
		}
		sc.Rules = append(sc.Rules, *rule)
	}

	return errs
}

func (v *Validator) validateRule(path, ptr string, item *yaml.Node, sourceDir string) (*scenario.Rule, []ValidationError) {
	var errs []ValidationError
	rule := &scenario.Rule{}

	add := func(e ValidationError) {
		e.File = path
		if e.RuleID == "" {
			e.RuleID = rule.ID
		}
		errs = append(errs, e)
	}

	if item.Kind != yaml.MappingNode {
		add(ValidationError{
			Severity: SeverityError, Path: ptr,
			Message: "must be a mapping",
			Line:    item.Line, Column: item.Column,
		})
		return nil, errs
	}

	var matchNode, respondNode *yaml.Node
	walkMapping(item, &errs, path, ptr, func(key string, keyNode, val *yaml.Node) {
		switch key {
		case "id":
			id, ok := scalarString(val)
			if !ok || id == "" {
				add(ValidationError{
					Severity: SeverityError, Path: ptr + ".id",
					Message: "must be a non-empty string",
					Line:    val.Line, Column: val.Column,
				})
				return
			}
			rule.ID = id
		case "match":
			matchNode = val
		case "respond":
			respondNode = val
		default:
			add(ValidationError{
				Severity: SeverityError, Path: ptr + "." + key,
				Message: "unknown key",
				Line:    keyNode.Line, Column: keyNode.Column,
			})
		}
	})

	if matchNode == nil {
		add(ValidationError{Severity: SeverityError, Path: ptr + ".match", Message: "is required"})
	} else {
		v.validateMatch(path, ptr+".match", matchNode, rule, add)
	}

	if respondNode == nil {
		add(ValidationError{Severity: SeverityError, Path: ptr + ".respond", Message: "is required"})
	} else {
		v.validateRespond(path, ptr+".respond", respondNode, rule, sourceDir, add)
	}

	if hasErrorSeverity(errs) {
		return nil, errs
	}
	return rule, errs
}

func (v *Validator) validateMatch(path, ptr string, node *yaml.Node, rule *scenario.Rule, add func(ValidationError)) {
	if node.Kind != yaml.MappingNode {
		add(ValidationError{
			Severity: SeverityError, Path: ptr,
			Message: "must be a mapping",
			Line:    node.Line, Column: node.Column,
		})
		return
	}

	var errs []ValidationError
	walkMapping(node, &errs, path, ptr, func(key string, keyNode, val *yaml.Node) {
		switch key {
		case "path":
			p, ok := scalarString(val)
			switch {
			case !ok || p == "":
				add(ValidationError{
					Severity: SeverityError, Path: ptr + ".path",
					Message: "must be a non-empty string",
					Line:    val.Line, Column: val.Column,
				})
			case !strings.HasPrefix(p, "/"):
				add(ValidationError{
					Severity: SeverityError, Path: ptr + ".path",
					Message: "must start with /",
					Line:    val.Line, Column: val.Column,
				})
			case strings.Count(p, "*") > 1:
				add(ValidationError{
					Severity: SeverityError, Path: ptr + ".path",
					Message: "at most one * wildcard is allowed",
					Line:    val.Line, Column: val.Column,
				})
			default:
				rule.Match.Path = p
			}
		case "method":
			m, ok := scalarString(val)
			if !ok || !scenario.IsMethod(m) {
				add(ValidationError{
					Severity: SeverityError, Path: ptr + ".method",
					Message: fmt.Sprintf("must be one of %s", strings.Join(scenario.Methods, ", ")),
					Line:    val.Line, Column: val.Column,
				})
				return
			}
			rule.Match.Method = m
		case "query":
			rule.Match.Query = stringMap(val, ptr+".query", add)
		case "headers":
			rule.Match.Headers = headerMap(val, ptr+".headers", add)
		default:
			add(ValidationError{
				Severity: SeverityError, Path: ptr + "." + key,
				Message: "unknown key",
				Line:    keyNode.Line, Column: keyNode.Column,
			})
		}
	})
	for _, e := range errs {
		add(e)
	}

	if !nodeHasKey(node, "path") {
		add(ValidationError{Severity: SeverityError, Path: ptr + ".path", Message: "is required"})
	}

	// Templates are categorically forbidden outside response bodies.
	for _, viol := range template.CheckForbidden(ptr+".path", rule.Match.Path) {
		add(ValidationError{Severity: SeverityError, Path: viol.Path, Message: viol.Message})
	}
	for key, val := range rule.Match.Query {
		for _, viol := range template.CheckForbidden(ptr+".query."+key, val) {
			add(ValidationError{Severity: SeverityError, Path: viol.Path, Message: viol.Message})
		}
	}
	for key, val := range rule.Match.Headers {
		if val == nil {
			continue
		}
		for _, viol := range template.CheckForbidden(ptr+".headers."+key, *val) {
			add(ValidationError{Severity: SeverityError, Path: viol.Path, Message: viol.Message})
		}
	}
}

func (v *Validator) validateRespond(path, ptr string, node *yaml.Node, rule *scenario.Rule, sourceDir string, add func(ValidationError)) {
	if node.Kind != yaml.MappingNode {
		add(ValidationError{
			Severity: SeverityError, Path: ptr,
			Message: "must be a mapping",
			Line:    node.Line, Column: node.Column,
		})
		return
	}

	statusSeen := false
	var errs []ValidationError
	walkMapping(node, &errs, path, ptr, func(key string, keyNode, val *yaml.Node) {
		switch key {
		case "status":
			statusSeen = true
			var status int
			if err := val.Decode(&status); err != nil {
				add(ValidationError{
					Severity: SeverityError, Path: ptr + ".status",
					Message: "must be an integer",
					Line:    val.Line, Column: val.Column,
				})
				return
			}
			if status < 100 || status > 599 {
				add(ValidationError{
					Severity: SeverityError, Path: ptr + ".status",
					Message: "must be between 100 and 599",
					Line:    val.Line, Column: val.Column,
				})
				return
			}
			rule.Respond.Status = status
		case "body":
			var body any
			if err := val.Decode(&body); err != nil {
				add(ValidationError{
					Severity: SeverityError, Path: ptr + ".body",
					Message: "could not decode value: " + err.Error(),
					Line:    val.Line, Column: val.Column,
				})
				return
			}
			rule.Respond.Body = body
			rule.Respond.HasBody = true
		case "bodyFile":
			bf, ok := scalarString(val)
			if !ok || bf == "" {
				add(ValidationError{
					Severity: SeverityError, Path: ptr + ".bodyFile",
					Message: "must be a non-empty string",
					Line:    val.Line, Column: val.Column,
				})
				return
			}
			rule.Respond.BodyFile = bf
		case "headers":
			rule.Respond.Headers = stringMap(val, ptr+".headers", add)
		case "delayMs":
			ms, ok := nonNegativeNumber(val)
			if !ok {
				add(ValidationError{
					Severity: SeverityError, Path: ptr + ".delayMs",
					Message: "must be a non-negative number",
					Line:    val.Line, Column: val.Column,
				})
				return
			}
			rule.Respond.DelayMs = ms
		case "timeout":
			ms, ok := nonNegativeNumber(val)
			if !ok {
				add(ValidationError{
					Severity: SeverityError, Path: ptr + ".timeout",
					Message: "must be a non-negative number",
					Line:    val.Line, Column: val.Column,
				})
				return
			}
			rule.Respond.Timeout = &ms
		default:
			add(ValidationError{
				Severity: SeverityError, Path: ptr + "." + key,
				Message: "unknown key",
				Line:    keyNode.Line, Column: keyNode.Column,
			})
		}
	})
	for _, e := range errs {
		add(e)
	}

	if !statusSeen {
		add(ValidationError{Severity: SeverityError, Path: ptr + ".status", Message: "is required"})
	}
	if rule.Respond.HasBody && rule.Respond.BodyFile != "" {
		add(ValidationError{
			Severity: SeverityError, Path: ptr,
			Message: "body and bodyFile are mutually exclusive",
			Line:    node.Line, Column: node.Column,
		})
	}
	if rule.Respond.Timeout != nil {
		add(ValidationError{
			Severity: SeverityWarning, Path: ptr + ".timeout",
			Message: "timeout forces a fixed 504; the configured status will not be served",
			Line:    node.Line, Column: node.Column,
		})
	}

	for key, val := range rule.Respond.Headers {
		for _, viol := range template.CheckForbidden(ptr+".headers."+key, val) {
			add(ValidationError{Severity: SeverityError, Path: viol.Path, Message: viol.Message})
		}
	}

	// Body templates are validated up front so no request ever meets an
	// un-renderable body.
	if rule.Respond.HasBody {
		for _, viol := range template.CheckAllowed(ptr+".body", rule.Respond.Body) {
			add(ValidationError{Severity: SeverityError, Path: viol.Path, Message: viol.Message})
		}
	}
	if rule.Respond.BodyFile != "" {
		data, err := os.ReadFile(filepath.Join(sourceDir, rule.Respond.BodyFile))
		if err != nil {
			add(ValidationError{
				Severity: SeverityError, Path: ptr + ".bodyFile",
				Message: "could not read file: " + err.Error(),
			})
			return
		}
		var parsed any
		if jsonErr := json.Unmarshal(data, &parsed); jsonErr != nil {
			parsed = string(data)
		}
		for _, viol := range template.CheckAllowed(ptr+".bodyFile", parsed) {
			add(ValidationError{Severity: SeverityError, Path: viol.Path, Message: viol.Message})
		}
	}
}

// walkMapping iterates mapping pairs, flagging duplicate keys against the
// second occurrence.
func walkMapping(node *yaml.Node, errs *[]ValidationError, file, ptr string, fn func(key string, keyNode, val *yaml.Node)) {
	seen := make(map[string]bool)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode := node.Content[i]
		val := node.Content[i+1]
		key := keyNode.Value
		if seen[key] {
			*errs = append(*errs, ValidationError{
				Severity: SeverityError, File: file,
				Path:    joinPtr(ptr, key),
				Message: "duplicate key",
				Line:    keyNode.Line, Column: keyNode.Column,
			})
			continue
		}
		seen[key] = true
		fn(key, keyNode, val)
	}
}

func stringMap(node *yaml.Node, ptr string, add func(ValidationError)) map[string]string {
	if node.Kind != yaml.MappingNode {
		add(ValidationError{
			Severity: SeverityError, Path: ptr,
			Message: "must be a mapping",
			Line:    node.Line, Column: node.Column,
		})
		return nil
	}
	out := make(map[string]string, len(node.Content)/2)
	seen := make(map[string]bool, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode := node.Content[i]
		key := keyNode.Value
		val := node.Content[i+1]
		if seen[key] {
			add(ValidationError{
				Severity: SeverityError, Path: ptr + "." + key,
				Message: "duplicate key",
				Line:    keyNode.Line, Column: keyNode.Column,
			})
			continue
		}
		seen[key] = true
		s, ok := scalarString(val)
		if !ok {
			add(ValidationError{
				Severity: SeverityError, Path: ptr + "." + key,
				Message: "must be a string",
				Line:    val.Line, Column: val.Column,
			})
			continue
		}
		out[key] = s
	}
	return out
}

func headerMap(node *yaml.Node, ptr string, add func(ValidationError)) map[string]*string {
	if node.Kind != yaml.MappingNode {
		add(ValidationError{
			Severity: SeverityError, Path: ptr,
			Message: "must be a mapping",
			Line:    node.Line, Column: node.Column,
		})
		return nil
	}
	out := make(map[string]*string, len(node.Content)/2)
	seen := make(map[string]bool, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode := node.Content[i]
		key := keyNode.Value
		val := node.Content[i+1]
		if seen[key] {
			add(ValidationError{
				Severity: SeverityError, Path: ptr + "." + key,
				Message: "duplicate key",
				Line:    keyNode.Line, Column: keyNode.Column,
			})
			continue
		}
		seen[key] = true
		if isNull(val) {
			out[key] = nil
			continue
		}
		s, ok := scalarString(val)
		if !ok {
			add(ValidationError{
				Severity: SeverityError, Path: ptr + "." + key,
				Message: "must be a string or null",
				Line:    val.Line, Column: val.Column,
			})
			continue
		}
		out[key] = &s
	}
	return out
}

func scalarString(node *yaml.Node) (string, bool) {
	if node.Kind != yaml.ScalarNode || node.Tag != "!!str" {
		return "", false
	}
	return node.Value, true
}

func isNull(node *yaml.Node) bool {
	return node.Kind == yaml.ScalarNode && node.Tag == "!!null"
}

func nonNegativeNumber(node *yaml.Node) (int, bool) {
	var f float64
	if err := node.Decode(&f); err != nil {
		return 0, false
	}
	if f < 0 {
		return 0, false
	}
	return int(f), true
}

func nodeHasKey(node *yaml.Node, key string) bool {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return true
		}
	}
	return false
}

func hasErrorSeverity(errs []ValidationError) bool {
	for _, e := range errs {
		if e.Severity == SeverityError {
			return true
		}
	}
	return false
}

func hasFinding(errs []ValidationError, path string) bool {
	for _, e := range errs {
		if e.Path == path {
			return true
		}
	}
	return false
}

func yamlSyntaxError(path string, err error) ValidationError {
	ve := ValidationError{
		Severity: SeverityError,
		File:     path,
		Message:  err.Error(),
	}
	if m := yamlLinePattern.FindStringSubmatch(err.Error()); m != nil {
		fmt.Sscanf(m[1], "%d", &ve.Line)
	}
	return ve
}

func joinPtr(base, key string) string {
	if base == "" {
		return key
	}
	return base + "." + key
}
