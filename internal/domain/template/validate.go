package template

import "strconv"

// Violation is one static validation finding, addressed by a dotted/bracketed
// path into the checked structure.
type Violation struct {
	Path    string
	Message string
}

// CheckAllowed validates a structure where templates are permitted in string
// values: parser errors are reported per string, and template syntax inside
// an object key is its own violation.
func CheckAllowed(path string, v any) []Violation {
	var violations []Violation
	checkAllowed(path, v, &violations)
	return violations
}

func checkAllowed(path string, v any, violations *[]Violation) {
	switch t := v.(type) {
	case string:
		for _, err := range Parse(t).Errors {
			*violations = append(*violations, Violation{Path: path, Message: err.Error()})
		}
	case []any:
		for i, item := range t {
			checkAllowed(path+"["+strconv.Itoa(i)+"]", item, violations)
		}
	case map[string]any:
		for key, val := range t {
			childPath := joinPath(path, key)
			if ContainsSyntax(key) {
				*violations = append(*violations, Violation{
					Path:    childPath,
					Message: "template syntax is not allowed in object keys",
				})
			}
			checkAllowed(childPath, val, violations)
		}
	}
}

// CheckForbidden validates a structure where templates are categorically
// disallowed: any string containing template syntax is flagged, even when
// syntactically valid.
func CheckForbidden(path string, v any) []Violation {
	var violations []Violation
	checkForbidden(path, v, &violations)
	return violations
}

func checkForbidden(path string, v any, violations *[]Violation) {
	switch t := v.(type) {
	case string:
		if ContainsSyntax(t) {
			*violations = append(*violations, Violation{
				Path:    path,
				Message: "template syntax is not allowed here",
			})
		}
	case []any:
		for i, item := range t {
			checkForbidden(path+"["+strconv.Itoa(i)+"]", item, violations)
		}
	case map[string]any:
		for key, val := range t {
			checkForbidden(joinPath(path, key), val, violations)
		}
	}
}

func joinPath(base, key string) string {
	if base == "" {
		return key
	}
	return base + "." + key
}
