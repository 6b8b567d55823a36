// Package template implements the micro-language embedded in response body
// strings. The only recognized form is {{helper}} over a closed helper set;
// escaping with a leading backslash yields literal braces.
package template

import (
	"fmt"
	"strings"
	"unicode"
)

// ErrKind classifies a parse error.
type ErrKind string

const (
	ErrMalformed       ErrKind = "malformed"
	ErrNestedHelper    ErrKind = "nested-helper"
	ErrArguments       ErrKind = "arguments-not-allowed"
	ErrUnknownHelper   ErrKind = "unknown-helper"
	ErrUnexpectedClose ErrKind = "unexpected-close"
)

// ParseError describes one malformed template occurrence inside a string.
type ParseError struct {
	Kind    ErrKind
	Content string
	Offset  int
}

func (e ParseError) Error() string {
	if e.Content == "" {
		return fmt.Sprintf("%s at offset %d", e.Kind, e.Offset)
	}
	return fmt.Sprintf("%s at offset %d: %q", e.Kind, e.Offset, e.Content)
}

// TokenType distinguishes literal text from helper invocations.
type TokenType int

const (
	TextToken TokenType = iota
	HelperToken
)

// Token is one piece of a parsed template string.
type Token struct {
	Type   TokenType
	Text   string // literal text for TextToken
	Helper string // helper name for HelperToken
}

// ParseResult carries the token sequence plus any errors. Parsing never
// fails outright so validation and rendering share the same parser.
type ParseResult struct {
	Tokens []Token
	Errors []ParseError
}

// HasErrors reports whether any parse error was recorded.
func (r ParseResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Helpers returns the distinct helper names referenced, in first-seen order.
func (r ParseResult) Helpers() []string {
	var names []string
	seen := make(map[string]bool)
	for _, tok := range r.Tokens {
		if tok.Type == HelperToken && !seen[tok.Helper] {
			seen[tok.Helper] = true
			names = append(names, tok.Helper)
		}
	}
	return names
}

// helperNames is the closed set of recognized helpers.
var helperNames = []string{"uuid", "now", "increment"}

func isHelper(name string) bool {
	for _, h := range helperNames {
		if name == h {
			return true
		}
	}
	return false
}

func hasHelperPrefix(content string) bool {
	for _, h := range helperNames {
		if strings.HasPrefix(content, h) {
			return true
		}
	}
	return false
}

// ContainsSyntax reports whether s carries any template bracket syntax. Used
// by the validator for positions where templates are categorically
// forbidden.
func ContainsSyntax(s string) bool {
	return strings.Contains(s, "{{") || strings.Contains(s, "}}")
}

// Parse scans s left to right. An escaped open sequence \{{...}} emits the
// literal {{...}} text. An unterminated {{ records a malformed error and
// stops scanning; a bare }} records unexpected-close and scanning continues.
func Parse(s string) ParseResult {
	var res ParseResult
	var text strings.Builder

	flush := func() {
		if text.Len() > 0 {
			res.Tokens = append(res.Tokens, Token{Type: TextToken, Text: text.String()})
			text.Reset()
		}
	}

	i := 0
	for i < len(s) {
		if s[i] == '\\' && strings.HasPrefix(s[i+1:], "{{") {
			end := strings.Index(s[i+3:], "}}")
			if end < 0 {
				// No closing braces: the escape still strips the backslash.
				text.WriteString(s[i+1:])
				i = len(s)
				continue
			}
			text.WriteString(s[i+1 : i+3+end+2])
			i += 3 + end + 2
			continue
		}

		if strings.HasPrefix(s[i:], "{{") {
			end := strings.Index(s[i+2:], "}}")
			if end < 0 {
				res.Errors = append(res.Errors, ParseError{Kind: ErrMalformed, Offset: i})
				flush()
				return res
			}
			content := s[i+2 : i+2+end]
			switch {
			case content == "":
				res.Errors = append(res.Errors, ParseError{Kind: ErrMalformed, Offset: i})
			case strings.Contains(content, "{{"):
				res.Errors = append(res.Errors, ParseError{Kind: ErrNestedHelper, Content: content, Offset: i})
			case strings.IndexFunc(content, unicode.IsSpace) >= 0:
				res.Errors = append(res.Errors, ParseError{Kind: ErrArguments, Content: content, Offset: i})
			case isHelper(content):
				flush()
				res.Tokens = append(res.Tokens, Token{Type: HelperToken, Helper: content})
			case hasHelperPrefix(content):
				res.Errors = append(res.Errors, ParseError{Kind: ErrArguments, Content: content, Offset: i})
			default:
				res.Errors = append(res.Errors, ParseError{Kind: ErrUnknownHelper, Content: content, Offset: i})
			}
			i += 2 + end + 2
			continue
		}

		if strings.HasPrefix(s[i:], "}}") {
			res.Errors = append(res.Errors, ParseError{Kind: ErrUnexpectedClose, Offset: i})
			i += 2
			continue
		}

		text.WriteByte(s[i])
		i++
	}

	flush()
	return res
}
