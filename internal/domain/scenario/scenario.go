package scenario

import (
	"strconv"
	"strings"
)

// ReservedPrefix marks synthetic scenario names of the form
// "auto-gen-<status>". Loaded scenarios must never use it.
const ReservedPrefix = "auto-gen-"

// Methods is the closed set of HTTP methods a rule may constrain on.
var Methods = []string{"GET", "HEAD", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}

// IsMethod reports whether m is one of the supported methods, ignoring case.
func IsMethod(m string) bool {
	for _, known := range Methods {
		if strings.EqualFold(m, known) {
			return true
		}
	}
	return false
}

// ParseAutoGen extracts the status code from an "auto-gen-<status>" name.
// Returns false when the name does not follow the reserved pattern.
func ParseAutoGen(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, ReservedPrefix)
	if !ok {
		return 0, false
	}
	status, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return status, true
}

// Scenario is a named, validated collection of rules loaded from one file.
// Immutable after load.
type Scenario struct {
	Name        string
	Description string
	Version     string
	Rules       []Rule
	SourceFile  string
	SourceDir   string
}

// Rule is one match/respond pair within a scenario.
type Rule struct {
	ID      string
	Match   Match
	Respond Respond
}

// Match holds the request predicates of a rule. Path is exact or carries at
// most one "*" wildcard. A nil header value means the header must merely be
// present.
type Match struct {
	Path    string
	Method  string
	Query   map[string]string
	Headers map[string]*string
}

// Respond describes the canned response of a rule. Body and BodyFile are
// mutually exclusive; HasBody distinguishes an explicit null body from an
// absent one. Timeout, when set, forces a fixed 504 instead of the configured
// response.
type Respond struct {
	Status   int
	Body     any
	HasBody  bool
	BodyFile string
	Headers  map[string]string
	DelayMs  int
	Timeout  *int
}

// Set is the immutable name-keyed scenario lookup built once after
// validation. Concurrent reads are safe because it is never written after
// construction.
type Set struct {
	byName map[string]*Scenario
	names  []string
}

// NewSet builds a Set from validated scenarios. Name uniqueness is the
// validator's responsibility; later duplicates would be dropped here.
func NewSet(scenarios []*Scenario) *Set {
	s := &Set{byName: make(map[string]*Scenario, len(scenarios))}
	for _, sc := range scenarios {
		if _, exists := s.byName[sc.Name]; exists {
			continue
		}
		s.byName[sc.Name] = sc
		s.names = append(s.names, sc.Name)
	}
	return s
}

// Get returns the scenario with the given name.
func (s *Set) Get(name string) (*Scenario, bool) {
	sc, ok := s.byName[name]
	return sc, ok
}

// Names returns scenario names in load order.
func (s *Set) Names() []string {
	return s.names
}

// Len returns the number of loaded scenarios.
func (s *Set) Len() int {
	return len(s.byName)
}
