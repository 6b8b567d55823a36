package trace

import "time"

// Kind identifies an event variant. The set is closed; sinks switch over it
// exhaustively.
type Kind string

const (
	KindScenarioResolved Kind = "scenario_resolved"
	KindRuleEvaluated    Kind = "rule_evaluated"
	KindActionTaken      Kind = "action_taken"
)

// Source tells where the scenario name for a request came from.
type Source string

const (
	SourceHeader Source = "header"
	SourceActive Source = "active"
	SourceNone   Source = "none"
)

// Action is the final branch the resolution pipeline took.
type Action string

const (
	ActionScenario  Action = "scenario"
	ActionAutoGen   Action = "auto-gen"
	ActionHappyPath Action = "happy-path"
	ActionProxy     Action = "proxy"
	ActionTimeout   Action = "timeout"
)

// Event is one structured record from the resolution pipeline. Implemented
// only by the variants in this package.
type Event interface {
	EventKind() Kind
}

// ScenarioResolved reports which scenario name was selected and from where.
type ScenarioResolved struct {
	Source Source `json:"source"`
	Name   string `json:"name,omitempty"`
}

func (ScenarioResolved) EventKind() Kind { return KindScenarioResolved }

// RuleEvaluated reports a single rule's match outcome.
type RuleEvaluated struct {
	Scenario string `json:"scenario"`
	RuleID   string `json:"rule_id,omitempty"`
	Index    int    `json:"index"`
	Matched  bool   `json:"matched"`
	Reason   string `json:"reason,omitempty"`
	Score    int    `json:"score"`
}

func (RuleEvaluated) EventKind() Kind { return KindRuleEvaluated }

// ActionTaken reports the final decision and status for a request.
type ActionTaken struct {
	Action Action `json:"action"`
	Status int    `json:"status"`
}

func (ActionTaken) EventKind() Kind { return KindActionTaken }

// Entry is the per-request record kept in the ring buffer: enough to
// reconstruct the resolution decision offline.
type Entry struct {
	Timestamp  time.Time         `json:"timestamp"`
	Method     string            `json:"method"`
	Path       string            `json:"path"`
	Source     Source            `json:"source"`
	Scenario   string            `json:"scenario,omitempty"`
	Candidates []CandidateResult `json:"candidates,omitempty"`
	Action     Action            `json:"action"`
	Status     int               `json:"status"`
}

// CandidateResult records the evaluation result for a single rule.
type CandidateResult struct {
	RuleID  string `json:"rule_id,omitempty"`
	Index   int    `json:"index"`
	Matched bool   `json:"matched"`
	Reason  string `json:"reason,omitempty"`
	Score   int    `json:"score"`
}
