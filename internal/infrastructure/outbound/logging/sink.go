package logging

import (
	"github.com/sophialabs/contractmock/internal/domain/trace"
	"github.com/sophialabs/contractmock/internal/infrastructure/ports"
)

var _ ports.EventSink = (*EventLogger)(nil)

// EventLogger writes every resolution event to the structured log. The
// switch covers the closed event set.
type EventLogger struct {
	logger ports.Logger
}

// NewEventLogger creates a sink logging at debug level for per-rule events
// and info level for decisions.
func NewEventLogger(logger ports.Logger) *EventLogger {
	return &EventLogger{logger: logger}
}

func (s *EventLogger) Emit(e trace.Event) {
	switch ev := e.(type) {
	case trace.ScenarioResolved:
		s.logger.Debug("scenario resolved", "source", string(ev.Source), "name", ev.Name)
	case trace.RuleEvaluated:
		s.logger.Debug("rule evaluated",
			"scenario", ev.Scenario, "rule", ev.RuleID, "index", ev.Index,
			"matched", ev.Matched, "reason", ev.Reason, "score", ev.Score)
	case trace.ActionTaken:
		s.logger.Info("request resolved", "action", string(ev.Action), "status", ev.Status)
	default:
		s.logger.Warn("unknown event kind", "kind", string(e.EventKind()))
	}
}
