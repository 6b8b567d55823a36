package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sophialabs/contractmock/internal/domain/match"
	"github.com/sophialabs/contractmock/internal/domain/scenario"
	"github.com/sophialabs/contractmock/internal/domain/template"
	"github.com/sophialabs/contractmock/internal/domain/trace"
	"github.com/sophialabs/contractmock/internal/infrastructure/ports"
	"github.com/sophialabs/contractmock/internal/infrastructure/services"
)

// ScenarioHeader selects a scenario for a single request, overriding the
// globally active one. Only the first value is considered.
const ScenarioHeader = "X-Mock-Scenario"

const jsonContentType = "application/json"

// ResolveInput is everything the pipeline needs for one request. Route is
// nil when the contract does not document the path and method.
type ResolveInput struct {
	Request  *match.Request
	RawQuery string
	Body     []byte
	Route    *services.Route
}

// Response is the fully-decided reply, ready to write.
type Response struct {
	Status  int
	Headers map[string][]string
	Body    []byte
}

// ResolveRequestUseCase runs the resolution pipeline: scenario selection,
// rule matching, then the fallback ladder of happy path, proxy, and 404.
type ResolveRequestUseCase struct {
	matcher   *match.Matcher
	renderer  *template.Renderer
	active    *scenario.ActiveState
	clock     ports.Clock
	logger    ports.Logger
	sink      ports.EventSink
	traceBuf  *trace.RingBuffer
	forwarder ports.Forwarder // nil without a configured upstream
}

// NewResolveRequestUseCase creates a new use case.
func NewResolveRequestUseCase(
	matcher *match.Matcher,
	renderer *template.Renderer,
	active *scenario.ActiveState,
	clock ports.Clock,
	logger ports.Logger,
	sink ports.EventSink,
	traceBuf *trace.RingBuffer,
	forwarder ports.Forwarder,
) *ResolveRequestUseCase {
	return &ResolveRequestUseCase{
		matcher:   matcher,
		renderer:  renderer,
		active:    active,
		clock:     clock,
		logger:    logger,
		sink:      sink,
		traceBuf:  traceBuf,
		forwarder: forwarder,
	}
}

// Execute resolves one request against the given scenario set and returns
// the response to serve. It never fails: every branch ends in a concrete
// status.
func (uc *ResolveRequestUseCase) Execute(ctx context.Context, set *scenario.Set, in *ResolveInput) *Response {
	entry := trace.Entry{
		Timestamp: uc.clock.Now(),
		Method:    in.Request.Method,
		Path:      in.Request.Path,
	}

	name, source := uc.resolveScenarioName(in.Request)
	entry.Source = source
	entry.Scenario = name
	uc.sink.Emit(trace.ScenarioResolved{Source: source, Name: name})

	if name != "" {
		if sc, ok := set.Get(name); ok {
			if resp := uc.serveScenario(ctx, sc, in, &entry); resp != nil {
				return resp
			}
			// No rule matched: fall through to the contract defaults.
		} else if status, ok := scenario.ParseAutoGen(name); ok {
			// Synthetic status scenario. Never contacts the upstream.
			return uc.finish(&entry, trace.ActionAutoGen, &Response{Status: status})
		} else {
			uc.logger.Warn("unknown scenario requested", "name", name, "source", string(source))
		}
	}

	return uc.fallback(ctx, in, &entry)
}

// resolveScenarioName applies the precedence: request header first, then the
// globally active slot, then none.
func (uc *ResolveRequestUseCase) resolveScenarioName(req *match.Request) (string, trace.Source) {
	for key, values := range req.Headers {
		if len(values) > 0 && strings.EqualFold(key, ScenarioHeader) {
			return values[0], trace.SourceHeader
		}
	}
	if name, ok := uc.active.Get(); ok {
		return name, trace.SourceActive
	}
	return "", trace.SourceNone
}

// serveScenario evaluates the scenario's rules; nil means no rule matched.
func (uc *ResolveRequestUseCase) serveScenario(ctx context.Context, sc *scenario.Scenario, in *ResolveInput, entry *trace.Entry) *Response {
	result := uc.matcher.Evaluate(in.Request, sc.Rules, func(out match.Outcome) {
		uc.sink.Emit(trace.RuleEvaluated{
			Scenario: sc.Name,
			RuleID:   out.RuleID,
			Index:    out.Index,
			Matched:  out.Match,
			Reason:   out.Reason,
			Score:    out.Score,
		})
	})
	for _, out := range result.Outcomes {
		entry.Candidates = append(entry.Candidates, trace.CandidateResult{
			RuleID:  out.RuleID,
			Index:   out.Index,
			Matched: out.Match,
			Reason:  out.Reason,
			Score:   out.Score,
		})
	}
	if !result.Matched() {
		uc.logger.Debug("no rule matched",
			"scenario", sc.Name, "method", in.Request.Method, "path", in.Request.Path)
		return nil
	}

	return uc.serveRule(ctx, sc, result.Rule, in, entry)
}

func (uc *ResolveRequestUseCase) serveRule(ctx context.Context, sc *scenario.Scenario, rule *scenario.Rule, in *ResolveInput, entry *trace.Entry) *Response {
	// A rule without any body of its own relays the upstream response and
	// overlays its status and headers.
	if uc.forwarder != nil && !rule.Respond.HasBody && rule.Respond.BodyFile == "" {
		return uc.serveProxyOverride(ctx, sc, rule, in, entry)
	}

	uc.sleepDelay(ctx, sc, rule)

	// Pure mock: a timeout simulates a hung upstream, then answers 504.
	if rule.Respond.Timeout != nil {
		if err := uc.clock.SleepContext(ctx, time.Duration(*rule.Respond.Timeout)*time.Millisecond); err != nil {
			uc.logger.Debug("timeout wait cancelled", "scenario", sc.Name, "rule", rule.ID)
		}
		return uc.finish(entry, trace.ActionTimeout, messageResponse(504, "Mock timeout"))
	}

	body, isJSON, err := uc.ruleBody(sc, rule)
	if err != nil {
		uc.logger.Error("failed to produce rule body",
			"scenario", sc.Name, "rule", rule.ID, "error", err)
		return uc.finish(entry, trace.ActionScenario, messageResponse(500, "Response body unavailable"))
	}

	resp := &Response{
		Status:  rule.Respond.Status,
		Headers: map[string][]string{},
		Body:    body,
	}
	if len(body) > 0 && isJSON {
		resp.Headers["Content-Type"] = []string{jsonContentType}
	}
	for k, v := range rule.Respond.Headers {
		resp.Headers[k] = []string{v}
	}
	return uc.finish(entry, trace.ActionScenario, resp)
}

// ruleBody loads, renders, and encodes the rule's body. A string value is
// served verbatim after rendering; anything else is marshalled as JSON. The
// bool return tells whether the bytes are JSON-encoded.
func (uc *ResolveRequestUseCase) ruleBody(sc *scenario.Scenario, rule *scenario.Rule) ([]byte, bool, error) {
	var raw any
	switch {
	case rule.Respond.HasBody:
		raw = rule.Respond.Body
	case rule.Respond.BodyFile != "":
		data, err := os.ReadFile(filepath.Join(sc.SourceDir, rule.Respond.BodyFile))
		if err != nil {
			return nil, false, err
		}
		var parsed any
		if jsonErr := json.Unmarshal(data, &parsed); jsonErr != nil {
			parsed = string(data)
		}
		raw = parsed
	default:
		return nil, false, nil
	}
	if raw == nil {
		return nil, false, nil
	}

	rendered, err := uc.renderer.Render(sc.Name, raw)
	if err != nil {
		// Validation rejects template errors at load time; this can only
		// happen when a body file changed on disk after loading.
		return nil, false, err
	}

	if s, ok := rendered.Value.(string); ok {
		return []byte(s), false, nil
	}
	data, err := json.Marshal(rendered.Value)
	return data, err == nil, err
}

func (uc *ResolveRequestUseCase) sleepDelay(ctx context.Context, sc *scenario.Scenario, rule *scenario.Rule) {
	if rule.Respond.DelayMs <= 0 {
		return
	}
	if err := uc.clock.SleepContext(ctx, time.Duration(rule.Respond.DelayMs)*time.Millisecond); err != nil {
		uc.logger.Debug("delay cancelled", "scenario", sc.Name, "rule", rule.ID)
	}
}

// serveProxyOverride relays the request upstream, bounded by the rule's
// timeout, then overlays the rule's status and headers on the answer. The
// rule's delay applies after the upstream round trip, before responding.
func (uc *ResolveRequestUseCase) serveProxyOverride(ctx context.Context, sc *scenario.Scenario, rule *scenario.Rule, in *ResolveInput, entry *trace.Entry) *Response {
	fwdCtx := ctx
	if rule.Respond.Timeout != nil {
		var cancel context.CancelFunc
		fwdCtx, cancel = context.WithTimeout(ctx, time.Duration(*rule.Respond.Timeout)*time.Millisecond)
		defer cancel()
	}

	upstream, err := uc.forwarder.Forward(fwdCtx, &ports.ForwardRequest{
		Method:   in.Request.Method,
		Path:     in.Request.Path,
		RawQuery: in.RawQuery,
		Headers:  in.Request.Headers,
		Body:     in.Body,
	})
	uc.sleepDelay(ctx, sc, rule)
	if err != nil {
		if errors.Is(err, ports.ErrUpstreamTimeout) || errors.Is(err, context.DeadlineExceeded) {
			if rule.Respond.Timeout != nil {
				return uc.finish(entry, trace.ActionTimeout, messageResponse(504, "Mock timeout"))
			}
			return uc.finish(entry, trace.ActionProxy, messageResponse(504, "Proxy timeout"))
		}
		uc.logger.Error("upstream relay failed", "error", err)
		return uc.finish(entry, trace.ActionProxy, messageResponse(502, "Proxy error"))
	}

	resp := &Response{
		Status:  upstream.Status,
		Headers: make(map[string][]string, len(upstream.Headers)),
		Body:    upstream.Body,
	}
	for k, v := range upstream.Headers {
		resp.Headers[k] = v
	}
	if rule.Respond.Status != 0 {
		resp.Status = rule.Respond.Status
	}
	for k, v := range rule.Respond.Headers {
		resp.Headers[k] = []string{v}
	}
	return uc.finish(entry, trace.ActionProxy, resp)
}

// fallback is the ladder below scenarios: documented routes serve their
// happy path, undocumented ones are relayed when an upstream exists,
// otherwise 404.
func (uc *ResolveRequestUseCase) fallback(ctx context.Context, in *ResolveInput, entry *trace.Entry) *Response {
	if in.Route != nil {
		status, body, ok := services.HappyPath(in.Route)
		if !ok {
			return uc.finish(entry, trace.ActionHappyPath, &Response{Status: 404})
		}
		resp := &Response{Status: status, Headers: map[string][]string{}}
		if body != nil {
			data, err := json.Marshal(body)
			if err != nil {
				uc.logger.Error("failed to encode contract example", "error", err)
				return uc.finish(entry, trace.ActionHappyPath, messageResponse(500, "Response body unavailable"))
			}
			resp.Body = data
			resp.Headers["Content-Type"] = []string{jsonContentType}
		}
		return uc.finish(entry, trace.ActionHappyPath, resp)
	}

	if uc.forwarder != nil {
		upstream, err := uc.forwarder.Forward(ctx, &ports.ForwardRequest{
			Method:   in.Request.Method,
			Path:     in.Request.Path,
			RawQuery: in.RawQuery,
			Headers:  in.Request.Headers,
			Body:     in.Body,
		})
		if err != nil {
			if errors.Is(err, ports.ErrUpstreamTimeout) {
				return uc.finish(entry, trace.ActionProxy, messageResponse(504, "Proxy timeout"))
			}
			uc.logger.Error("upstream relay failed", "error", err)
			return uc.finish(entry, trace.ActionProxy, messageResponse(502, "Proxy error"))
		}
		return uc.finish(entry, trace.ActionProxy, &Response{
			Status:  upstream.Status,
			Headers: upstream.Headers,
			Body:    upstream.Body,
		})
	}

	return uc.finish(entry, trace.ActionHappyPath, &Response{Status: 404})
}

// finish records the decision in the trace buffer and event stream. The
// single exit point keeps entry and events consistent.
func (uc *ResolveRequestUseCase) finish(entry *trace.Entry, action trace.Action, resp *Response) *Response {
	entry.Action = action
	entry.Status = resp.Status
	uc.traceBuf.Add(*entry)
	uc.sink.Emit(trace.ActionTaken{Action: action, Status: resp.Status})
	return resp
}

func messageResponse(status int, msg string) *Response {
	body, _ := json.Marshal(map[string]string{"message": msg})
	return &Response{
		Status:  status,
		Headers: map[string][]string{"Content-Type": {jsonContentType}},
		Body:    body,
	}
}

