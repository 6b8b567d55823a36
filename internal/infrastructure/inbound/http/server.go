// Package http exposes the mock surface and the /__admin control plane.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sophialabs/contractmock/internal/domain/match"
	"github.com/sophialabs/contractmock/internal/domain/scenario"
	"github.com/sophialabs/contractmock/internal/domain/trace"
	"github.com/sophialabs/contractmock/internal/infrastructure/outbound/openapi"
	"github.com/sophialabs/contractmock/internal/infrastructure/ports"
	"github.com/sophialabs/contractmock/internal/infrastructure/services"
	"github.com/sophialabs/contractmock/internal/infrastructure/usecases"
)

const maxBodySize = 10 << 20 // 10 MB

// Server serves mock traffic plus the admin endpoints. The scenario set is
// swapped atomically on reload; in-flight requests keep the set they started
// with.
type Server struct {
	scenarios atomic.Pointer[scenario.Set]
	rebuildMu sync.Mutex
	resolveUC *usecases.ResolveRequestUseCase
	loadUC    *usecases.LoadScenariosUseCase
	routes    *openapi.Table
	active    *scenario.ActiveState
	traceBuf  *trace.RingBuffer
	logger    ports.Logger
	mux       *chi.Mux
}

// NewServer creates a new Server. Call Swap with an initial set before
// serving traffic.
func NewServer(
	resolveUC *usecases.ResolveRequestUseCase,
	loadUC *usecases.LoadScenariosUseCase,
	routes *openapi.Table,
	active *scenario.ActiveState,
	traceBuf *trace.RingBuffer,
	logger ports.Logger,
) *Server {
	s := &Server{
		resolveUC: resolveUC,
		loadUC:    loadUC,
		routes:    routes,
		active:    active,
		traceBuf:  traceBuf,
		logger:    logger,
	}
	s.mux = s.buildRouter()
	return s
}

// Swap atomically replaces the scenario set.
func (s *Server) Swap(set *scenario.Set) {
	s.scenarios.Store(set)
	s.logger.Info("scenario set swapped", "scenarios", set.Len())
}

// Reload re-reads the scenario directory and swaps the set when validation
// passes. Serialized so concurrent watcher and admin reloads cannot
// interleave.
func (s *Server) Reload() (services.Report, error) {
	s.rebuildMu.Lock()
	defer s.rebuildMu.Unlock()

	set, report, err := s.loadUC.Execute(context.Background())
	if err != nil {
		return report, err
	}
	if report.HasErrors() {
		s.logger.Error("reload rejected, keeping previous scenario set",
			"findings", len(report.Findings))
		return report, nil
	}
	s.Swap(set)
	return report, nil
}

// ActivateScenario sets the active slot, enforcing the same existence rule
// as the admin endpoint: the name must be loaded or synthetic.
func (s *Server) ActivateScenario(name string) error {
	if _, autoGen := scenario.ParseAutoGen(name); !autoGen {
		set := s.scenarios.Load()
		if set == nil {
			return errors.New("no scenario set loaded")
		}
		if _, ok := set.Get(name); !ok {
			return fmt.Errorf("unknown scenario %q", name)
		}
	}
	s.active.Set(name)
	return nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) buildRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/__admin", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/scenarios", s.handleListScenarios)
		r.Get("/scenario", s.handleGetActiveScenario)
		r.Put("/scenario", s.handleSetActiveScenario)
		r.Get("/trace", s.handleGetTrace)
		r.Post("/reload", s.handleReload)
	})

	// Everything else is mock traffic: dispatch happens in the resolution
	// pipeline, not in chi routes.
	r.NotFound(s.mockHandler)
	r.MethodNotAllowed(s.mockHandler)

	return r
}

func (s *Server) mockHandler(w http.ResponseWriter, r *http.Request) {
	set := s.scenarios.Load()
	if set == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	defer func() { _ = r.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	query := make(map[string]string)
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			query[k] = v[0]
		}
	}

	in := &usecases.ResolveInput{
		Request: &match.Request{
			Method:  r.Method,
			Path:    r.URL.Path,
			Headers: r.Header,
			Query:   query,
		},
		RawQuery: r.URL.RawQuery,
		Body:     body,
	}
	if route, ok := s.routes.Match(r); ok {
		in.Route = route
	}

	resp := s.resolveUC.Execute(r.Context(), set, in)

	for k, values := range resp.Headers {
		for _, v := range values {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.Status)
	if len(resp.Body) > 0 {
		if _, err := w.Write(resp.Body); err != nil {
			s.logger.Debug("failed to write response body", "error", err)
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	set := s.scenarios.Load()
	if set == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		writeJSON(w, map[string]string{"status": "starting"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{
		"status":    "ok",
		"scenarios": set.Len(),
		"routes":    s.routes.Len(),
	})
}

func (s *Server) handleListScenarios(w http.ResponseWriter, _ *http.Request) {
	set := s.scenarios.Load()
	scenarios := []map[string]any{}
	if set != nil {
		for _, name := range set.Names() {
			sc, _ := set.Get(name)
			scenarios = append(scenarios, map[string]any{
				"name":        sc.Name,
				"description": sc.Description,
				"version":     sc.Version,
				"rules":       len(sc.Rules),
				"source_file": sc.SourceFile,
			})
		}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, scenarios)
}

func (s *Server) handleGetActiveScenario(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if name, ok := s.active.Get(); ok {
		writeJSON(w, map[string]any{"active": name})
		return
	}
	writeJSON(w, map[string]any{"active": nil})
}

func (s *Server) handleSetActiveScenario(w http.ResponseWriter, r *http.Request) {
	defer func() { _ = r.Body.Close() }()

	var payload struct {
		Scenario *string `json:"scenario"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&payload); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		writeJSON(w, map[string]string{"error": "bad_request", "message": "body must be {\"scenario\": <name or null>}"})
		return
	}

	if payload.Scenario == nil || *payload.Scenario == "" {
		s.active.Clear()
		s.logger.Info("active scenario cleared")
		w.Header().Set("Content-Type", "application/json")
		writeJSON(w, map[string]any{"active": nil})
		return
	}

	name := *payload.Scenario
	if _, autoGen := scenario.ParseAutoGen(name); !autoGen {
		set := s.scenarios.Load()
		if set == nil {
			http.Error(w, "server not ready", http.StatusServiceUnavailable)
			return
		}
		if _, ok := set.Get(name); !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			writeJSON(w, map[string]string{"error": "not_found", "message": "unknown scenario: " + name})
			return
		}
	}

	s.active.Set(name)
	s.logger.Info("active scenario set", "name", name)
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{"active": name})
}

func (s *Server) handleGetTrace(w http.ResponseWriter, r *http.Request) {
	n := 10
	if lastParam := r.URL.Query().Get("last"); lastParam != "" {
		if parsed, err := strconv.Atoi(lastParam); err == nil && parsed > 0 {
			n = parsed
		}
	}

	entries := s.traceBuf.Last(n)
	if entries == nil {
		entries = []trace.Entry{}
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, entries)
}

func (s *Server) handleReload(w http.ResponseWriter, _ *http.Request) {
	report, err := s.Reload()
	if err != nil {
		s.logger.Error("reload failed", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		writeJSON(w, map[string]string{"error": "reload_failed", "message": err.Error()})
		return
	}

	if report.HasErrors() {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		writeJSON(w, map[string]any{
			"error":    "validation_failed",
			"message":  "scenario validation failed, previous set kept",
			"findings": findingsJSON(report.Findings),
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{
		"status":   "ok",
		"message":  "scenarios reloaded",
		"warnings": findingsJSON(report.Warnings()),
	})
}

func findingsJSON(findings []services.ValidationError) []map[string]any {
	out := make([]map[string]any, 0, len(findings))
	for _, f := range findings {
		m := map[string]any{
			"severity": string(f.Severity),
			"file":     f.File,
			"message":  f.Message,
		}
		if f.Path != "" {
			m["path"] = f.Path
		}
		if f.RuleID != "" {
			m["rule"] = f.RuleID
		}
		if f.Line > 0 {
			m["line"] = f.Line
			m["column"] = f.Column
		}
		out = append(out, m)
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
