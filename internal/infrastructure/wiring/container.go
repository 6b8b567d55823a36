// Package wiring constructs the object graph.
package wiring

import (
	"fmt"
	"time"

	"github.com/sophialabs/contractmock/internal/domain/match"
	"github.com/sophialabs/contractmock/internal/domain/scenario"
	"github.com/sophialabs/contractmock/internal/domain/template"
	"github.com/sophialabs/contractmock/internal/domain/trace"
	inboundhttp "github.com/sophialabs/contractmock/internal/infrastructure/inbound/http"
	"github.com/sophialabs/contractmock/internal/infrastructure/outbound/clock"
	"github.com/sophialabs/contractmock/internal/infrastructure/outbound/filesystem"
	"github.com/sophialabs/contractmock/internal/infrastructure/outbound/logging"
	"github.com/sophialabs/contractmock/internal/infrastructure/outbound/openapi"
	"github.com/sophialabs/contractmock/internal/infrastructure/outbound/proxy"
	"github.com/sophialabs/contractmock/internal/infrastructure/ports"
	"github.com/sophialabs/contractmock/internal/infrastructure/services"
	"github.com/sophialabs/contractmock/internal/infrastructure/usecases"
)

// Params is the subset of configuration needed to build the components.
type Params struct {
	SpecFile        string
	ScenariosDir    string
	Upstream        string // "" disables proxying
	UpstreamTimeout time.Duration
	TraceSize       int
	Logger          ports.Logger
}

// Container owns all constructed infrastructure components.
type Container struct {
	logger   ports.Logger
	server   *inboundhttp.Server
	active   *scenario.ActiveState
	traceBuf *trace.RingBuffer
}

// New builds the full object graph. The OpenAPI document is the only
// mandatory input; scenarios load later through Server.Reload.
func New(p Params) (*Container, error) {
	routes, err := openapi.Load(p.SpecFile, p.Logger)
	if err != nil {
		return nil, err
	}

	repo, err := filesystem.NewRepository(p.ScenariosDir)
	if err != nil {
		return nil, err
	}

	var forwarder ports.Forwarder
	if p.Upstream != "" {
		fwd, err := proxy.New(p.Upstream, p.UpstreamTimeout, p.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to configure upstream: %w", err)
		}
		forwarder = fwd
	}

	active := &scenario.ActiveState{}
	traceBuf := trace.NewRingBuffer(p.TraceSize)
	renderer := template.NewRenderer(template.NewCounterStore())

	resolveUC := usecases.NewResolveRequestUseCase(
		match.New(),
		renderer,
		active,
		clock.New(),
		p.Logger,
		logging.NewEventLogger(p.Logger),
		traceBuf,
		forwarder,
	)
	loadUC := usecases.NewLoadScenariosUseCase(repo, services.NewValidator(), p.Logger)

	server := inboundhttp.NewServer(resolveUC, loadUC, routes, active, traceBuf, p.Logger)

	return &Container{
		logger:   p.Logger,
		server:   server,
		active:   active,
		traceBuf: traceBuf,
	}, nil
}

// Logger returns the logger passed at construction time.
func (c *Container) Logger() ports.Logger {
	return c.logger
}

// Server returns the HTTP mock server.
func (c *Container) Server() *inboundhttp.Server {
	return c.server
}

// ActiveState returns the shared active-scenario slot.
func (c *Container) ActiveState() *scenario.ActiveState {
	return c.active
}

// TraceBuf returns the trace ring buffer.
func (c *Container) TraceBuf() *trace.RingBuffer {
	return c.traceBuf
}
