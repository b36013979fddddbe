// Package mcpserver exposes the query engine and package registry over the
// Model Context Protocol, the way the teacher's internal/mcp package
// exposes its search engine — one tool, a handful of resources, and
// structured log notifications bridged from slog.
package mcpserver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	doceerrors "github.com/pkgdocs-mcp/pkgdocs-mcp/internal/errors"
	"github.com/pkgdocs-mcp/pkgdocs-mcp/internal/query"
	"github.com/pkgdocs-mcp/pkgdocs-mcp/internal/registry"
	"github.com/pkgdocs-mcp/pkgdocs-mcp/internal/telemetry"
)

// connState tracks this server's position in the connection lifecycle the
// RPC surface is specified against: Uninitialized -> Initialized ->
// Serving -> Closed. The underlying SDK already enforces the MCP
// handshake itself; this is this package's own bookkeeping so tool and
// resource handlers can refuse work outside the Serving window and so the
// one-shot startup banner fires exactly once.
type connState int32

const (
	stateUninitialized connState = iota
	stateInitialized
	stateServing
	stateClosed
)

const serverName = "pkgdocs-mcp"

// Registry is the subset of *registry.Registry the server depends on.
type Registry interface {
	Names() []string
	Get(name string) (*registry.CrateEntry, bool)
}

// Engine answers a documentation question about one package.
type Engine interface {
	Query(ctx context.Context, packageName, question string) (string, error)
}

// Server bridges the query engine and registry to MCP clients.
type Server struct {
	mcp      *mcp.Server
	registry Registry
	engine   Engine
	logger   *slog.Logger

	state        atomic.Int32
	bannerShown  atomic.Bool
	bannerText   string
	mu           sync.RWMutex
	registered   map[string]bool

	metrics telemetry.Store
}

// crateNotifier is satisfied by *registry.Registry; it lets New wire the
// server as the registry's notification peer without widening the narrow
// Registry interface above (its test fakes have no need of it).
type crateNotifier interface {
	SetNotifier(n registry.Notifier)
}

// Option configures optional Server behavior.
type Option func(*Server)

// WithMetricsStore attaches a telemetry store, exposing it through a
// metrics://query-log resource. A server without one simply omits that
// resource.
func WithMetricsStore(store telemetry.Store) Option {
	return func(s *Server) { s.metrics = store }
}

// QueryDocumentationInput is the input schema for the query_documentation tool.
type QueryDocumentationInput struct {
	Package  string `json:"package" jsonschema:"the package name to query documentation for"`
	Question string `json:"question" jsonschema:"the question to answer using that package's documentation"`
}

// QueryDocumentationOutput is the output schema for the query_documentation tool.
type QueryDocumentationOutput struct {
	Answer string `json:"answer" jsonschema:"the answer, grounded in the package's rendered documentation"`
}

// New builds a Server. version is reported in the MCP Implementation info.
func New(reg Registry, engine Engine, version string, opts ...Option) *Server {
	s := &Server{
		registry:   reg,
		engine:     engine,
		logger:     slog.Default(),
		bannerText: fmt.Sprintf("%s ready — %d package(s) loaded", serverName, len(reg.Names())),
		registered: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.state.Store(int32(stateUninitialized))

	s.mcp = mcp.NewServer(&mcp.Implementation{Name: serverName, Version: version}, nil)
	s.logger = slog.New(newNotifyHandler(slog.Default().Handler(), s.mcp))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "query_documentation",
		Description: "Answer a question about a Go package using its rendered documentation, ranked by semantic similarity.",
	}, s.handleQueryDocumentation)

	s.registerResources()

	if notifiable, ok := reg.(crateNotifier); ok {
		notifiable.SetNotifier(s)
	}

	s.state.Store(int32(stateInitialized))
	return s
}

// OnCrateIngested implements registry.Notifier: it registers name as a
// crate:// resource the moment the registry installs it, so a lazily
// ingested package is visible to list-resources/read-resource without
// waiting for a later list-resources poll to rediscover it. Idempotent —
// reingesting an already-registered name (the content is re-read from the
// registry at request time, not snapshotted here) is a no-op.
func (s *Server) OnCrateIngested(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.registered[name] {
		return
	}
	s.registered[name] = true
	s.registerCrateResource(name)
}

// MCPServer returns the underlying SDK server, for Serve to run.
func (s *Server) MCPServer() *mcp.Server { return s.mcp }

// Serve runs the server over stdio until ctx is cancelled or the transport
// closes.
func (s *Server) Serve(ctx context.Context) error {
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	s.state.Store(int32(stateClosed))
	return err
}

func (s *Server) enterServing() error {
	switch connState(s.state.Load()) {
	case stateClosed:
		return doceerrors.New(doceerrors.ProtocolError, "server connection is closed", nil)
	case stateUninitialized:
		return doceerrors.New(doceerrors.ProtocolError, "server has not completed initialization", nil)
	}
	s.state.CompareAndSwap(int32(stateInitialized), int32(stateServing))
	return nil
}

func (s *Server) announceBannerOnce() {
	if !s.bannerShown.CompareAndSwap(false, true) {
		return
	}
	s.logger.Info(s.bannerText, slog.String("event", "startup_banner"))
}

func (s *Server) handleQueryDocumentation(ctx context.Context, _ *mcp.CallToolRequest, input QueryDocumentationInput) (
	*mcp.CallToolResult,
	QueryDocumentationOutput,
	error,
) {
	if err := s.enterServing(); err != nil {
		return nil, QueryDocumentationOutput{}, MapError(err)
	}
	s.announceBannerOnce()

	if strings.TrimSpace(input.Package) == "" {
		return nil, QueryDocumentationOutput{}, NewInvalidParamsError("package is required")
	}
	if strings.TrimSpace(input.Question) == "" {
		return nil, QueryDocumentationOutput{}, NewInvalidParamsError("question is required")
	}

	// requestID correlates this call's start/complete/failed log lines
	// across a session serving many concurrent queries.
	requestID := uuid.NewString()
	logger := s.logger.With(slog.String("request_id", requestID))

	logger.Info("query_documentation started", slog.String("package", input.Package))

	answer, err := s.engine.Query(ctx, input.Package, input.Question)
	if err != nil {
		logger.Error("query_documentation failed",
			slog.String("package", input.Package),
			slog.String("error", err.Error()))
		return nil, QueryDocumentationOutput{}, MapError(err)
	}

	logger.Info("query_documentation completed", slog.String("package", input.Package))
	return nil, QueryDocumentationOutput{Answer: answer}, nil
}
