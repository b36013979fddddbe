package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const cratePrefix = "crate://"

// registerResources registers a crate://<name> resource for every package
// currently loaded in the registry and, when a metrics store is
// configured, the query log resource.
func (s *Server) registerResources() {
	for _, name := range s.registry.Names() {
		s.registered[name] = true
		s.registerCrateResource(name)
	}
	if s.metrics != nil {
		s.registerMetricsResource()
	}
}

func (s *Server) registerCrateResource(name string) {
	uri := cratePrefix + name
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        name,
			URI:         uri,
			Description: fmt.Sprintf("rendered documentation for package %s", name),
			MIMEType:    "text/plain",
		},
		s.makeCrateResourceHandler(name),
	)
}

func (s *Server) makeCrateResourceHandler(name string) mcp.ResourceHandler {
	return func(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return s.readCrateResource(name)
	}
}

func (s *Server) readCrateResource(name string) (*mcp.ReadResourceResult, error) {
	if err := s.enterServing(); err != nil {
		return nil, MapError(err)
	}

	entry, ok := s.registry.Get(name)
	if !ok {
		return nil, NewResourceNotFoundError(cratePrefix + name)
	}

	var body strings.Builder
	for _, doc := range entry.Documents {
		body.WriteString(doc.Content)
		body.WriteString("\n\n")
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      cratePrefix + name,
				MIMEType: "text/plain",
				Text:     body.String(),
			},
		},
	}, nil
}

// ReadResource reads a crate://<name> URI directly, used by tests and by
// any caller that has a URI rather than a bare package name.
func (s *Server) ReadResource(uri string) (*mcp.ReadResourceResult, error) {
	if !strings.HasPrefix(uri, cratePrefix) {
		return nil, NewResourceNotFoundError(uri)
	}
	return s.readCrateResource(strings.TrimPrefix(uri, cratePrefix))
}

// ListResources enumerates every loaded package as a crate:// resource.
func (s *Server) ListResources() []ResourceInfo {
	names := s.registry.Names()
	out := make([]ResourceInfo, 0, len(names))
	for _, name := range names {
		out = append(out, ResourceInfo{URI: cratePrefix + name, Name: name})
	}
	return out
}

// ResourceInfo is one entry in a list-resources response.
type ResourceInfo struct {
	URI  string
	Name string
}
