package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const metricsURI = "metrics://query-log"

// metricsRow is the JSON shape of one query-log entry served through the
// metrics://query-log resource.
type metricsRow struct {
	Timestamp   string  `json:"timestamp"`
	Package     string  `json:"package"`
	Question    string  `json:"question"`
	WinningPath string  `json:"winning_path"`
	Score       float64 `json:"score"`
	LatencyMS   int64   `json:"latency_ms"`
}

const metricsRecentLimit = 100

func (s *Server) registerMetricsResource() {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "query_metrics",
			URI:         metricsURI,
			Description: "recent query_documentation calls: package, question, winning document, cosine score, and latency",
			MIMEType:    "application/json",
		},
		s.handleMetricsResource,
	)
}

func (s *Server) handleMetricsResource(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	if err := s.enterServing(); err != nil {
		return nil, MapError(err)
	}
	if s.metrics == nil {
		return nil, NewResourceNotFoundError(metricsURI)
	}

	records, err := s.metrics.Recent(ctx, metricsRecentLimit)
	if err != nil {
		return nil, MapError(fmt.Errorf("reading query log: %w", err))
	}

	rows := make([]metricsRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, metricsRow{
			Timestamp:   rec.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
			Package:     rec.Package,
			Question:    rec.Question,
			WinningPath: rec.WinningPath,
			Score:       rec.Score,
			LatencyMS:   rec.LatencyMS,
		})
	}

	body, err := json.Marshal(rows)
	if err != nil {
		return nil, MapError(fmt.Errorf("encoding query log: %w", err))
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{URI: metricsURI, MIMEType: "application/json", Text: string(body)},
		},
	}, nil
}
