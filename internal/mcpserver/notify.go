package mcpserver

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// notifyHandler is a slog.Handler that forwards every record both to the
// wrapped handler (the file-backed logger from internal/logging) and, as a
// logging/message notification, to every connected session — the
// structured log-notification direction the RPC surface names alongside
// query_documentation and the crate:// resources.
type notifyHandler struct {
	next   slog.Handler
	server *mcp.Server
}

func newNotifyHandler(next slog.Handler, server *mcp.Server) *notifyHandler {
	return &notifyHandler{next: next, server: server}
}

func (h *notifyHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *notifyHandler) Handle(ctx context.Context, record slog.Record) error {
	if err := h.next.Handle(ctx, record); err != nil {
		return err
	}

	data := map[string]any{"msg": record.Message}
	record.Attrs(func(a slog.Attr) bool {
		data[a.Key] = a.Value.Any()
		return true
	})

	params := &mcp.LoggingMessageParams{
		Level:  severityFor(record.Level),
		Logger: serverName,
		Data:   data,
	}

	for session := range h.server.Sessions() {
		_ = session.Log(ctx, params)
	}
	return nil
}

func (h *notifyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &notifyHandler{next: h.next.WithAttrs(attrs), server: h.server}
}

func (h *notifyHandler) WithGroup(name string) slog.Handler {
	return &notifyHandler{next: h.next.WithGroup(name), server: h.server}
}

// severityFor maps a slog level onto the MCP logging severities (debug,
// info, notice, warning, error). slog has no "notice" level, so that
// severity is never emitted automatically here; callers that need it log
// at mcp.LoggingLevelNotice through the session directly.
func severityFor(level slog.Level) mcp.LoggingLevel {
	switch {
	case level < slog.LevelInfo:
		return mcp.LoggingLevelDebug
	case level < slog.LevelWarn:
		return mcp.LoggingLevelInfo
	case level < slog.LevelError:
		return mcp.LoggingLevelWarning
	default:
		return mcp.LoggingLevelError
	}
}
