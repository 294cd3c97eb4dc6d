package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"agenttodo/internal/logging"
	"agenttodo/internal/queue"
)

const maxLineBytes = 2 * 1024 * 1024

// Store is the queue surface the server exposes.
type Store interface {
	Add(ctx context.Context, repoPath, baseBranch, prompt string) (queue.Task, error)
	List(ctx context.Context) ([]queue.Task, error)
	Remove(ctx context.Context, id string) (bool, error)
}

type toolHandler func(*Server, context.Context, json.RawMessage) (ToolResult, error)

var toolHandlers = map[string]toolHandler{
	"queue_task":  (*Server).queueTask,
	"list_tasks":  (*Server).listTasks,
	"remove_task": (*Server).removeTask,
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger for request handling. Logs never go to stdout,
// which carries the protocol.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logging.NewComponentLogger(logger, "mcp")
	}
}

// WithVersion sets the version reported in serverInfo.
func WithVersion(version string) Option {
	return func(s *Server) {
		if version != "" {
			s.version = version
		}
	}
}

// Server answers MCP requests against a queue store.
type Server struct {
	store   Store
	logger  *slog.Logger
	version string
}

// NewServer constructs a Server for store.
func NewServer(store Store, opts ...Option) *Server {
	s := &Server{
		store:   store,
		logger:  logging.NewNop(),
		version: "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serve reads requests from in until EOF or ctx is done, writing one
// response line per request to out. Cancellation is a clean stop, even while
// waiting on an idle client.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	lines, readErr := readLines(ctx, in)
	encoder := json.NewEncoder(out)

	s.logger.Info("mcp server running on stdio", logging.String(logging.FieldEventType, "mcp_start"))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("mcp server stopped", logging.String(logging.FieldEventType, "mcp_stop"))
			return nil
		case line, ok := <-lines:
			if !ok {
				if err := <-readErr; err != nil {
					return fmt.Errorf("read request: %w", err)
				}
				return nil
			}
			resp := s.HandleLine(ctx, line)
			if resp == nil {
				continue
			}
			if err := encoder.Encode(resp); err != nil {
				return fmt.Errorf("write response: %w", err)
			}
		}
	}
}

// readLines scans non-empty lines from in on its own goroutine. The error
// channel receives the scanner result before lines is closed.
func readLines(ctx context.Context, in io.Reader) (<-chan []byte, <-chan error) {
	lines := make(chan []byte)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		for scanner.Scan() {
			if len(scanner.Bytes()) == 0 {
				continue
			}
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				errc <- nil
				return
			}
		}
		err := scanner.Err()
		if errors.Is(err, io.EOF) {
			err = nil
		}
		errc <- err
	}()
	return lines, errc
}

// HandleLine processes one encoded request. It returns nil for notifications.
func (s *Server) HandleLine(ctx context.Context, line []byte) *Response {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return NewErrorResponse(nil, ParseError, "Failed to parse JSON-RPC request")
	}
	if req.JSONRPC != JSONRPCVersion {
		if req.IsNotification() {
			return nil
		}
		return NewErrorResponse(req.ID, InvalidRequest, "Invalid JSON-RPC version")
	}
	if req.IsNotification() {
		s.logger.Debug("notification ignored", logging.String("method", req.Method))
		return nil
	}
	return s.handleRequest(ctx, &req)
}

func (s *Server) handleRequest(ctx context.Context, req *Request) *Response {
	switch req.Method {
	case "initialize":
		return NewResponse(req.ID, map[string]any{
			"protocolVersion": ProtocolVersion,
			"serverInfo": map[string]any{
				"name":    "agent-todo",
				"version": s.version,
			},
			"capabilities": map[string]any{
				"tools": map[string]any{},
			},
		})
	case "ping":
		return NewResponse(req.ID, map[string]any{})
	case "tools/list":
		return NewResponse(req.ID, map[string]any{"tools": toolDefinitions()})
	case "tools/call":
		return s.callTool(ctx, req)
	default:
		return NewErrorResponse(req.ID, MethodNotFound, fmt.Sprintf("unknown method: %s", req.Method))
	}
}

func (s *Server) callTool(ctx context.Context, req *Request) *Response {
	var params struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return NewErrorResponse(req.ID, InvalidParams, "invalid tools/call params")
	}
	handler, ok := toolHandlers[params.Name]
	if !ok {
		return NewErrorResponse(req.ID, InvalidParams, fmt.Sprintf("Unknown tool: %s", params.Name))
	}

	result, err := handler(s, ctx, params.Arguments)
	if err != nil {
		logging.ErrorWithContext(s.logger, "tool call failed", "mcp_tool_failed",
			logging.String("tool", params.Name),
			logging.Error(err),
		)
		return NewErrorResponse(req.ID, InternalError, err.Error())
	}
	s.logger.Info("tool call handled",
		logging.String(logging.FieldEventType, "mcp_tool_call"),
		logging.String("tool", params.Name),
		logging.Bool("is_error", result.IsError),
	)
	return NewResponse(req.ID, result)
}
