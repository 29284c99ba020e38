// Package dispatch maps named tool calls and resource reads onto a
// qBittorrent backend. Every call produces a textual result; client
// failures are reported in the result text rather than as Go errors so the
// caller always has a well formed reply to return.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/s0up4200/qbitctl/qbittorrent"
)

// Tool describes an invocable operation and its JSON schema input
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// Result is the reply to a tool call
type Result struct {
	Text    string `json:"text"`
	IsError bool   `json:"isError,omitempty"`
}

type handler func(ctx context.Context, args json.RawMessage) Result

type entry struct {
	tool    Tool
	handler handler
}

// Registry dispatches tool calls and resource reads
type Registry struct {
	api    qbittorrent.API
	logger zerolog.Logger
	tools  map[string]entry
	order  []string
}

// NewRegistry creates a registry serving the given backend
func NewRegistry(api qbittorrent.API, logger zerolog.Logger) *Registry {
	r := &Registry{
		api:    api,
		logger: logger.With().Str("component", "dispatch").Logger(),
		tools:  make(map[string]entry),
	}
	r.registerTools()
	return r
}

func (r *Registry) register(tool Tool, h handler) {
	if _, exists := r.tools[tool.Name]; !exists {
		r.order = append(r.order, tool.Name)
	}
	r.tools[tool.Name] = entry{tool: tool, handler: h}
}

// Tools returns the registered tools in registration order
func (r *Registry) Tools() []Tool {
	tools := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		tools = append(tools, r.tools[name].tool)
	}
	return tools
}

// Call invokes the named tool. It never fails: unknown tools, invalid
// arguments and backend errors are all reported in the Result.
func (r *Registry) Call(ctx context.Context, name string, args json.RawMessage) Result {
	e, ok := r.tools[name]
	if !ok {
		r.logger.Warn().Str("tool", name).Msg("Unknown tool requested")
		return errorResult(fmt.Sprintf("Unknown tool: %s", name))
	}

	r.logger.Debug().Str("tool", name).Msg("Dispatching tool call")
	result := e.handler(ctx, normalizeArgs(args))
	if result.IsError {
		r.logger.Warn().Str("tool", name).Str("result", result.Text).Msg("Tool call failed")
	}
	return result
}

// normalizeArgs treats missing or null arguments as an empty object
func normalizeArgs(args json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(args)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return json.RawMessage("{}")
	}
	return trimmed
}

func textResult(text string) Result {
	return Result{Text: text}
}

func errorResult(text string) Result {
	return Result{Text: text, IsError: true}
}

// invalid reports a caller error; the backend is never contacted.
func invalid(format string, args ...any) Result {
	return errorResult(fmt.Sprintf("%v: %s", qbittorrent.ErrValidationFailed, fmt.Sprintf(format, args...)))
}

// failed reports a backend error for the described activity
func failed(activity string, err error) Result {
	return errorResult(fmt.Sprintf("Error %s: %v", activity, err))
}

// decodeArgs decodes the call arguments into v
func decodeArgs(args json.RawMessage, v any) error {
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("arguments must be a JSON object: %w", err)
	}
	return nil
}
