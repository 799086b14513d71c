package monitor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterMCP exposes the monitor as MCP tools so an agent can trigger
// checks on demand instead of waiting for the next scheduled run.
//
// Arguments arrive in req.Params.Arguments as json.RawMessage; tool
// errors go through result.SetError with a nil handler error.
func (r *Runner) RegisterMCP(srv *mcp.Server, baseURL string) {
	r.registerCheckWindow(srv)
	r.registerProbeDate(srv, baseURL)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func toolError(err error) *mcp.CallToolResult {
	var res mcp.CallToolResult
	res.SetError(err)
	return &res
}

func toolResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return toolError(fmt.Errorf("marshal: %w", err)), nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil
}

func (r *Runner) registerCheckWindow(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "check_window",
		Description: "Run a change check over the tracked lunch window and return detected changes",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	srv.AddTool(tool, func(ctx context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res, err := r.Run(ctx)
		if err != nil {
			return toolError(err), nil
		}
		return toolResult(map[string]any{
			"checked": res.Checked,
			"events":  res.Events,
			"errors":  res.Errors,
		})
	})
}

func (r *Runner) registerProbeDate(srv *mcp.Server, baseURL string) {
	type req struct {
		Offset int `json:"offset"`
	}

	tool := &mcp.Tool{
		Name:        "probe_date",
		Description: "Probe a single date page, capture diagnostics, and return the extracted snapshot",
		InputSchema: inputSchema(map[string]any{
			"offset": map[string]any{"type": "integer", "description": "Calendar days from today; 1 is tomorrow"},
		}, []string{"offset"}),
	}

	srv.AddTool(tool, func(ctx context.Context, call *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var p req
		if err := json.Unmarshal(call.Params.Arguments, &p); err != nil {
			return toolError(fmt.Errorf("invalid arguments: %w", err)), nil
		}
		report, err := r.Probe(ctx, baseURL, p.Offset)
		if err != nil {
			return toolError(err), nil
		}
		return toolResult(map[string]any{
			"date":      report.Page.DateKey(),
			"url":       report.Page.URL,
			"available": report.Snapshot.Available,
			"count":     report.Snapshot.Count,
			"items":     report.Snapshot.ItemNames(),
			"strategy":  report.Snapshot.Strategy,
		})
	})
}
