package services

import (
	"context"
)

var mcpServerStatus = map[string]int32{
	"MCP_SERVER_STATUS_DISCONNECTED": 0,
	"MCP_SERVER_STATUS_CONNECTED":    1,
	"MCP_SERVER_STATUS_CONNECTING":   2,
}

// MCPHandler serves McpService.
type MCPHandler struct {
	base
}

func (h *MCPHandler) Call(ctx context.Context, method string, payload any, opts StreamOptions) (any, error) {
	switch method {
	case "getLatestMcpServers":
		resp, err := unary[mcpServers](ctx, &h.base, method, &empty{})
		if err != nil {
			return nil, err
		}
		h.log.Debugf("received %d MCP servers", len(resp.McpServers))
		return mcpServerList(resp), nil
	case "subscribeToMcpServers":
		return subscribe(ctx, &h.base, method, newEmptyRequest(), mcpServerList, opts)
	default:
		return h.notImplemented(method), nil
	}
}

// mcpServerList renders servers with the snake_case keys the UI reads.
func mcpServerList(m *mcpServers) any {
	servers := make([]any, 0, len(m.McpServers))
	for _, s := range m.McpServers {
		tools := make([]any, 0, len(s.Tools))
		for _, t := range s.Tools {
			tools = append(tools, map[string]any{
				"name":         t.Name,
				"description":  t.Description,
				"input_schema": t.InputSchema,
				"auto_approve": t.AutoApprove,
			})
		}
		resources := make([]any, 0, len(s.Resources))
		for _, r := range s.Resources {
			resources = append(resources, map[string]any{
				"uri":         r.URI,
				"name":        r.Name,
				"mime_type":   r.MimeType,
				"description": r.Description,
			})
		}
		templates := make([]any, 0, len(s.ResourceTemplates))
		for _, r := range s.ResourceTemplates {
			templates = append(templates, map[string]any{
				"uri_template": r.URITemplate,
				"name":         r.Name,
				"mime_type":    r.MimeType,
				"description":  r.Description,
			})
		}
		servers = append(servers, map[string]any{
			"name":               s.Name,
			"config":             s.Config,
			"status":             s.Status.number(mcpServerStatus),
			"error":              s.Error,
			"disabled":           s.Disabled,
			"timeout":            int64(s.Timeout),
			"tools":              tools,
			"resources":          resources,
			"resource_templates": templates,
		})
	}
	return map[string]any{"mcp_servers": servers}
}
