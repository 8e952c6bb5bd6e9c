package mcp

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// newToolResultFromResponse converts ToolResponse content into MCP content.
// Strings pass through as text; everything else is serialized to JSON text.
func newToolResultFromResponse(response *ToolResponse) (*mcp.CallToolResult, error) {
	if response == nil || len(response.Content) == 0 {
		return mcp.NewToolResultText("No content available"), nil
	}

	mcpContent := make([]mcp.Content, 0, len(response.Content))
	for _, content := range response.Content {
		switch v := content.(type) {
		case string:
			mcpContent = append(mcpContent, mcp.TextContent{Type: "text", Text: v})
		default:
			data, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal content: %w", err)
			}
			mcpContent = append(mcpContent, mcp.TextContent{Type: "text", Text: string(data)})
		}
	}

	return &mcp.CallToolResult{Content: mcpContent}, nil
}

// Helper to get string with default empty
func getString(req mcp.CallToolRequest, key string) string {
	return req.GetString(key, "")
}

// Helper to get an integer argument; JSON numbers arrive as float64
func getInt(req mcp.CallToolRequest, key string) int {
	switch v := req.GetArguments()[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 0
}

// Helper to get a float argument
func getFloat(req mcp.CallToolRequest, key string) float64 {
	switch v := req.GetArguments()[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return 0
}

// splitCSV splits a comma-separated argument into trimmed non-empty parts
func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
