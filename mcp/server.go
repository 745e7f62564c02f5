package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// ServerName is the MCP implementation name announced to hosts
const ServerName = "x402-fetch"

// ToolServer is an MCP server carrying the fetch and walletInfo tools
type ToolServer struct {
	server  *mcpsdk.Server
	fetcher *Fetcher
}

// NewToolServer creates the MCP server and registers both tools
func NewToolServer(fetcher *Fetcher, version string) *ToolServer {
	s := &ToolServer{
		server: mcpsdk.NewServer(&mcpsdk.Implementation{
			Name:    ServerName,
			Version: version,
		}, nil),
		fetcher: fetcher,
	}

	s.server.AddTool(&mcpsdk.Tool{
		Name: ToolFetch,
		Description: "Fetch a URL over HTTP. If the server requires an x402 payment, pay it once " +
			"from the configured wallet, within the spend ceiling, and return the content with payment details.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"url":    map[string]interface{}{"type": "string", "description": "The URL to fetch"},
				"method": map[string]interface{}{"type": "string", "description": "HTTP method (default GET)"},
				"headers": map[string]interface{}{
					"type":                 "object",
					"description":          "Request headers",
					"additionalProperties": map[string]interface{}{"type": "string"},
				},
				"body": map[string]interface{}{"type": "string", "description": "Request body"},
			},
			"required": []string{"url"},
		},
	}, s.handleFetch)

	s.server.AddTool(&mcpsdk.Tool{
		Name:        ToolWalletInfo,
		Description: "Show the wallet address payments are made from and the network it pays on.",
		InputSchema: map[string]interface{}{"type": "object"},
	}, s.handleWalletInfo)

	return s
}

// Server returns the underlying MCP server
func (s *ToolServer) Server() *mcpsdk.Server {
	return s.server
}

// Run serves MCP over stdin/stdout until ctx is done or the host disconnects
func (s *ToolServer) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *ToolServer) handleFetch(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var args FetchArgs
	if req.Params.Arguments != nil {
		if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
			return textResult(failure(fmt.Errorf("invalid arguments: %w", err)), true)
		}
	}

	result := s.fetcher.Fetch(ctx, args)
	return textResult(result, result.Error != "")
}

func (s *ToolServer) handleWalletInfo(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	info, err := s.fetcher.WalletInfo()
	if err != nil {
		return textResult(failure(err), true)
	}
	return textResult(info, false)
}

func textResult(v interface{}, isError bool) (*mcpsdk.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tool result: %w", err)
	}
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
		IsError: isError,
	}, nil
}
