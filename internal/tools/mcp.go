package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/polzovatel/web-research-mcp/internal/fault"
	"github.com/polzovatel/web-research-mcp/internal/session"
)

const (
	ServerName                 = "web-research"
	ScreenshotResourceTemplate = session.ScreenshotURIPrefix + "{index}"
)

// NewMCPServer builds an MCP server exposing the toolbox's tools and the
// session resources.
func NewMCPServer(box Toolbox, r Researcher, version string) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: ServerName, Version: version}, nil)
	RegisterMCP(srv, box, r)
	return srv
}

// RegisterMCP adds every toolbox tool plus the summary resource and the
// screenshot resource template to srv.
func RegisterMCP(srv *mcp.Server, box Toolbox, r Researcher) {
	for _, t := range box.Describe() {
		registerTool(srv, box, t)
	}

	srv.AddResource(&mcp.Resource{
		URI:         session.SummaryURI,
		Name:        "research-summary",
		Description: "Summary of the current research session",
		MIMEType:    "application/json",
	}, func(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		data, err := json.MarshalIndent(r.Summary(), "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode summary: %w", err)
		}
		return &mcp.ReadResourceResult{Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}}}, nil
	})

	srv.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: ScreenshotResourceTemplate,
		Name:        "research-screenshot",
		Description: "Screenshot stored with the session result at {index}",
		MIMEType:    "image/png",
	}, func(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		uri := req.Params.URI
		index, err := strconv.Atoi(strings.TrimPrefix(uri, session.ScreenshotURIPrefix))
		if err != nil {
			return nil, mcp.ResourceNotFoundError(uri)
		}
		data, err := r.ScreenshotByIndex(index)
		if errors.Is(err, fault.ErrResourceNotFound) {
			return nil, mcp.ResourceNotFoundError(uri)
		}
		if err != nil {
			return nil, err
		}
		return &mcp.ReadResourceResult{Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "image/png",
			Blob:     data,
		}}}, nil
	})
}

func registerTool(srv *mcp.Server, box Toolbox, t Tool) {
	tool := &mcp.Tool{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: json.RawMessage(mustMarshal(t.InputSchema)),
	}
	name := t.Name
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var input map[string]any
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &input); err != nil {
				return textResult(fmt.Sprintf("%s: invalid arguments: %v", name, err), true), nil
			}
		}
		res, err := box.Invoke(ctx, name, input)
		if err != nil {
			return nil, err
		}
		return textResult(res.Observation, res.IsError), nil
	})
}

func textResult(text string, isError bool) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: isError,
	}
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("tools: marshal input schema: %v", err))
	}
	return data
}
