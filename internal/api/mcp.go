package api

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/pactex/pactex/internal/ingest"
)

// NewMCPServer creates an MCP server exposing extraction and population as
// tools and the vector store status as a resource.
func NewMCPServer(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"pactex",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("pactex — retrieval-augmented extraction of structured details from contract text."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("extract_contract",
			mcp.WithDescription("Extract structured details (agreement value, dates, notice period, parties) from contract text as JSON."),
			mcp.WithString("contract_text", mcp.Description("Full text of the contract"), mcp.Required()),
			mcp.WithBoolean("use_rag", mcp.Description("Augment the prompt with similar stored contracts (default true)")),
		),
		mcpExtractContract(deps),
	)

	s.AddTool(
		mcp.NewTool("populate_database",
			mcp.WithDescription("Load contract rows from a spreadsheet into the vector store."),
			mcp.WithString("file_path", mcp.Description("Path to the spreadsheet (defaults to the configured data file)")),
			mcp.WithBoolean("force", mcp.Description("Drop and rebuild the collection first")),
		),
		mcpPopulateDatabase(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"pactex://db-status",
			"Vector Store Status",
			mcp.WithResourceDescription("Vector store health, path, and document count as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceDBStatus(deps),
	)

	return s
}

func mcpExtractContract(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Extractor == nil {
			return mcpError("extraction service is not initialized"), nil
		}

		text, err := req.RequireString("contract_text")
		if err != nil {
			return mcpError("contract_text is required"), nil
		}
		useRAG := req.GetBool("use_rag", true)

		details := deps.Extractor.Extract(ctx, text, useRAG)
		if details == nil {
			return mcpError("no structured data could be extracted from the provided text"), nil
		}

		b, err := json.Marshal(details)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal details: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpPopulateDatabase(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Populator == nil {
			return mcpError("population service is not initialized"), nil
		}

		path := req.GetString("file_path", deps.XLSXPath)
		force := req.GetBool("force", false)

		if _, err := os.Stat(path); err != nil {
			return mcpError(fmt.Sprintf("data file not found: %s", path)), nil
		}
		if err := deps.Populator.Populate(ctx, ingest.NewXLSXSource(path), force); err != nil {
			return mcpError(fmt.Sprintf("database population failed: %v", err)), nil
		}

		count := 0
		if deps.Counter != nil {
			if n, err := deps.Counter.Count(); err == nil {
				count = n
			}
		}
		return mcpText(fmt.Sprintf("Populated collection %q from %s; it now holds %d documents", deps.Collection, path, count)), nil
	}
}

func mcpResourceDBStatus(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(dbStatus(deps))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal status: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
