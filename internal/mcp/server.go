// Package mcp exposes document analysis as Model Context Protocol tools over
// stdio, so assistants can classify and review billing documents directly.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/boobootoo2/medbilldozer-sub000/internal/analysis"
	"github.com/boobootoo2/medbilldozer-sub000/internal/classify"
	"github.com/boobootoo2/medbilldozer-sub000/internal/model"
	"github.com/boobootoo2/medbilldozer-sub000/internal/pipeline"
	"github.com/boobootoo2/medbilldozer-sub000/internal/store"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// ServerConfig holds the components the tools call into
type ServerConfig struct {
	Pipeline *pipeline.Pipeline
	Registry *analysis.Registry
	Store    store.Store // optional; enables save and history tools
	Version  string
}

// NewServer creates an MCP server with every analysis tool registered
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}

	s := server.NewMCPServer("medbilldozer", ver, server.WithToolCapabilities(false))

	registerAnalyzeTool(s, cfg)
	registerClassifyTool(s)
	registerProvidersTool(s, cfg.Registry)
	if cfg.Store != nil {
		registerRunsTool(s, cfg.Store)
		registerGetRunTool(s, cfg.Store)
	}
	return s
}

// Serve runs the server on stdin/stdout until the client disconnects
func Serve(cfg ServerConfig) error {
	return server.ServeStdio(NewServer(cfg))
}

func registerAnalyzeTool(s *server.MCPServer, cfg ServerConfig) {
	tool := mcp.NewTool("analyze_document",
		mcp.WithDescription("Analyze the text of a medical bill, EOB, pharmacy receipt, dental bill or FSA claim history. Returns the document with extracted facts, line items and advisory billing issues with estimated savings."),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Plain text of the document"),
		),
		mcp.WithString("provider",
			mcp.Description("Analysis provider key (default: smart selection)"),
		),
		mcp.WithString("name",
			mcp.Description("Optional document name for the report"),
		),
		mcp.WithBoolean("save",
			mcp.Description("Store the result in the run history (requires a configured store)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil || strings.TrimSpace(text) == "" {
			return mcp.NewToolResultError("text is required"), nil
		}

		doc, err := cfg.Pipeline.Analyze(ctx, text, pipeline.Options{
			Name:     req.GetString("name", ""),
			Provider: req.GetString("provider", ""),
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("analysis failed: %v", err)), nil
		}

		session := pipeline.BuildSession([]*model.Document{doc})
		if req.GetBool("save", false) && cfg.Store != nil {
			if _, err := cfg.Store.SaveSession(ctx, session); err != nil {
				zap.L().Warn("failed to save run", zap.String("run", session.ID), zap.Error(err))
			}
		}
		return jsonResult(session)
	})
}

func registerClassifyTool(s *server.MCPServer) {
	tool := mcp.NewTool("classify_document",
		mcp.WithDescription("Classify billing document text by type without running extraction or analysis."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Plain text of the document"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcp.NewToolResultError("text is required"), nil
		}
		return jsonResult(classify.Classify(text))
	})
}

type providerInfo struct {
	Key         string `json:"key"`
	Description string `json:"description"`
}

func registerProvidersTool(s *server.MCPServer, registry *analysis.Registry) {
	tool := mcp.NewTool("list_providers",
		mcp.WithDescription("List the analysis providers that passed their health check, and the ones excluded."),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var out struct {
			Providers []providerInfo `json:"providers"`
			Excluded  []string       `json:"excluded"`
		}
		for _, key := range registry.Keys() {
			p, _ := registry.Get(key)
			out.Providers = append(out.Providers, providerInfo{Key: key, Description: p.Description()})
		}
		out.Excluded = registry.Excluded()
		if out.Excluded == nil {
			out.Excluded = []string{}
		}
		return jsonResult(out)
	})
}

func registerRunsTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("list_runs",
		mcp.WithDescription("List stored analysis runs, newest first."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of runs (default: 20)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		runs, err := st.ListRuns(ctx, req.GetInt("limit", 20))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list runs: %v", err)), nil
		}
		if runs == nil {
			runs = []store.RunSummary{}
		}
		return jsonResult(runs)
	})
}

func registerGetRunTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("get_run",
		mcp.WithDescription("Return the full report of a stored analysis run."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Run ID"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError("id is required"), nil
		}
		session, err := st.GetRun(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(session)
	})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
