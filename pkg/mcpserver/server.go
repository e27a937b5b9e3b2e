// Package mcpserver publishes the capability registry and the chat pipeline as MCP tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"zeta/pkg/orchestrator"
	"zeta/pkg/tools"
	"zeta/pkg/tools/calculator"
	"zeta/pkg/tools/football"
	"zeta/pkg/tools/instagram"
	"zeta/pkg/tools/npm"
	"zeta/pkg/tools/weather"
	"zeta/pkg/tools/websearch"
	"zeta/pkg/tools/wikipedia"
)

// Version is set at build time via ldflags.
var Version = "dev"

// ChatToolName is the MCP tool that runs a message through the whole pipeline.
const ChatToolName = "zeta_chat"

// Registry is the subset of *tools.Registry the server needs.
type Registry interface {
	List() []tools.Info
	Execute(ctx context.Context, name string, params tools.Params) tools.Result
}

// Processor runs one chat message through the pipeline.
type Processor interface {
	Process(ctx context.Context, req orchestrator.Request) orchestrator.Outcome
}

type param struct {
	name        string
	description string
	required    bool
}

// toolParams lists the arguments each built-in capability reads. Unknown tools get a single query.
var toolParams = map[string][]param{
	calculator.Name: {{name: "expression", description: "Arithmetic expression, e.g. 2+2*3", required: true}},
	weather.Name:    {{name: "city", description: "City name, e.g. Ankara", required: true}},
	wikipedia.Name:  {{name: "query", description: "Topic to look up on Turkish Wikipedia", required: true}},
	websearch.Name: {
		{name: "query", description: "Search query", required: true},
		{name: "type", description: "news or general"},
	},
	football.Name:  {{name: "query", description: "Football question, e.g. Süper Lig puan durumu", required: true}},
	instagram.Name: {{name: "query", description: "Instagram username or profile URL", required: true}},
	npm.Name:       {{name: "content", description: "package.json content", required: true}},
}

// New builds an MCP server exposing every registry tool plus ChatToolName when proc is non-nil.
func New(registry Registry, proc Processor) *server.MCPServer {
	s := server.NewMCPServer(
		"zeta",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions("Zeta is a Turkish assistant. Call zeta_chat for conversational answers or a capability tool directly for raw data."),
	)

	for _, t := range Tools(registry, proc) {
		s.AddTool(t.Tool, t.Handler)
	}
	return s
}

// Tools pairs each registry tool with its handler, plus the chat tool when proc is non-nil.
func Tools(registry Registry, proc Processor) []server.ServerTool {
	list := registry.List()
	out := make([]server.ServerTool, 0, len(list)+1)
	for _, info := range list {
		out = append(out, server.ServerTool{Tool: Definition(info), Handler: Handler(registry, info.Name)})
	}
	if proc != nil {
		out = append(out, server.ServerTool{Tool: chatDefinition(), Handler: ChatHandler(proc)})
	}
	return out
}

// Serve runs s over stdio until the client disconnects.
func Serve(s *server.MCPServer) error {
	slog.Default().With("component", "mcpserver").Info("MCP server listening on stdio")
	if err := server.ServeStdio(s); err != nil {
		return fmt.Errorf("serve mcp stdio: %w", err)
	}
	return nil
}

// Definition returns the MCP tool definition for a registry tool.
func Definition(info tools.Info) mcp.Tool {
	params, ok := toolParams[info.Name]
	if !ok {
		params = []param{{name: "query", description: "Free-form request", required: true}}
	}

	opts := []mcp.ToolOption{mcp.WithDescription(info.Description)}
	for _, p := range params {
		propOpts := []mcp.PropertyOption{mcp.Description(p.description)}
		if p.required {
			propOpts = append(propOpts, mcp.Required())
		}
		opts = append(opts, mcp.WithString(p.name, propOpts...))
	}
	return mcp.NewTool(info.Name, opts...)
}

// Handler executes name through the registry and renders its result as JSON text.
func Handler(registry Registry, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		params := tools.Params{}
		for key, value := range req.GetArguments() {
			params[key] = value
		}

		result := registry.Execute(ctx, name, params)
		if !result.Success {
			return mcp.NewToolResultError(fmt.Sprintf("%s failed: %s", name, result.Error)), nil
		}

		body, err := json.MarshalIndent(result.Data, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("encode %s result: %v", name, err)), nil
		}
		return mcp.NewToolResultText(string(body)), nil
	}
}

func chatDefinition() mcp.Tool {
	return mcp.NewTool(ChatToolName,
		mcp.WithDescription("Send a message to Zeta and get a Turkish answer. Tools are picked automatically."),
		mcp.WithString("message",
			mcp.Required(),
			mcp.Description("User message"),
		),
		mcp.WithString("session",
			mcp.Description("Caller identity used for rate limiting (default: mcp)"),
		),
	)
}

// ChatHandler runs the message through proc.
func ChatHandler(proc Processor) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		msg, _ := req.GetArguments()["message"].(string)
		if strings.TrimSpace(msg) == "" {
			return mcp.NewToolResultError("'message' is required"), nil
		}
		identity, _ := req.GetArguments()["session"].(string)
		if identity == "" {
			identity = "mcp"
		}

		out := proc.Process(ctx, orchestrator.Request{
			Message:    msg,
			Identity:   "mcp:" + identity,
			Channel:    "mcp",
			SessionKey: identity,
		})
		if out.Kind != orchestrator.KindSuccess {
			return mcp.NewToolResultError(out.Message), nil
		}

		text := out.Message
		if out.ToolUsed != "" {
			text += fmt.Sprintf("\n\n_(tool: %s)_", out.ToolUsed)
		}
		return mcp.NewToolResultText(text), nil
	}
}
