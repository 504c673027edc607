// Package mcp exposes the engine's invocation boundary as MCP tools
// over stdio, so AI clients can drive campaigns directly.
package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/everloom/internal/engine"
)

const (
	// serverName identifies this MCP server to clients.
	serverName = "Everloom MCP"
	// serverVersion identifies the MCP server version.
	serverVersion = "0.1.0"
)

// Server hosts the MCP server over one engine context.
type Server struct {
	mcpServer *mcp.Server
	engine    *engine.Context
}

// New creates a configured MCP server wired to the engine.
func New(engineCtx *engine.Context) *Server {
	mcpServer := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	server := &Server{mcpServer: mcpServer, engine: engineCtx}
	registerTools(mcpServer, engineCtx)
	registerResources(mcpServer, engineCtx)
	return server
}

// Run serves MCP over stdio until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

func registerTools(mcpServer *mcp.Server, engineCtx *engine.Context) {
	mcp.AddTool(mcpServer, CreationBeginTool(), CreationBeginHandler(engineCtx))
	mcp.AddTool(mcpServer, CreationInputTool(), CreationInputHandler(engineCtx))
	mcp.AddTool(mcpServer, CreationEditTool(), CreationEditHandler(engineCtx))
	mcp.AddTool(mcpServer, CreationUndoTool(), CreationUndoHandler(engineCtx))
	mcp.AddTool(mcpServer, CreationFinalizeTool(), CreationFinalizeHandler(engineCtx))
	mcp.AddTool(mcpServer, TurnTool(), TurnHandler(engineCtx))
	mcp.AddTool(mcpServer, MemoryQueryTool(), MemoryQueryHandler(engineCtx))
}

func registerResources(mcpServer *mcp.Server, engineCtx *engine.Context) {
	mcpServer.AddResource(WorldStateResource(), WorldStateResourceHandler(engineCtx))
}
