// Package mcp exposes the knowledge base and crawler as Model Context
// Protocol tools over stdio, for consumption by agent hosts.
package mcp

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mnemo-ai/mnemo/internal/crawler"
	"github.com/mnemo-ai/mnemo/internal/knowledge"
)

// Server wraps an MCP server with the knowledge tools registered.
type Server struct {
	server *mcp.Server
	logger *slog.Logger

	ingestor  *knowledge.Ingestor
	retriever *knowledge.Retriever
	store     *knowledge.Store
	crawler   *crawler.Crawler
}

// NewServer builds the MCP server and registers all tools.
func NewServer(
	version string,
	ingestor *knowledge.Ingestor,
	retriever *knowledge.Retriever,
	store *knowledge.Store,
	cr *crawler.Crawler,
	logger *slog.Logger,
) *Server {
	s := &Server{
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "mnemo",
			Version: version,
		}, nil),
		logger:    logger,
		ingestor:  ingestor,
		retriever: retriever,
		store:     store,
		crawler:   cr,
	}
	s.registerTools()
	return s
}

// Run serves MCP over stdio until the context is cancelled or the client
// disconnects. Logging must already be routed to stderr: stdout carries
// JSON-RPC.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("mcp server starting", "transport", "stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}
