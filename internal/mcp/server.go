package mcp

import (
	"context"
	"fmt"

	"strategy-mcp/internal/config"
	"strategy-mcp/internal/strategy"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

// Server exposes the strategy service as MCP tools.
type Server struct {
	svc     *strategy.Service
	cfg     *config.AppConfig
	version string
	server  *mcp.Server
}

// NewServer creates the MCP server and registers every tool.
func NewServer(svc *strategy.Service, cfg *config.AppConfig, version string) (*Server, error) {
	if cfg == nil {
		cfg = &config.AppConfig{}
	}
	s := &Server{
		svc:     svc,
		cfg:     cfg,
		version: version,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "strategy-mcp",
			Version: version,
		}, nil),
	}
	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("register tools: %w", err)
	}
	return s, nil
}

// Serve runs the MCP session over stdio until the client disconnects or ctx ends.
func (s *Server) Serve(ctx context.Context) error {
	log.Info().Str("version", s.version).Msg("MCP server listening on stdio")
	if err := s.server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("mcp session: %w", err)
	}
	return nil
}

// Connect attaches the server to an arbitrary transport.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, t, nil)
}
