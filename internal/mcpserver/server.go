// Package mcpserver exposes extraction and decryption as MCP (Model Context
// Protocol) tools over stdio JSON-RPC, so an agent can read a client
// database without shelling out to the CLI.
package mcpserver

import (
	"context"
	stdlog "log"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/joestump/client-radar/internal/config"
	"github.com/joestump/client-radar/internal/decrypt"
	"github.com/joestump/client-radar/internal/extract"
)

// Decryptor runs one decryption. *decrypt.Aggregator satisfies it.
type Decryptor interface {
	Run(ctx context.Context) (*decrypt.Result, error)
}

// Server holds the MCP server state.
type Server struct {
	engine *extract.Engine
	// newDecryptor is called per run_decryption call so a helper installed
	// after startup is still found.
	newDecryptor func() (Decryptor, error)
	log          zerolog.Logger
}

// NewServer creates a Server from cfg.
func NewServer(cfg config.Config, log zerolog.Logger) *Server {
	cands, roles := cfg.Profile()
	engine := extract.New(
		extract.WithCandidates(cands),
		extract.WithRoles(roles),
		extract.WithLimit(cfg.PostLimit),
		extract.WithLogger(log),
	)
	return &Server{
		engine: engine,
		newDecryptor: func() (Decryptor, error) {
			path, err := decrypt.Locate(cfg.DecryptorName, cfg.DecryptorPath)
			if err != nil {
				return nil, &decrypt.ProcessError{Name: cfg.DecryptorName, Err: err}
			}
			return decrypt.NewAggregator(&decrypt.ExecLauncher{Path: path},
				decrypt.WithName(cfg.DecryptorName),
				decrypt.WithLogger(log),
				decrypt.WithRedactor(decrypt.NewRedactionFilter(log)),
			), nil
		},
		log: log,
	}
}

// Tools returns the tool set served by s.
func (s *Server) Tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: readContactsTool(), Handler: s.handleReadContacts},
		{Tool: readPostsTool(), Handler: s.handleReadPosts},
		{Tool: inspectDatabaseTool(), Handler: s.handleInspectDatabase},
		{Tool: runDecryptionTool(), Handler: s.handleRunDecryption},
	}
}

// Run starts the MCP stdio server. It blocks until the context is cancelled
// or stdin is closed. Logs go to stderr; stdout carries the protocol.
func Run(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	s := NewServer(cfg, log)

	mcpServer := server.NewMCPServer(
		"radar",
		config.Version,
		server.WithToolCapabilities(true),
	)
	mcpServer.AddTools(s.Tools()...)

	stdio := server.NewStdioServer(mcpServer)
	stdio.SetErrorLogger(stdlog.New(log.With().Str("component", "mcp").Logger(), "", 0))

	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}
