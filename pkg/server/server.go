// Package server provides the MCP server and HTTP surfaces for the ecotrip
// carbon calculator.
package server

import (
	"context"
	"io"
	"log/slog"
	"sync"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/NERVsystems/ecotripmcp/pkg/tools"
	"github.com/NERVsystems/ecotripmcp/pkg/version"
)

// ServerName is the name advertised during MCP initialization.
const ServerName = "ecotripmcp"

// Server encapsulates the MCP server with the ecotrip tools.
type Server struct {
	srv          *mcpserver.MCPServer
	calc         *tools.Calculator
	logger       *slog.Logger
	stopCh       chan struct{}
	doneCh       chan struct{}
	running      bool
	mu           sync.Mutex
	once         sync.Once
	ctxCancel    context.CancelFunc
	ctxGoroutine sync.Once
}

// NewServer creates an MCP server with every tool and prompt registered
// against calc.
func NewServer(calc *tools.Calculator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("initializing ecotrip MCP server",
		"name", ServerName,
		"version", version.BuildVersion,
		"distance_source", calc.DistanceSource())

	srv := mcpserver.NewMCPServer(
		ServerName,
		version.BuildVersion,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithPromptCapabilities(false),
		mcpserver.WithRecovery(),
	)

	tools.NewRegistry(logger, calc).RegisterAll(srv)

	return &Server{
		srv:    srv,
		calc:   calc,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Run serves MCP over stdin/stdout and blocks until the stream ends or
// Shutdown is called.
func (s *Server) Run() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()

	go func() {
		defer close(s.doneCh)
		err := mcpserver.ServeStdio(s.srv)
		if err != nil && err != io.EOF {
			s.logger.Error("server error", "error", err)
		}
		s.Shutdown()
	}()

	<-s.stopCh

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	<-s.doneCh
	return nil
}

// RunWithContext is Run with shutdown on ctx cancellation.
func (s *Server) RunWithContext(ctx context.Context) error {
	s.ctxGoroutine.Do(func() {
		derived, cancel := context.WithCancel(ctx)
		s.ctxCancel = cancel

		go func() {
			select {
			case <-derived.Done():
				s.Shutdown()
			case <-s.stopCh:
			}
		}()
	})

	return s.Run()
}

// Shutdown signals Run to return. It does not block.
func (s *Server) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.once.Do(func() {
		close(s.stopCh)
	})

	if s.ctxCancel != nil {
		s.ctxCancel()
	}
}

// WaitForShutdown blocks until the server has fully shut down.
func (s *Server) WaitForShutdown() {
	<-s.doneCh
}

// GetMCPServer returns the underlying MCP server instance for HTTP transport
func (s *Server) GetMCPServer() *mcpserver.MCPServer {
	return s.srv
}

// Calculator returns the calculator the tools are bound to.
func (s *Server) Calculator() *tools.Calculator {
	return s.calc
}
