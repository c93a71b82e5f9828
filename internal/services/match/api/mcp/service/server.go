// Package service hosts the match MCP server: tool registration, the
// streamable HTTP transport with table-key auth, and a gRPC health endpoint
// for orchestrators.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	mcpdomain "github.com/louisbranch/moonfall.town/internal/services/match/api/mcp/domain"
	"github.com/louisbranch/moonfall.town/internal/services/match/app"
)

const (
	serverName    = "moonfall-match"
	serverVersion = "0.1.0"

	// shutdownTimeout bounds graceful HTTP drain so a stuck SSE stream
	// cannot hold shutdown forever.
	shutdownTimeout = 10 * time.Second
)

// Config holds the transport settings of one MCP server instance.
type Config struct {
	// Addr is the HTTP listen address for the MCP endpoint.
	Addr string
	// HealthAddr is the gRPC listen address for health checks.
	HealthAddr string
	// AllowedHosts are non-loopback Host/Origin values the transport
	// accepts. Loopback always passes.
	AllowedHosts []string
	// Secret signs and verifies table keys. Empty runs the server in
	// read-only local mode where every caller is a spectator.
	Secret []byte
	Logger *log.Logger
}

// Server hosts the MCP API over HTTP plus a gRPC health endpoint.
type Server struct {
	engine    *app.Engine
	mcpServer *mcp.Server

	httpListener net.Listener
	httpServer   *http.Server

	grpcListener net.Listener
	grpcServer   *grpc.Server
	health       *health.Server

	allowedHosts map[string]struct{}
	secret       []byte
	logger       *log.Logger
}

// New creates a configured server listening on both addresses. The caller
// owns the engine's store lifecycle.
func New(engine *app.Engine, cfg Config) (*Server, error) {
	if engine == nil {
		return nil, errors.New("engine is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	httpListener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.Addr, err)
	}
	grpcListener, err := net.Listen("tcp", cfg.HealthAddr)
	if err != nil {
		_ = httpListener.Close()
		return nil, fmt.Errorf("listen on %s: %w", cfg.HealthAddr, err)
	}

	s := &Server{
		engine:       engine,
		httpListener: httpListener,
		grpcListener: grpcListener,
		allowedHosts: parseAllowedHosts(cfg.AllowedHosts),
		secret:       cfg.Secret,
		logger:       logger,
	}

	s.mcpServer = mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: serverVersion,
	}, nil)
	registerTools(s.mcpServer, engine)

	streamable := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcpServer
	}, nil)

	mux := http.NewServeMux()
	mux.Handle("/mcp", s.guard(streamable))
	mux.HandleFunc("/mcp/health", s.handleHealth)
	s.httpServer = &http.Server{Handler: mux}

	s.grpcServer = grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	s.health = health.NewServer()
	grpc_health_v1.RegisterHealthServer(s.grpcServer, s.health)
	s.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	return s, nil
}

// registerTools binds every tool to the engine. Queue and action tools act
// as the authenticated player; view tools accept spectator keys.
func registerTools(server *mcp.Server, engine *app.Engine) {
	mcp.AddTool(server, mcpdomain.QueueJoinTool(), mcpdomain.QueueJoinHandler(engine))
	mcp.AddTool(server, mcpdomain.QueueLeaveTool(), mcpdomain.QueueLeaveHandler(engine))
	mcp.AddTool(server, mcpdomain.QueueStatusTool(), mcpdomain.QueueStatusHandler(engine))

	mcp.AddTool(server, mcpdomain.MatchReadyTool(), mcpdomain.MatchReadyHandler(engine))
	mcp.AddTool(server, mcpdomain.MatchSayTool(), mcpdomain.MatchSayHandler(engine))
	mcp.AddTool(server, mcpdomain.WolfChatTool(), mcpdomain.WolfChatHandler(engine))
	mcp.AddTool(server, mcpdomain.MatchVoteTool(), mcpdomain.MatchVoteHandler(engine))
	mcp.AddTool(server, mcpdomain.WolfKillTool(), mcpdomain.WolfKillHandler(engine))
	mcp.AddTool(server, mcpdomain.SeerInspectTool(), mcpdomain.SeerInspectHandler(engine))
	mcp.AddTool(server, mcpdomain.DoctorProtectTool(), mcpdomain.DoctorProtectHandler(engine))

	mcp.AddTool(server, mcpdomain.MatchStateTool(), mcpdomain.MatchStateHandler(engine))
	mcp.AddTool(server, mcpdomain.MatchEventsTool(), mcpdomain.MatchEventsHandler(engine))
	mcp.AddTool(server, mcpdomain.MatchesListTool(), mcpdomain.MatchesListHandler(engine))
	mcp.AddTool(server, mcpdomain.MatchAdvanceTool(), mcpdomain.MatchAdvanceHandler(engine))
	mcp.AddTool(server, mcpdomain.MatchReplayTool(), mcpdomain.MatchReplayHandler(engine))
}

// guard wraps the MCP endpoint with host validation and table-key auth, and
// attaches the resolved principal to the request context so tool handlers
// know who is calling.
func (s *Server) guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.validateRequestHost(r); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		principal, ok := s.authorizeRequest(w, r)
		if !ok {
			return
		}
		ctx := mcpdomain.WithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.validateRequestHost(r); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		s.logger.Printf("write health response: %v", err)
	}
}

// Addr returns the HTTP listener address.
func (s *Server) Addr() string {
	if s == nil || s.httpListener == nil {
		return ""
	}
	return s.httpListener.Addr().String()
}

// Serve runs both listeners until context cancellation or a serve error.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	defer s.Close()

	s.logger.Printf("mcp server listening at %v (health at %v)",
		s.httpListener.Addr(), s.grpcListener.Addr())
	if len(s.secret) == 0 {
		s.logger.Printf("no signing secret configured; serving spectator-only local mode")
	}

	serveErr := make(chan error, 2)
	go func() {
		if err := s.httpServer.Serve(s.httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("serve http: %w", err)
			return
		}
		serveErr <- nil
	}()
	go func() {
		if err := s.grpcServer.Serve(s.grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			serveErr <- fmt.Errorf("serve grpc health: %w", err)
			return
		}
		serveErr <- nil
	}()

	select {
	case <-ctx.Done():
		s.health.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Printf("http shutdown: %v", err)
		}
		s.grpcServer.GracefulStop()
		<-serveErr
		<-serveErr
		return nil
	case err := <-serveErr:
		return err
	}
}

// Close releases listeners and stops both servers immediately.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.health != nil {
		s.health.Shutdown()
	}
	if s.httpServer != nil {
		_ = s.httpServer.Close()
	}
	if s.grpcServer != nil {
		s.grpcServer.Stop()
	}
}
