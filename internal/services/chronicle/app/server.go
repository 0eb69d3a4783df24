// Package server wires the chronicle runtime: the presentation HTTP API, the
// live feed, and the gRPC health endpoint.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"

	platformgrpc "github.com/louisbranch/statecraft/internal/platform/grpc"
	"github.com/louisbranch/statecraft/internal/platform/telemetry/metrics"
	"github.com/louisbranch/statecraft/internal/platform/timeouts"
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/session"
	"github.com/louisbranch/statecraft/internal/services/chronicle/storage"
)

// HealthService is the service name reported by the gRPC health server.
const HealthService = "chronicle"

// Config defines the runtime's listeners and background behavior.
type Config struct {
	HTTPAddr   string
	HealthAddr string
	// AutoAdvance advances the simulation on this interval. Zero disables it.
	AutoAdvance       time.Duration
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Deps are the collaborators the runtime serves. Archive and Metrics are
// optional.
type Deps struct {
	Session *session.Session
	Archive storage.Archive
	Metrics *metrics.Chronicle
}

// Server hosts the chronicle HTTP and health listeners.
type Server struct {
	session         *session.Session
	hub             *feedHub
	unsubscribe     func()
	autoAdvance     time.Duration
	shutdownTimeout time.Duration

	httpListener   net.Listener
	httpServer     *http.Server
	healthListener net.Listener
	grpcServer     *grpc.Server
	health         *health.Server

	closeOnce sync.Once
}

// New binds both listeners. Nothing is served until Serve.
func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Session == nil {
		return nil, errors.New("session is required")
	}
	readHeaderTimeout := cfg.ReadHeaderTimeout
	if readHeaderTimeout <= 0 {
		readHeaderTimeout = timeouts.ReadHeader
	}
	shutdownTimeout := cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = timeouts.Shutdown
	}

	httpListener, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.HTTPAddr, err)
	}
	healthListener, err := net.Listen("tcp", cfg.HealthAddr)
	if err != nil {
		_ = httpListener.Close()
		return nil, fmt.Errorf("listen on %s: %w", cfg.HealthAddr, err)
	}

	hub := newFeedHub(deps.Session, deps.Metrics)
	unsubscribe := deps.Session.Subscribe(hub.observe)
	grpcServer, healthServer := platformgrpc.NewHealthServer(HealthService)

	return &Server{
		session:         deps.Session,
		hub:             hub,
		unsubscribe:     unsubscribe,
		autoAdvance:     cfg.AutoAdvance,
		shutdownTimeout: shutdownTimeout,
		httpListener:    httpListener,
		httpServer: &http.Server{
			Handler:           newHandler(deps.Session, deps.Archive, deps.Metrics, hub),
			ReadHeaderTimeout: readHeaderTimeout,
		},
		healthListener: healthListener,
		grpcServer:     grpcServer,
		health:         healthServer,
	}, nil
}

// Addr returns the HTTP listener address.
func (s *Server) Addr() string {
	if s == nil || s.httpListener == nil {
		return ""
	}
	return s.httpListener.Addr().String()
}

// HealthAddr returns the gRPC health listener address.
func (s *Server) HealthAddr() string {
	if s == nil || s.healthListener == nil {
		return ""
	}
	return s.healthListener.Addr().String()
}

// Serve runs both listeners until ctx ends or one of them fails.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	log.Printf("chronicle http listening at %v", s.httpListener.Addr())
	log.Printf("chronicle health listening at %v", s.healthListener.Addr())

	serveErr := make(chan error, 2)
	go func() {
		if err := s.httpServer.Serve(s.httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("serve http: %w", err)
		}
	}()
	go func() {
		if err := s.grpcServer.Serve(s.healthListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			serveErr <- fmt.Errorf("serve gRPC: %w", err)
		}
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if s.autoAdvance > 0 {
		ticker := time.NewTicker(s.autoAdvance)
		defer ticker.Stop()
		go autoAdvance(runCtx, ticker.C, s.session)
		log.Printf("chronicle auto-advance every %s", s.autoAdvance)
	}

	select {
	case <-ctx.Done():
		return s.shutdown()
	case err := <-serveErr:
		_ = s.shutdown()
		return err
	}
}

func (s *Server) shutdown() error {
	s.health.Shutdown()
	s.hub.closeAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	err := s.httpServer.Shutdown(shutdownCtx)
	s.grpcServer.GracefulStop()
	if err != nil {
		return fmt.Errorf("shutdown http: %w", err)
	}
	return nil
}

// Close releases listeners and detaches from the session. The session itself
// stays open; its owner closes it.
func (s *Server) Close() {
	if s == nil {
		return
	}
	s.closeOnce.Do(func() {
		if s.unsubscribe != nil {
			s.unsubscribe()
		}
		if s.health != nil {
			s.health.Shutdown()
		}
		if s.hub != nil {
			s.hub.closeAll()
		}
		if s.grpcServer != nil {
			s.grpcServer.Stop()
		}
		if s.httpServer != nil {
			_ = s.httpServer.Close()
		}
		if s.httpListener != nil {
			_ = s.httpListener.Close()
		}
		if s.healthListener != nil {
			_ = s.healthListener.Close()
		}
	})
}
