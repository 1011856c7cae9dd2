package api

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cuemby/restbackup/pkg/security"
)

// Server owns the HTTP listener that serves both the repository wire
// protocol (Dispatcher) and the admin endpoints (AdminServer), mounted
// on the same address under distinct prefixes.
type Server struct {
	http *http.Server
	addr string
}

// unixSocketPrefix marks a ServerConfig.Addr of the form
// "unix:/path/to.sock" as a local-socket listener instead of a TCP one.
const unixSocketPrefix = "unix:"

// ServerConfig holds the fields NewServer needs to build the listener.
type ServerConfig struct {
	Addr        string
	Dispatcher  *Dispatcher
	Admin       *AdminServer
	TLSCertFile string
	TLSKeyFile  string
}

// NewServer builds the root mux (admin endpoints take priority over
// the repository wildcard) and an *http.Server configured with the
// same timeouts the teacher applies to its own HTTP listener.
func NewServer(cfg ServerConfig) (*Server, error) {
	root := http.NewServeMux()
	root.Handle("/health/live", cfg.Admin.Handler())
	root.Handle("/ready", cfg.Admin.Handler())
	root.Handle("/metrics", cfg.Admin.Handler())
	root.Handle("/", cfg.Dispatcher.Routes())

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      root,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 0, // uploads/downloads may legitimately run long
		IdleTimeout:  60 * time.Second,
	}

	if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
		cert, err := security.LoadServerCertificate(cfg.TLSCertFile, cfg.TLSKeyFile)
		if err != nil {
			return nil, err
		}
		httpServer.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{*cert},
			MinVersion:   tls.VersionTLS12,
		}
	}

	return &Server{http: httpServer, addr: cfg.Addr}, nil
}

// Start serves until the listener is closed, using TLS if configured.
// An Addr of the form "unix:/path/to.sock" binds a local Unix socket
// instead of a TCP listener; the socket file is removed first if a
// stale one is left over from an unclean shutdown.
func (s *Server) Start() error {
	if !strings.HasPrefix(s.addr, unixSocketPrefix) {
		if s.http.TLSConfig != nil {
			return s.http.ListenAndServeTLS("", "")
		}
		return s.http.ListenAndServe()
	}

	path := strings.TrimPrefix(s.addr, unixSocketPrefix)
	_ = os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return err
	}
	if s.http.TLSConfig != nil {
		return s.http.ServeTLS(ln, "", "")
	}
	return s.http.Serve(ln)
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
