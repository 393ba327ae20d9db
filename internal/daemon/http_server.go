package daemon

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/netutil"

	ferrors "git.home.luguber.info/inful/nasstate/internal/foundation/errors"
	"git.home.luguber.info/inful/nasstate/internal/metrics"
)

// AdminServer serves health, status, state, metrics and event streams.
type AdminServer struct {
	daemon       *Daemon
	logger       *slog.Logger
	errorAdapter *ferrors.HTTPErrorAdapter

	mu         sync.Mutex
	server     *http.Server
	addr       string
	done       chan struct{}
	cancelBase context.CancelFunc // ends open event streams
}

// NewAdminServer creates the server; Start binds it.
func NewAdminServer(d *Daemon, logger *slog.Logger) *AdminServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminServer{
		daemon:       d,
		logger:       logger,
		errorAdapter: ferrors.NewHTTPErrorAdapter(logger),
	}
}

// Handler returns the routed handler, wrapped in request logging.
func (s *AdminServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /state", s.handleSnapshot)
	mux.HandleFunc("GET /state/{key}", s.handleSlice)
	mux.HandleFunc("GET /events/{channel}", s.handleEvents)
	mux.HandleFunc("POST /relay/reset", s.handleRelayReset)
	if s.daemon.cfg.HTTP.Metrics {
		mux.Handle("GET /metrics", metrics.HTTPHandler(s.daemon.registry))
	}
	return requestLogging(s.logger, mux)
}

// Start binds the configured address and serves in the background. The
// listener accepts at most http.max_connections concurrent connections.
func (s *AdminServer) Start(_ context.Context) error {
	cfg := s.daemon.cfg.HTTP
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryDaemon, "admin server bind failed").
			WithContext("addr", cfg.Addr).
			Build()
	}
	if cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, cfg.MaxConnections)
	}

	base, cancel := context.WithCancel(context.Background())
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return base },
	}
	s.mu.Lock()
	s.server = srv
	s.cancelBase = cancel
	s.addr = ln.Addr().String()
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Admin server error", slog.String("error", err.Error()))
		}
	}()
	s.logger.Info("Admin server listening", slog.String("addr", s.addr))
	return nil
}

// Stop ends open event streams and shuts the server down gracefully.
func (s *AdminServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv, done, cancel := s.server, s.done, s.cancelBase
	s.server = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	cancel()
	err := srv.Shutdown(ctx)
	if err != nil {
		_ = srv.Close()
	}
	<-done
	return err
}

// Addr returns the bound address.
func (s *AdminServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

func (s *AdminServer) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		s.errorAdapter.WriteErrorResponse(w, r,
			ferrors.WrapError(err, ferrors.CategorySerialization, "encode response").Build())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}
