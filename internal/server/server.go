package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/muurk/incidentdesk/internal/discovery"
	"github.com/muurk/incidentdesk/internal/hashstate"
	"github.com/muurk/incidentdesk/internal/logging"
	"github.com/muurk/incidentdesk/internal/modal"
	"github.com/muurk/incidentdesk/internal/version"
)

// StateSource exposes router state for /state.
type StateSource interface {
	State() modal.State
}

// Config holds the bridge configuration
type Config struct {
	// Addr is the listen address, e.g. "127.0.0.1:7420"
	Addr string

	// Advertise registers the bridge on mDNS under Instance
	Advertise bool
	Instance  string
}

// Server mirrors the application's hash state to browser tabs over a
// WebSocket and exposes the modal router state over HTTP.
type Server struct {
	config *Config
	hash   *hashstate.State
	router StateSource
	hub    *Hub

	httpServer *http.Server
	listener   net.Listener
	stopHub    func()
	stopAdvert func()
}

// New creates a bridge. router may be nil when only the hash is bridged.
func New(config *Config, hash *hashstate.State, router StateSource) *Server {
	s := &Server{
		config: config,
		hash:   hash,
		router: router,
		hub:    NewHub(hash),
	}
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(chimw.RealIP)
	router.Use(chimw.Recoverer)
	router.Use(requestLogger)

	router.Get("/healthz", s.handleHealth)
	router.Get("/state", s.handleState)
	router.Get("/ws", s.hub.ServeWS)
	router.Get("/", s.handleIndex)

	return router
}

// Start listens and serves until ctx is cancelled, then shuts down.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	s.listener = listener
	s.stopHub = s.hub.Run()

	logging.Info("Hash bridge listening", zap.String("addr", listener.Addr().String()))

	if s.config.Advertise {
		instance := s.config.Instance
		if instance == "" {
			instance = "incidentdesk"
		}
		stop, err := discovery.Advertise(instance, discovery.BridgeServiceType, discovery.PortOf(listener.Addr()),
			[]string{"path=/ws", "version=" + version.Version})
		if err != nil {
			logging.Warn("Bridge will not be discoverable", zap.Error(err))
		} else {
			s.stopAdvert = stop
		}
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.httpServer.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Addr returns the bound address once Start is listening.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown gracefully shuts down the bridge
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down hash bridge...")

	if s.stopAdvert != nil {
		s.stopAdvert()
	}
	if s.stopHub != nil {
		s.stopHub()
	}

	if err := s.httpServer.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("bridge shutdown: %w", err)
	}
	return nil
}

// StateResponse is the body of GET /state.
type StateResponse struct {
	Fragment string `json:"fragment"`
	Current  string `json:"current"`
	Mounted  string `json:"mounted"`
	Clients  int    `json:"clients"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	resp := StateResponse{
		Fragment: s.hash.Get(),
		Clients:  s.hub.Clients(),
	}
	if s.router != nil {
		st := s.router.State()
		resp.Current = st.Current.String()
		resp.Mounted = st.Mounted.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write([]byte(indexHTML))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("Failed to encode response", zap.Error(err))
	}
}

// requestLogger logs each request through the package logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logging.Debug("Bridge request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("remote_addr", r.RemoteAddr),
		)
	})
}

const indexHTML = `<!doctype html>
<html>
<head><meta charset="utf-8"><title>incidentdesk</title></head>
<body>
<p>Mirroring <code id="frag"></code></p>
<script>
(function () {
  var ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
  var applying = false;
  function show() { document.getElementById("frag").textContent = location.hash || "(none)"; }
  ws.onmessage = function (ev) {
    var msg = JSON.parse(ev.data);
    if (("#" + msg.fragment) === location.hash || (msg.fragment === "" && location.hash === "")) { show(); return; }
    applying = true;
    location.hash = msg.fragment;
    show();
  };
  window.addEventListener("hashchange", function () {
    show();
    if (applying) { applying = false; return; }
    ws.send(JSON.stringify({fragment: location.hash.replace(/^#/, "")}));
  });
  show();
})();
</script>
</body>
</html>
`
