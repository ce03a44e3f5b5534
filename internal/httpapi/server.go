// v0
// internal/httpapi/server.go
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"nrgchamp/strcontrol/internal/command"
	"nrgchamp/strcontrol/internal/metrics"
)

// CommandSink accepts operator commands without blocking.
type CommandSink interface {
	TrySend(c command.Command) bool
}

// StatusFunc renders the current /status payload.
type StatusFunc func() any

// NewRouter wires the operator endpoints. m may be nil, in which case /metrics is
// not served.
func NewRouter(status StatusFunc, cmds CommandSink, m *metrics.Metrics, lg *slog.Logger) *mux.Router {
	h := &apiHandlers{status: status, cmds: cmds, lg: lg}
	r := mux.NewRouter()
	r.Handle("/health", m.WrapHandler("/health", http.HandlerFunc(h.getHealth))).Methods(http.MethodGet)
	r.Handle("/status", m.WrapHandler("/status", http.HandlerFunc(h.getStatus))).Methods(http.MethodGet)
	r.Handle("/cmd/{key}", m.WrapHandler("/cmd", http.HandlerFunc(h.postCommand))).Methods(http.MethodPost)
	if m != nil {
		r.Handle("/metrics", m.WrapHandler("/metrics", m.Handler())).Methods(http.MethodGet)
	}
	return r
}

type apiHandlers struct {
	status StatusFunc
	cmds   CommandSink
	lg     *slog.Logger
}

func (h *apiHandlers) getHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h *apiHandlers) getStatus(w http.ResponseWriter, _ *http.Request) {
	var body any = map[string]string{}
	if h.status != nil {
		body = h.status()
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *apiHandlers) postCommand(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	c, size := utf8.DecodeRuneInString(key)
	if c == utf8.RuneError || size != len(key) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "key must be a single character"})
		return
	}
	if h.cmds == nil || !h.cmds.TrySend(command.Command(c)) {
		h.lg.Warn("command rejected", "key", key)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "command queue busy"})
		return
	}
	h.lg.Info("command accepted", "key", key, "remote", r.RemoteAddr)
	writeJSON(w, http.StatusAccepted, map[string]string{"key": key})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Server is the optional operator HTTP surface.
type Server struct {
	lg   *slog.Logger
	http *http.Server
}

// NewServer wraps router with panic recovery and combined access logging to
// accessLog.
func NewServer(bind string, router http.Handler, accessLog io.Writer, lg *slog.Logger) *Server {
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(slog.NewLogLogger(lg.Handler(), slog.LevelError)),
		handlers.PrintRecoveryStack(false),
	)
	h := recovery(handlers.CombinedLoggingHandler(accessLog, router))
	return &Server{lg: lg, http: &http.Server{Addr: bind, Handler: h, ReadHeaderTimeout: 5 * time.Second}}
}

// Handler returns the wrapped handler, for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// Start blocks serving until Stop is called.
func (s *Server) Start() error {
	s.lg.Info("http start", "bind", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.lg.Info("http stop")
	return s.http.Shutdown(ctx)
}
