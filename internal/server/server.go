package server

import (
	"context"
	"fmt"
	"html"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jpalmerr/rollcall/internal/gateway"
	"github.com/jpalmerr/rollcall/internal/hub"
	"github.com/jpalmerr/rollcall/internal/metrics"
)

const (
	// defaultWriteTimeout is the maximum time allowed for a single WebSocket
	// write. A slow or vanished client cannot pin its writer goroutine longer.
	defaultWriteTimeout = 5 * time.Second

	// shutdownTimeout bounds graceful shutdown of in-flight HTTP requests.
	shutdownTimeout = 5 * time.Second

	// defaultTitle is used when no custom title is configured.
	defaultTitle = "點名系統"

	// titlePlaceholder is the marker in HTML that gets replaced with the actual title.
	titlePlaceholder = "{{.Title}}"
)

// Config holds the tunables of a [Server].
type Config struct {
	// Port is the TCP port to listen on. Zero picks a free port.
	Port int

	// Title replaces {{.Title}} in served pages.
	Title string

	// Assets holds the pages under "assets/". Nil disables page routes.
	Assets fs.FS

	// WriteTimeout bounds each WebSocket write.
	WriteTimeout time.Duration

	// SendBuffer is the per-observer outbound queue length.
	SendBuffer int

	// AllowedOrigins restricts WebSocket upgrades by Origin header.
	// Empty accepts any origin.
	AllowedOrigins []string

	// MetricsPath is where Prometheus metrics are served. Empty disables it.
	MetricsPath string
}

// Server handles HTTP requests for the classroom API, the real-time channel
// and the embedded pages.
//
// The server is designed for graceful shutdown via context cancellation.
type Server struct {
	gateway    *gateway.Gateway
	metrics    *metrics.Metrics
	cfg        Config
	upgrader   websocket.Upgrader
	httpServer *http.Server
	listener   net.Listener
	logger     *slog.Logger
}

// NewServer creates a new HTTP [Server] in front of gw.
//
// m may be nil, in which case no metrics route is registered. The server is
// not started until [Server.Start] is called.
func NewServer(gw *gateway.Gateway, m *metrics.Metrics, cfg Config, logger *slog.Logger) *Server {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = hub.DefaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		gateway: gw,
		metrics: m,
		cfg:     cfg,
		logger:  logger,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// API routes
	mux.HandleFunc("GET /api/classrooms", s.handleList)
	mux.HandleFunc("POST /api/classrooms", s.handleCreate)
	mux.HandleFunc("POST /api/classrooms/sync", s.handleSync)
	mux.HandleFunc("PUT /api/classrooms/{id}", s.handleUpdate)
	mux.HandleFunc("DELETE /api/classrooms/{id}", s.handleDelete)
	mux.HandleFunc("PATCH /api/classrooms/{id}", s.handlePatch)

	// real-time channel
	mux.HandleFunc("GET /ws", s.handleWS)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metrics != nil && s.cfg.MetricsPath != "" {
		mux.Handle("GET "+s.cfg.MetricsPath, s.metrics.Handler())
	}

	if s.cfg.Assets != nil {
		mux.HandleFunc("GET /{$}", s.page("index.html"))
		mux.HandleFunc("GET /index.html", s.page("index.html"))
		mux.HandleFunc("GET /admin", s.page("admin.html"))
		mux.HandleFunc("GET /admin.html", s.page("admin.html"))
		mux.HandleFunc("GET /classroom.html", s.page("classroom.html"))
		mux.HandleFunc("GET /{path}", s.handleClassroomView)
	}

	return mux
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns immediately after confirming the server
// is listening. The server will continue running until the context is
// cancelled, at which point it initiates a graceful shutdown.
//
// Returns an error if the server fails to bind to the configured port.
func (s *Server) Start(ctx context.Context) error {
	// create listener first to verify port availability synchronously
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.cfg.Port, err)
	}
	s.listener = ln

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// BaseContext derives all request contexts from the server context.
		// When ctx is cancelled, WebSocket sessions (which are hijacked and
		// not tracked by Shutdown) observe it and close themselves.
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", "error", err)
		}
	}()

	// shutdown on context cancellation
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	return nil
}

// Addr returns the address the server is listening on, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// page returns a handler serving one embedded page.
func (s *Server) page(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.servePage(w, name)
	}
}

// servePage writes an embedded page with the title substituted.
func (s *Server) servePage(w http.ResponseWriter, name string) {
	content, err := fs.ReadFile(s.cfg.Assets, "assets/"+name)
	if err != nil {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	// apply title substitution with HTML escaping to prevent XSS
	title := s.cfg.Title
	if title == "" {
		title = defaultTitle
	}
	rendered := strings.ReplaceAll(string(content), titlePlaceholder, html.EscapeString(title))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err = w.Write([]byte(rendered)); err != nil {
		s.logger.Error("failed to write page response", "page", name, "error", err)
	}
}

// checkOrigin accepts any origin unless an allow-list is configured.
// Requests without an Origin header (non-browser clients) are accepted.
func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if strings.EqualFold(origin, allowed) {
			return true
		}
	}
	return false
}
