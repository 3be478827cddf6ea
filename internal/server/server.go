package server

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jpalmerr/smartmeter/internal/store"
)

const (
	// sseWriteTimeout is the maximum time allowed for a single SSE write operation.
	// This prevents goroutine leaks when clients are slow or disconnected.
	// Must be <= shutdown timeout to ensure clean shutdown.
	sseWriteTimeout = 5 * time.Second

	// shutdownTimeout bounds graceful shutdown of in-flight requests.
	shutdownTimeout = 5 * time.Second

	// defaultTitle is used when no custom title is configured.
	defaultTitle = "Smart Meter"

	// titlePlaceholder is the marker in HTML that gets replaced with the actual title.
	titlePlaceholder = "{{.Title}}"
)

// Sensor is a configured address of interest.
type Sensor struct {
	Address string
	Name    string
}

// SensorStatus is the JSON form of a configured sensor and its current value.
//
// Value, Unit and UpdatedAt are null until the address has been received.
type SensorStatus struct {
	Address   string     `json:"address"`
	Name      string     `json:"name"`
	Value     *float64   `json:"value"`
	Unit      *string    `json:"unit"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// Config holds the dependencies of a [Server].
type Config struct {
	// Store is the value table served by the API. Required.
	Store store.Store

	// Sensors lists the configured addresses for /api/sensors.
	Sensors []Sensor

	// Stats returns a JSON-serializable counter snapshot for /api/stats.
	// If nil, /api/stats responds 404.
	Stats func() any

	// Port is the TCP port to listen on. 0 picks a free port.
	Port int

	// Assets holds assets/index.html. If nil, the dashboard route is not mounted.
	Assets fs.FS

	// Title replaces {{.Title}} in the dashboard (defaults to "Smart Meter").
	Title string

	Logger *slog.Logger
}

// Server handles HTTP requests for the meter dashboard and API.
//
// Routes:
//   - GET /: the embedded dashboard HTML
//   - GET /api/values: all readings as JSON
//   - GET /api/values/{address}: one reading, 404 if never received
//   - GET /api/sensors: configured sensors with their current value
//   - GET /api/stats: meter counters
//   - GET /api/sse: Server-Sent Events stream of applied values
//
// The server is designed for graceful shutdown via context cancellation.
type Server struct {
	store      store.Store
	sensors    []Sensor
	stats      func() any
	port       int
	httpServer *http.Server
	addr       net.Addr
	assets     fs.FS
	title      string
	logger     *slog.Logger
}

// NewServer creates a new HTTP [Server].
//
// The server is not started until [Server.Start] is called.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:   cfg.Store,
		sensors: append([]Sensor(nil), cfg.Sensors...),
		stats:   cfg.Stats,
		port:    cfg.Port,
		assets:  cfg.Assets,
		title:   cfg.Title,
		logger:  logger,
	}
}

// Handler returns the router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/values", s.handleValues)
		r.Get("/values/{address}", s.handleValue)
		r.Get("/sensors", s.handleSensors)
		r.Get("/stats", s.handleStats)
		r.Get("/sse", s.handleSSE)
	})

	if s.assets != nil {
		r.Get("/", s.handleDashboard)
	}

	return r
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns immediately after confirming the server
// is listening. The server will continue running until the context is
// cancelled, at which point it initiates a graceful shutdown with a 5-second
// timeout.
//
// Returns an error if the server fails to bind to the configured port.
func (s *Server) Start(ctx context.Context) error {
	// create listener first to verify port availability synchronously
	addr := fmt.Sprintf(":%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}
	s.addr = ln.Addr()

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// BaseContext derives all request contexts from the server context.
		// When ctx is cancelled, all request contexts are also cancelled,
		// enabling graceful shutdown of long-running handlers like SSE.
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

// Addr returns the bound listener address, or nil before [Server.Start].
func (s *Server) Addr() net.Addr {
	return s.addr
}

// handleDashboard serves the main dashboard page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	if s.assets == nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	// read index.html from embedded assets
	content, err := fs.ReadFile(s.assets, "assets/index.html")
	if err != nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	// apply title substitution with HTML escaping to prevent XSS
	title := s.title
	if title == "" {
		title = defaultTitle
	}
	safeTitle := html.EscapeString(title)
	rendered := strings.ReplaceAll(string(content), titlePlaceholder, safeTitle)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err = w.Write([]byte(rendered)); err != nil {
		s.logger.Error("failed to write dashboard response", "error", err)
	}
}

// handleValues returns all stored values as JSON.
func (s *Server) handleValues(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.GetAll())
}

// handleValue returns the value of a single address.
func (s *Server) handleValue(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")

	v, ok := s.store.Get(address)
	if !ok {
		s.writeJSON(w, http.StatusNotFound, map[string]string{
			"error": fmt.Sprintf("no value for address %q", address),
		})
		return
	}
	s.writeJSON(w, http.StatusOK, v)
}

// handleSensors returns the configured sensors joined with their values.
func (s *Server) handleSensors(w http.ResponseWriter, _ *http.Request) {
	out := make([]SensorStatus, len(s.sensors))
	for i, sensor := range s.sensors {
		out[i] = SensorStatus{Address: sensor.Address, Name: sensor.Name}
		if v, ok := s.store.Get(sensor.Address); ok {
			value, unit, at := v.Value, v.Unit, v.UpdatedAt
			out[i].Value = &value
			out[i].Unit = &unit
			out[i].UpdatedAt = &at
		}
	}
	s.writeJSON(w, http.StatusOK, out)
}

// handleStats returns the meter counters.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		http.NotFound(w, r)
		return
	}
	s.writeJSON(w, http.StatusOK, s.stats())
}

// writeJSON encodes v before touching the response, so an encoding failure
// becomes a 500 instead of a committed status with an empty body.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("failed to encode response", "error", err)
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)

	if _, err := w.Write(append(data, '\n')); err != nil {
		s.logger.Error("failed to write response", "error", err)
	}
}

// handleSSE streams applied values via Server-Sent Events.
//
// The handler uses write deadlines to prevent goroutine leaks when clients are
// slow or disconnected. Without deadlines, a blocked Fprintf call would prevent
// the handler from detecting context cancellation or channel closure.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	// check if flushing is supported
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)

	// track if write deadlines are supported (may not be for some ResponseWriter impls)
	deadlinesSupported := true

	// writeAndFlush writes SSE data with a deadline so a stalled client cannot
	// block the handler past shutdown.
	writeAndFlush := func(data []byte) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				// deadline not supported by underlying connection, continue without
				s.logger.Warn("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}

		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}

		return rc.Flush()
	}

	// set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	// subscribe before the snapshot so no update falls in between
	ch := s.store.Subscribe()
	defer s.store.Unsubscribe(ch)

	for _, v := range s.store.GetAll() {
		data, err := json.Marshal(v)
		if err != nil {
			s.logger.Warn("failed to encode sse value", "address", v.Address, "error", err)
			continue
		}
		if err := writeAndFlush(data); err != nil {
			return
		}
	}

	// stream updates
	for {
		select {
		case v, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(v)
			if err != nil {
				s.logger.Warn("failed to encode sse value", "address", v.Address, "error", err)
				continue
			}
			if err := writeAndFlush(data); err != nil {
				return
			}

		case <-r.Context().Done():
			// request context is derived from server context via BaseContext,
			// so this fires on both client disconnect AND server shutdown
			return
		}
	}
}
