package rollcall

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/rollcall/internal/event"
	"github.com/jpalmerr/rollcall/internal/gateway"
	"github.com/jpalmerr/rollcall/internal/hub"
	"github.com/jpalmerr/rollcall/internal/metrics"
	"github.com/jpalmerr/rollcall/internal/server"
	"github.com/jpalmerr/rollcall/internal/store"
	"github.com/jpalmerr/rollcall/web"
)

const (
	defaultPort         = 8000
	defaultWriteTimeout = 5 * time.Second
	defaultSendBuffer   = hub.DefaultQueueSize
	defaultMetricsPath  = "/metrics"
	maxSendBuffer       = 4096
)

// pathPattern matches classroom paths that can be served as a page.
var pathPattern = regexp.MustCompile(`^[a-zA-Z0-9\-_]+$`)

// Rollcall is the attendance sync server.
//
// Rollcall holds every classroom in memory, serves the REST API and pages,
// and pushes each change to connected browsers over WebSocket. It is created
// using [New] with functional options and started with [Rollcall.Start].
//
// The typical lifecycle is:
//
//	rc, err := rollcall.New(rollcall.WithPort(8000))
//	if err != nil {
//	    slog.Error("failed to create rollcall", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	rc.Start(ctx) // blocks until context cancelled
//
// State lives for the lifetime of the process only.
type Rollcall struct {
	title           string
	port            int
	writeTimeout    time.Duration
	sendBuffer      int
	allowedOrigins  []string
	metricsEnabled  bool
	metricsPath     string
	seeds           []Classroom
	logger          *slog.Logger
	changeCallbacks []func(Change)
}

// New creates a new [Rollcall] instance with the given options.
//
// Defaults:
//   - Port: 8000
//   - Write timeout: 5 seconds
//   - Send buffer: 64 messages per observer
//   - Metrics: disabled
//
// Returns an error if any option is invalid or the seed classrooms conflict.
func New(opts ...Option) (*Rollcall, error) {
	cfg := &rcConfig{
		port:         defaultPort,
		writeTimeout: defaultWriteTimeout,
		sendBuffer:   defaultSendBuffer,
		metricsPath:  defaultMetricsPath,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if err := validateSeeds(cfg.seeds); err != nil {
		return nil, err
	}
	for i := range cfg.seeds {
		if cfg.seeds[i].ID == "" {
			cfg.seeds[i].ID = uuid.NewString()
		}
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Rollcall{
		title:           cfg.title,
		port:            cfg.port,
		writeTimeout:    cfg.writeTimeout,
		sendBuffer:      cfg.sendBuffer,
		allowedOrigins:  cfg.allowedOrigins,
		metricsEnabled:  cfg.metricsEnabled,
		metricsPath:     cfg.metricsPath,
		seeds:           cfg.seeds,
		logger:          logger,
		changeCallbacks: cfg.changeCallbacks,
	}, nil
}

// validateSeeds checks that seed paths are servable and unique, and that
// supplied ids are unique.
func validateSeeds(seeds []Classroom) error {
	paths := make(map[string]bool, len(seeds))
	ids := make(map[string]bool, len(seeds))
	for i, c := range seeds {
		if c.Name == "" {
			return fmt.Errorf("classrooms[%d]: name is required", i)
		}
		if !pathPattern.MatchString(c.Path) {
			return fmt.Errorf("classrooms[%d] (%s): path %q must match %s", i, c.Name, c.Path, pathPattern)
		}
		if paths[c.Path] {
			return fmt.Errorf("classrooms[%d] (%s): duplicate path %q", i, c.Name, c.Path)
		}
		paths[c.Path] = true

		if c.ID == "" {
			continue
		}
		if ids[c.ID] {
			return fmt.Errorf("classrooms[%d] (%s): duplicate id %q", i, c.Name, c.ID)
		}
		ids[c.ID] = true
	}
	return nil
}

// Start seeds the store and serves HTTP and WebSocket traffic.
//
// Start is a blocking call that runs until the provided context is cancelled.
// Seed classrooms are loaded through the same path as a client sync, so
// registered callbacks see a [ChangeSynced] first.
//
// Returns nil on graceful shutdown. Returns an error if the HTTP server fails to start.
func (rc *Rollcall) Start(ctx context.Context) error {
	rc.logger.Info("rollcall starting", "seed_classrooms", len(rc.seeds), "metrics", rc.metricsEnabled)
	rc.logger.Info("pages available", "url", fmt.Sprintf("http://localhost:%d", rc.port))

	// check if context already cancelled
	if ctx.Err() != nil {
		return nil
	}

	var m *metrics.Metrics
	metricsPath := ""
	if rc.metricsEnabled {
		m = metrics.New(nil)
		metricsPath = rc.metricsPath
	}

	gw := gateway.New(store.NewMemoryStore(), hub.New(m, rc.logger),
		gateway.WithLogger(rc.logger),
		gateway.WithMetrics(m),
		gateway.WithListener(rc.dispatch),
	)
	if len(rc.seeds) > 0 {
		gw.Sync(toStoreClassrooms(rc.seeds))
	}

	httpServer := server.NewServer(gw, m, server.Config{
		Port:           rc.port,
		Title:          rc.title,
		Assets:         web.Assets,
		WriteTimeout:   rc.writeTimeout,
		SendBuffer:     rc.sendBuffer,
		AllowedOrigins: rc.allowedOrigins,
		MetricsPath:    metricsPath,
	}, rc.logger)
	if err := httpServer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	<-ctx.Done()
	rc.logger.Info("rollcall stopped")
	return nil
}

// dispatch forwards a committed event to the change callbacks.
func (rc *Rollcall) dispatch(e event.Event) {
	if len(rc.changeCallbacks) == 0 {
		return
	}
	change, ok := changeFromEvent(e)
	if !ok {
		return
	}
	for _, cb := range rc.changeCallbacks {
		invokeCallbackSafe(cb, change, rc.logger)
	}
}

// Port returns the configured HTTP port.
func (rc *Rollcall) Port() int {
	return rc.port
}

// Classrooms returns a copy of the seed classrooms, with ids assigned.
func (rc *Rollcall) Classrooms() []Classroom {
	cp := make([]Classroom, len(rc.seeds))
	for i, c := range rc.seeds {
		cp[i] = c.clone()
	}
	return cp
}

// MetricsPath returns where metrics are served, or "" if disabled.
func (rc *Rollcall) MetricsPath() string {
	if !rc.metricsEnabled {
		return ""
	}
	return rc.metricsPath
}

// invokeCallbackSafe calls a change callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe(cb func(Change), change Change, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("change callback panicked",
				"panic", r,
				"change", change.Type,
				"classroom_id", change.ClassroomID,
			)
		}
	}()
	cb(change)
}
