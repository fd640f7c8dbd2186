package rollcall

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
)

// reservedPaths are GET routes the server always registers.
var reservedPaths = []string{
	"/",
	"/index.html",
	"/admin",
	"/admin.html",
	"/classroom.html",
	"/api/classrooms",
	"/healthz",
	"/ws",
}

// rcConfig holds mutable state during Rollcall construction.
type rcConfig struct {
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

// Option is a function that configures a [Rollcall] instance during construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
type Option func(*rcConfig) error

// WithPort sets the HTTP port for the API, pages and WebSocket channel.
//
// Defaults to 8000 if not specified.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *rcConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the Rollcall instance.
//
// This allows SDK consumers to control where logs are written and in what
// format. If not specified, [slog.Default] is used.
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
//	rc, err := rollcall.New(rollcall.WithLogger(logger))
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *rcConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithTitle sets the title shown in the browser tab and page headers.
//
// If not specified, defaults to "點名系統".
func WithTitle(title string) Option {
	return func(cfg *rcConfig) error {
		cfg.title = title
		return nil
	}
}

// WithWriteTimeout bounds each WebSocket write. An observer whose socket
// stalls longer is disconnected. Defaults to 5 seconds.
//
// Returns an error if the duration is zero or negative.
func WithWriteTimeout(d time.Duration) Option {
	return func(cfg *rcConfig) error {
		if d <= 0 {
			return errors.New("write timeout must be positive")
		}
		cfg.writeTimeout = d
		return nil
	}
}

// WithSendBuffer sets how many outbound messages may queue per observer
// before further broadcasts to it are dropped. Defaults to 64.
//
// Returns an error if n is outside 1-4096.
func WithSendBuffer(n int) Option {
	return func(cfg *rcConfig) error {
		if n < 1 || n > maxSendBuffer {
			return fmt.Errorf("send buffer must be between 1 and %d", maxSendBuffer)
		}
		cfg.sendBuffer = n
		return nil
	}
}

// WithAllowedOrigins restricts WebSocket upgrades to browsers on the given
// origins, e.g. "https://school.example". Matching is case-insensitive.
//
// If never called, any origin is accepted.
func WithAllowedOrigins(origins ...string) Option {
	return func(cfg *rcConfig) error {
		for _, o := range origins {
			if strings.TrimSpace(o) == "" {
				return errors.New("allowed origin cannot be empty")
			}
		}
		cfg.allowedOrigins = append(cfg.allowedOrigins, origins...)
		return nil
	}
}

// WithMetrics enables or disables the Prometheus endpoint.
//
// An empty path keeps the default "/metrics". Metrics are disabled unless
// this option enables them.
//
// Returns an error if path is set and does not start with "/", contains
// pattern characters, or collides with a built-in route.
func WithMetrics(enabled bool, path string) Option {
	return func(cfg *rcConfig) error {
		if path != "" {
			if !strings.HasPrefix(path, "/") {
				return fmt.Errorf("metrics path must start with /, got %q", path)
			}
			if strings.ContainsAny(path, "{} \t") {
				return fmt.Errorf("metrics path %q contains invalid characters", path)
			}
			if slices.Contains(reservedPaths, path) {
				return fmt.Errorf("metrics path %q is already served", path)
			}
			cfg.metricsPath = path
		}
		cfg.metricsEnabled = enabled
		return nil
	}
}

// WithClassrooms seeds the store with classrooms before serving.
//
// Seeds without an ID are given a random one. Can be called multiple times;
// seeds accumulate in call order.
//
// Example:
//
//	rc, err := rollcall.New(
//	    rollcall.WithClassrooms(
//	        rollcall.NewClassroom("一年甲班", "class-1a", "Bob", "Alice"),
//	        rollcall.NewClassroom("一年乙班", "class-1b"),
//	    ),
//	)
func WithClassrooms(seeds ...Classroom) Option {
	return func(cfg *rcConfig) error {
		for _, c := range seeds {
			cfg.seeds = append(cfg.seeds, c.clone())
		}
		return nil
	}
}

// WithChangeCallback registers a function to be called after every
// committed change to the classrooms.
//
// Multiple callbacks may be registered by calling WithChangeCallback multiple
// times; they execute in registration order.
//
// IMPORTANT: Callbacks must be non-blocking. They run on the goroutine of
// the request that made the change, after every observer has been notified.
// Panics within callbacks are recovered and logged.
//
// Example:
//
//	rc, err := rollcall.New(
//	    rollcall.WithChangeCallback(func(c rollcall.Change) {
//	        if c.Type == rollcall.ChangeStudent && c.Left {
//	            log.Printf("student %d left classroom %s", c.StudentIndex, c.ClassroomID)
//	        }
//	    }),
//	)
//
// Nil callbacks are silently ignored.
func WithChangeCallback(cb func(Change)) Option {
	return func(cfg *rcConfig) error {
		if cb == nil {
			return nil
		}
		cfg.changeCallbacks = append(cfg.changeCallbacks, cb)
		return nil
	}
}
