// Package rollcall provides an embeddable real-time classroom attendance
// server.
//
// One process holds every classroom roster in memory. Teachers mark students
// as arrived or departed through a small REST API, and every connected
// browser sees the change at once over WebSocket. A browser that connects
// receives the full state first, then each change in commit order.
//
// # Quick Start
//
//	rc, _ := rollcall.New(
//	    rollcall.WithClassrooms(rollcall.NewClassroom("一年甲班", "class-1a", "Bob", "Alice")),
//	)
//
//	// Set up graceful shutdown on SIGINT/SIGTERM
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	rc.Start(ctx) // blocks until context is cancelled
//
// # Configuration
//
// Rollcall uses the functional options pattern for configuration:
//
//	rc, err := rollcall.New(
//	    rollcall.WithPort(9000),
//	    rollcall.WithTitle("Sunrise Kindergarten"),
//	    rollcall.WithMetrics(true, "/metrics"),
//	    rollcall.WithAllowedOrigins("https://school.example"),
//	)
//
// # Restoring State
//
// Nothing is persisted. The bundled pages keep a copy of the classrooms in
// browser local storage and, when they connect to a server with no
// classrooms, send it back through the sync endpoint.
//
// # Architecture
//
// Rollcall consists of several internal packages (under internal/):
//
//   - internal/store: In-memory, insertion-ordered classroom storage
//   - internal/gateway: Validated mutations, one lock from commit to broadcast
//   - internal/hub: Observer registry and non-blocking broadcast
//   - internal/event: WebSocket event encoding
//   - internal/server: REST API, WebSocket channel and pages
//   - internal/metrics: Prometheus collectors
//   - web: Embedded pages
//
// The internal packages are not part of the public API and may change
// without notice.
package rollcall
