// Package server provides the HTTP and WebSocket front end of rollcall.
//
// This package is internal to rollcall and handles all transport concerns:
//
//   - REST API: classroom CRUD, attendance patch and bulk sync under "/api/classrooms"
//   - Real-time channel: WebSocket at "/ws"; each connection is a hub observer
//     that first receives a full "init" snapshot, then every broadcast event
//   - Pages: embedded index, admin and per-classroom views
//   - Operations: "/healthz" and Prometheus metrics
//
// The server supports graceful shutdown via context cancellation. WebSocket
// sessions watch the same context and send a going-away close frame.
package server
