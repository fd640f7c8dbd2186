// Package gateway is the only writer of classroom state.
//
// The [Gateway] validates each mutation against the store, commits it, and
// hands the resulting event to the hub for broadcast. It also performs the
// connection handshake for new observers via [Gateway.Connect], which sends a
// point-to-point snapshot before the observer joins the broadcast set.
//
// Errors are sentinel values checked with errors.Is:
//
//   - [ErrNotFound]: unknown classroom id
//   - [ErrStudentNotFound]: roster index out of range (also matches ErrNotFound)
//   - [ErrPathConflict]: another classroom already uses the path
package gateway
