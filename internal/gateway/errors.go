package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no classroom has the requested id.
	ErrNotFound = errors.New("classroom not found")

	// ErrPathConflict is returned when another classroom already uses the path.
	// The message is shown to users verbatim.
	ErrPathConflict = errors.New("路徑已被使用")

	// ErrStudentNotFound is returned when a patch addresses a roster index
	// outside the classroom's student list. It matches ErrNotFound.
	ErrStudentNotFound = fmt.Errorf("student not found: %w", ErrNotFound)
)

// outcome maps an operation error to a metrics label.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrPathConflict):
		return "path_conflict"
	case errors.Is(err, ErrStudentNotFound):
		return "student_not_found"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
