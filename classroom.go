package rollcall

import (
	"github.com/jpalmerr/rollcall/internal/event"
	"github.com/jpalmerr/rollcall/internal/store"
)

// Student is one entry of a classroom roster.
//
// Present marks arrival and Left marks departure. A student who has left is
// always also present.
type Student struct {
	Name    string `json:"name"`
	Present bool   `json:"present"`
	Left    bool   `json:"left"`
}

// Classroom is a named roster reachable at its own page path.
//
// ID is assigned by the server unless supplied with a seed. Path must be
// unique among classrooms and match [a-zA-Z0-9_-]+.
type Classroom struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	Students []Student `json:"students"`
}

// NewClassroom builds a seed classroom with every student absent.
//
// Example:
//
//	rc, err := rollcall.New(
//	    rollcall.WithClassrooms(
//	        rollcall.NewClassroom("一年甲班", "class-1a", "Bob", "Alice"),
//	    ),
//	)
func NewClassroom(name, path string, students ...string) Classroom {
	c := Classroom{Name: name, Path: path, Students: make([]Student, len(students))}
	for i, s := range students {
		c.Students[i] = Student{Name: s}
	}
	return c
}

// ChangeType identifies what a [Change] describes.
type ChangeType string

const (
	ChangeAdded   ChangeType = "classroom_added"
	ChangeUpdated ChangeType = "classroom_updated"
	ChangeDeleted ChangeType = "classroom_deleted"
	ChangeStudent ChangeType = "student_updated"

	// ChangeSynced reports a bulk replace of every classroom.
	ChangeSynced ChangeType = "synced"
)

// Change describes one committed mutation, delivered to callbacks
// registered with [WithChangeCallback].
type Change struct {
	Type ChangeType

	// ClassroomID is empty for ChangeSynced.
	ClassroomID string

	// Classroom is the state after the change, for ChangeAdded and
	// ChangeUpdated. Nil otherwise.
	Classroom *Classroom

	// StudentIndex, Present and Left are set for ChangeStudent.
	StudentIndex int
	Present      bool
	Left         bool

	// Count is the number of classrooms after a ChangeSynced.
	Count int
}

// changeFromEvent converts an internal event to its public form.
func changeFromEvent(e event.Event) (Change, bool) {
	switch ev := e.(type) {
	case event.ClassroomAdded:
		c := fromStoreClassroom(ev.Classroom)
		return Change{Type: ChangeAdded, ClassroomID: c.ID, Classroom: &c}, true
	case event.ClassroomUpdated:
		c := fromStoreClassroom(ev.Classroom)
		return Change{Type: ChangeUpdated, ClassroomID: c.ID, Classroom: &c}, true
	case event.ClassroomDeleted:
		return Change{Type: ChangeDeleted, ClassroomID: ev.ClassroomID}, true
	case event.StudentUpdated:
		return Change{
			Type:         ChangeStudent,
			ClassroomID:  ev.ClassroomID,
			StudentIndex: ev.StudentIndex,
			Present:      ev.Present,
			Left:         ev.Left,
		}, true
	case event.Init:
		return Change{Type: ChangeSynced, Count: len(ev.Classrooms)}, true
	default:
		return Change{}, false
	}
}

func toStoreClassrooms(cs []Classroom) []store.Classroom {
	out := make([]store.Classroom, len(cs))
	for i, c := range cs {
		students := make([]store.Student, len(c.Students))
		for j, s := range c.Students {
			students[j] = store.Student{Name: s.Name, Present: s.Present, Left: s.Left}
		}
		out[i] = store.Classroom{ID: c.ID, Name: c.Name, Path: c.Path, Students: students}
	}
	return out
}

func fromStoreClassroom(c store.Classroom) Classroom {
	students := make([]Student, len(c.Students))
	for i, s := range c.Students {
		students[i] = Student{Name: s.Name, Present: s.Present, Left: s.Left}
	}
	return Classroom{ID: c.ID, Name: c.Name, Path: c.Path, Students: students}
}

// clone returns a deep copy of c.
func (c Classroom) clone() Classroom {
	cp := c
	cp.Students = append([]Student(nil), c.Students...)
	if cp.Students == nil {
		cp.Students = []Student{}
	}
	return cp
}
