package store

// Student is one entry in a classroom roster.
//
// A student has no identity of its own; it is addressed by its position in
// [Classroom.Students].
type Student struct {
	// Name is the display name of the student.
	Name string `json:"name"`

	// Present reports whether the student has arrived.
	Present bool `json:"present"`

	// Left reports whether the student has left after arriving.
	Left bool `json:"left"`
}

// Classroom is the top-level attendance record.
//
// Classroom is both the storage representation and the JSON shape sent over
// the REST API and the WebSocket channel.
type Classroom struct {
	// ID is the opaque identifier assigned at creation time.
	ID string `json:"id"`

	// Name is the display name of the classroom.
	Name string `json:"name"`

	// Path is the URL slug used to open the classroom view directly.
	Path string `json:"path"`

	// Students is the ordered roster. Order is significant.
	Students []Student `json:"students"`
}

// Clone returns a deep copy of the classroom.
//
// A nil roster is normalised to an empty slice so the JSON form is always
// an array.
func (c Classroom) Clone() Classroom {
	students := make([]Student, len(c.Students))
	copy(students, c.Students)
	c.Students = students
	return c
}

// Store defines the operations on the classroom entity store.
//
// Store implementations must be safe for concurrent access. Values passed in
// and returned are copies; callers never share memory with the store.
type Store interface {
	// Get returns the classroom with the given id.
	Get(id string) (Classroom, bool)

	// List returns all classrooms in insertion order.
	List() []Classroom

	// Put inserts a classroom, or overwrites the one with the same ID in place.
	Put(c Classroom)

	// Delete removes a classroom and reports whether it existed.
	Delete(id string) bool

	// ReplaceAll atomically discards every classroom and installs the given
	// set, keyed by each classroom's own ID.
	ReplaceAll(classrooms []Classroom)

	// Len returns the number of stored classrooms.
	Len() int
}
