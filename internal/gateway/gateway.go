package gateway

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/jpalmerr/rollcall/internal/event"
	"github.com/jpalmerr/rollcall/internal/hub"
	"github.com/jpalmerr/rollcall/internal/metrics"
	"github.com/jpalmerr/rollcall/internal/store"
)

// Input holds the caller-supplied fields of a create or full update.
type Input struct {
	Name     string
	Path     string
	Students []string
}

// Patch toggles the attendance flags of one student.
//
// A nil StudentIndex leaves the classroom untouched. When both Left and
// Present are set, Left wins.
type Patch struct {
	StudentIndex *int
	Present      *bool
	Left         *bool
}

// Gateway applies mutations to the store and publishes the resulting events.
//
// Every operation holds a single lock from validation through publish, so
// the order in which events reach observers is the order of commits, and a
// newly connected observer's snapshot is never interleaved with a mutation.
type Gateway struct {
	mu        sync.Mutex
	store     store.Store
	hub       *hub.Hub
	newID     func() string
	metrics   *metrics.Metrics
	logger    *slog.Logger
	listeners []func(event.Event)
}

// Option configures a [Gateway].
type Option func(*Gateway)

// WithMetrics records operation outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

// WithLogger sets the gateway logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithIDGenerator replaces the random UUID generator. Used by tests.
func WithIDGenerator(fn func() string) Option {
	return func(g *Gateway) {
		if fn != nil {
			g.newID = fn
		}
	}
}

// WithListener registers fn to run after every committed change.
//
// Listeners run outside the gateway lock, after the event has been
// published, in registration order.
func WithListener(fn func(event.Event)) Option {
	return func(g *Gateway) {
		if fn != nil {
			g.listeners = append(g.listeners, fn)
		}
	}
}

// New creates a [Gateway] over st that publishes through h.
func New(st store.Store, h *hub.Hub, opts ...Option) *Gateway {
	g := &Gateway{
		store:  st,
		hub:    h,
		newID:  uuid.NewString,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.metrics.SetClassrooms(st.Len())
	return g
}

// Create adds a classroom with a fresh id and an all-absent roster.
func (g *Gateway) Create(in Input) (store.Classroom, error) {
	var created store.Classroom
	err := g.commit("create", func() (event.Event, error) {
		if g.pathTakenLocked(in.Path, "") {
			return nil, ErrPathConflict
		}

		created = store.Classroom{
			ID:       g.uniqueIDLocked(),
			Name:     in.Name,
			Path:     in.Path,
			Students: roster(in.Students),
		}
		g.store.Put(created)
		return event.ClassroomAdded{Classroom: created}, nil
	})
	if err != nil {
		return store.Classroom{}, err
	}

	g.logger.Info("classroom created",
		"classroom_id", created.ID,
		"path", created.Path,
		"students", len(created.Students),
	)
	return created, nil
}

// Update replaces the name, path and roster of an existing classroom.
//
// The roster is always rebuilt, so every student's attendance is reset even
// when the names are unchanged.
func (g *Gateway) Update(id string, in Input) (store.Classroom, error) {
	var updated store.Classroom
	err := g.commit("update", func() (event.Event, error) {
		current, ok := g.store.Get(id)
		if !ok {
			return nil, ErrNotFound
		}
		if in.Path != current.Path && g.pathTakenLocked(in.Path, id) {
			return nil, ErrPathConflict
		}

		updated = store.Classroom{
			ID:       id,
			Name:     in.Name,
			Path:     in.Path,
			Students: roster(in.Students),
		}
		g.store.Put(updated)
		return event.ClassroomUpdated{Classroom: updated}, nil
	})
	if err != nil {
		return store.Classroom{}, err
	}

	g.logger.Info("classroom updated", "classroom_id", id, "path", updated.Path)
	return updated, nil
}

// Delete removes a classroom.
func (g *Gateway) Delete(id string) error {
	err := g.commit("delete", func() (event.Event, error) {
		if !g.store.Delete(id) {
			return nil, ErrNotFound
		}
		return event.ClassroomDeleted{ClassroomID: id}, nil
	})
	if err != nil {
		return err
	}

	g.logger.Info("classroom deleted", "classroom_id", id)
	return nil
}

// Patch updates one student's attendance and returns the whole classroom.
//
// Setting left also marks the student present. Setting present to true
// clears left; setting it to false leaves left as it was. A patch that names
// a student but no flag still publishes the student's current state.
func (g *Gateway) Patch(id string, p Patch) (store.Classroom, error) {
	var patched store.Classroom
	err := g.commit("patch", func() (event.Event, error) {
		c, ok := g.store.Get(id)
		if !ok {
			return nil, ErrNotFound
		}
		patched = c
		if p.StudentIndex == nil {
			return nil, nil
		}

		idx := *p.StudentIndex
		if idx < 0 || idx >= len(c.Students) {
			return nil, ErrStudentNotFound
		}

		s := &c.Students[idx]
		switch {
		case p.Left != nil:
			s.Left = *p.Left
			s.Present = true
		case p.Present != nil:
			s.Present = *p.Present
			if s.Present {
				s.Left = false
			}
		}

		g.store.Put(c)
		patched = c
		return event.StudentUpdated{
			ClassroomID:  id,
			StudentIndex: idx,
			Present:      s.Present,
			Left:         s.Left,
		}, nil
	})
	if err != nil {
		return store.Classroom{}, err
	}

	if p.StudentIndex != nil {
		g.logger.Debug("student updated",
			"classroom_id", id,
			"student_index", *p.StudentIndex,
		)
	}
	return patched, nil
}

// Sync replaces the whole store with classrooms supplied by a client and
// sends every observer a fresh snapshot. It returns the resulting count.
//
// The input is trusted: ids are kept as given and paths are not checked for
// uniqueness, since clients echo back state this server issued earlier.
func (g *Gateway) Sync(classrooms []store.Classroom) int {
	var count int
	_ = g.commit("sync", func() (event.Event, error) {
		g.store.ReplaceAll(classrooms)
		count = g.store.Len()
		return event.Init{Classrooms: g.store.List()}, nil
	})

	g.logger.Info("classrooms synced", "count", count, "observers", g.hub.Len())
	return count
}

// Connect hands a new observer its initial snapshot and registers it for
// broadcasts. It reports false, without registering, if the observer could
// not accept the snapshot.
//
// The snapshot is sent directly to o rather than broadcast, and no mutation
// can commit between the snapshot and the registration.
func (g *Gateway) Connect(o hub.Observer) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.hub.Send(o, event.Init{Classrooms: g.store.List()}) {
		return false
	}
	g.hub.Add(o)
	return true
}

// Disconnect unregisters an observer.
func (g *Gateway) Disconnect(o hub.Observer) {
	g.hub.Remove(o)
}

// List returns every classroom in insertion order.
func (g *Gateway) List() []store.Classroom {
	return g.store.List()
}

// Get returns one classroom by id.
func (g *Gateway) Get(id string) (store.Classroom, bool) {
	return g.store.Get(id)
}

// FindByPath returns the classroom whose path equals path exactly.
func (g *Gateway) FindByPath(path string) (store.Classroom, bool) {
	for _, c := range g.store.List() {
		if c.Path == path {
			return c, true
		}
	}
	return store.Classroom{}, false
}

// Observers returns the number of registered observers.
func (g *Gateway) Observers() int {
	return g.hub.Len()
}

// commit runs fn under the gateway lock and publishes the event it returns.
// A nil event with a nil error commits nothing visible.
func (g *Gateway) commit(op string, fn func() (event.Event, error)) error {
	g.mu.Lock()
	ev, err := fn()
	if err == nil && ev != nil {
		g.hub.Publish(ev)
	}
	size := g.store.Len()
	g.mu.Unlock()

	g.metrics.Mutation(op, outcome(err))
	g.metrics.SetClassrooms(size)

	if err != nil {
		g.logger.Debug("mutation rejected", "op", op, "error", err)
		return err
	}
	if ev != nil {
		g.notify(ev)
	}
	return nil
}

func (g *Gateway) notify(ev event.Event) {
	for _, fn := range g.listeners {
		fn(ev)
	}
}

// pathTakenLocked reports whether a classroom other than exceptID uses path.
func (g *Gateway) pathTakenLocked(path, exceptID string) bool {
	for _, c := range g.store.List() {
		if c.ID != exceptID && c.Path == path {
			return true
		}
	}
	return false
}

func (g *Gateway) uniqueIDLocked() string {
	for {
		id := g.newID()
		if _, exists := g.store.Get(id); !exists {
			return id
		}
	}
}

// roster builds a student list with every flag cleared.
func roster(names []string) []store.Student {
	students := make([]store.Student, len(names))
	for i, name := range names {
		students[i] = store.Student{Name: name}
	}
	return students
}
