// Package event defines the messages pushed to real-time observers.
//
// Every message is a JSON object tagged by a "type" field. Each tag has its
// own Go type implementing [Event]; [Decode] reverses the encoding.
package event

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jpalmerr/rollcall/internal/store"
)

// Type is the value of the "type" discriminator.
type Type string

const (
	TypeInit             Type = "init"
	TypeClassroomAdded   Type = "classroom_added"
	TypeClassroomUpdated Type = "classroom_updated"
	TypeClassroomDeleted Type = "classroom_deleted"
	TypeStudentUpdated   Type = "student_updated"
)

// ErrUnknownType is returned by [Decode] for an unrecognised discriminator.
var ErrUnknownType = errors.New("unknown event type")

// Event is a state-change message. The concrete types are [Init],
// [ClassroomAdded], [ClassroomUpdated], [ClassroomDeleted] and
// [StudentUpdated].
type Event interface {
	EventType() Type
}

// Init carries a full snapshot of every classroom.
type Init struct {
	Classrooms []store.Classroom `json:"classrooms"`
}

// ClassroomAdded carries a newly created classroom.
type ClassroomAdded struct {
	Classroom store.Classroom `json:"classroom"`
}

// ClassroomUpdated carries a classroom after a full update.
type ClassroomUpdated struct {
	Classroom store.Classroom `json:"classroom"`
}

// ClassroomDeleted carries the id of a removed classroom.
type ClassroomDeleted struct {
	ClassroomID string `json:"classroomId"`
}

// StudentUpdated carries the attendance flags of a single student.
type StudentUpdated struct {
	ClassroomID  string `json:"classroomId"`
	StudentIndex int    `json:"studentIndex"`
	Present      bool   `json:"present"`
	Left         bool   `json:"left"`
}

func (Init) EventType() Type             { return TypeInit }
func (ClassroomAdded) EventType() Type   { return TypeClassroomAdded }
func (ClassroomUpdated) EventType() Type { return TypeClassroomUpdated }
func (ClassroomDeleted) EventType() Type { return TypeClassroomDeleted }
func (StudentUpdated) EventType() Type   { return TypeStudentUpdated }

// MarshalJSON implements json.Marshaler.
func (e Init) MarshalJSON() ([]byte, error) {
	if e.Classrooms == nil {
		e.Classrooms = []store.Classroom{}
	}
	type plain Init
	return json.Marshal(struct {
		Type Type `json:"type"`
		plain
	}{e.EventType(), plain(e)})
}

// MarshalJSON implements json.Marshaler.
func (e ClassroomAdded) MarshalJSON() ([]byte, error) {
	type plain ClassroomAdded
	return json.Marshal(struct {
		Type Type `json:"type"`
		plain
	}{e.EventType(), plain(e)})
}

// MarshalJSON implements json.Marshaler.
func (e ClassroomUpdated) MarshalJSON() ([]byte, error) {
	type plain ClassroomUpdated
	return json.Marshal(struct {
		Type Type `json:"type"`
		plain
	}{e.EventType(), plain(e)})
}

// MarshalJSON implements json.Marshaler.
func (e ClassroomDeleted) MarshalJSON() ([]byte, error) {
	type plain ClassroomDeleted
	return json.Marshal(struct {
		Type Type `json:"type"`
		plain
	}{e.EventType(), plain(e)})
}

// MarshalJSON implements json.Marshaler.
func (e StudentUpdated) MarshalJSON() ([]byte, error) {
	type plain StudentUpdated
	return json.Marshal(struct {
		Type Type `json:"type"`
		plain
	}{e.EventType(), plain(e)})
}

// Encode serialises an event into its wire form.
func Encode(e Event) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", e.EventType(), err)
	}
	return data, nil
}

// Envelope is the minimal shape every message shares.
type Envelope struct {
	Type Type `json:"type"`
}

// Decode parses a wire message into its concrete event type.
//
// Malformed JSON returns the json error; a well-formed message with an
// unrecognised type returns [ErrUnknownType].
func Decode(data []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	var (
		e   Event
		err error
	)
	switch env.Type {
	case TypeInit:
		var v Init
		err = json.Unmarshal(data, &v)
		e = v
	case TypeClassroomAdded:
		var v ClassroomAdded
		err = json.Unmarshal(data, &v)
		e = v
	case TypeClassroomUpdated:
		var v ClassroomUpdated
		err = json.Unmarshal(data, &v)
		e = v
	case TypeClassroomDeleted:
		var v ClassroomDeleted
		err = json.Unmarshal(data, &v)
		e = v
	case TypeStudentUpdated:
		var v StudentUpdated
		err = json.Unmarshal(data, &v)
		e = v
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s event: %w", env.Type, err)
	}
	return e, nil
}
