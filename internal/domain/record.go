package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Record is one enqueued mutation awaiting replay.
type Record struct {
	ID         string
	Mutation   Mutation
	EnqueuedAt time.Time
}

// NewRecord normalizes and validates a mutation and wraps it in a record.
func NewRecord(id string, m Mutation, now time.Time) (Record, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Record{}, ErrInvalidID
	}
	if m == nil {
		return Record{}, ErrInvalidPayload
	}
	m = Normalize(m)
	if err := m.Validate(); err != nil {
		return Record{}, err
	}
	return Record{ID: id, Mutation: m, EnqueuedAt: now.UTC()}, nil
}

// Kind returns the kind of the wrapped mutation.
func (r Record) Kind() Kind {
	if r.Mutation == nil {
		return ""
	}
	return r.Mutation.Kind()
}

// ProjectID returns the project the wrapped mutation targets.
func (r Record) ProjectID() string {
	if r.Mutation == nil {
		return ""
	}
	return r.Mutation.Project()
}

// Clone returns a deep copy that shares no mutable state with r.
func (r Record) Clone() Record {
	r.Mutation = CloneMutation(r.Mutation)
	return r
}

// recordEnvelope is the persisted and wire form of a Record.
type recordEnvelope struct {
	ID         string          `json:"id"`
	Kind       Kind            `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// MarshalJSON encodes the record as {id, kind, payload, enqueued_at}.
func (r Record) MarshalJSON() ([]byte, error) {
	payload, err := EncodeMutation(r.Mutation)
	if err != nil {
		return nil, err
	}
	return json.Marshal(recordEnvelope{
		ID:         r.ID,
		Kind:       r.Mutation.Kind(),
		Payload:    payload,
		EnqueuedAt: r.EnqueuedAt.UTC(),
	})
}

// UnmarshalJSON decodes the envelope and dispatches the payload by kind.
func (r *Record) UnmarshalJSON(data []byte) error {
	var env recordEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	m, err := DecodeMutation(env.Kind, env.Payload)
	if err != nil {
		return fmt.Errorf("decode record %q: %w", env.ID, err)
	}
	*r = Record{ID: env.ID, Mutation: m, EnqueuedAt: env.EnqueuedAt.UTC()}
	return nil
}

// EncodeMutation serializes the payload of one mutation.
func EncodeMutation(m Mutation) (json.RawMessage, error) {
	if m == nil {
		return nil, ErrInvalidPayload
	}
	var (
		out []byte
		err error
	)
	switch v := m.(type) {
	case CreateItem:
		out, err = json.Marshal(v.Item)
	case CreateRoom:
		out, err = json.Marshal(v.Room)
	default:
		out, err = json.Marshal(v)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return out, nil
}

// DecodeMutation rebuilds a mutation from its kind and payload.
func DecodeMutation(kind Kind, payload []byte) (Mutation, error) {
	kind, err := ParseKind(string(kind))
	if err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		return nil, ErrInvalidPayload
	}
	var m Mutation
	switch kind {
	case KindItemCreate:
		var item Item
		err = json.Unmarshal(payload, &item)
		m = CreateItem{Item: item}
	case KindItemUpdate:
		var v UpdateItem
		err = json.Unmarshal(payload, &v)
		m = v
	case KindItemDelete:
		var v DeleteItem
		err = json.Unmarshal(payload, &v)
		m = v
	case KindRoomCreate:
		var room Room
		err = json.Unmarshal(payload, &room)
		m = CreateRoom{Room: room}
	case KindRoomUpdate:
		var v UpdateRoom
		err = json.Unmarshal(payload, &v)
		m = v
	case KindRoomDelete:
		var v DeleteRoom
		err = json.Unmarshal(payload, &v)
		m = v
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return m, nil
}

// Ack is the remote confirmation of one applied record.
type Ack struct {
	RecordID  string    `json:"record_id"`
	RemoteID  string    `json:"remote_id,omitempty"`
	AppliedAt time.Time `json:"applied_at"`
}
