package domain

import (
	"slices"
	"strings"
	"time"
)

// LocalIDPrefix marks resources created offline that have no remote id yet.
const LocalIDPrefix = "local-"

// ProjectState is the full known state of one project.
type ProjectState struct {
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
	Client    string `json:"client,omitempty"`
	Rooms     []Room `json:"rooms"`
	Items     []Item `json:"items"`
}

// Clone returns a copy that shares no slices with s.
func (s ProjectState) Clone() ProjectState {
	s.Rooms = append([]Room(nil), s.Rooms...)
	s.Items = append([]Item(nil), s.Items...)
	return s
}

// Item returns the item with id, when present.
func (s ProjectState) Item(id string) (Item, bool) {
	idx := slices.IndexFunc(s.Items, func(it Item) bool { return it.ID == id })
	if idx < 0 {
		return Item{}, false
	}
	return s.Items[idx], true
}

// Room returns the room with id, when present.
func (s ProjectState) Room(id string) (Room, bool) {
	idx := slices.IndexFunc(s.Rooms, func(r Room) bool { return r.ID == id })
	if idx < 0 {
		return Room{}, false
	}
	return s.Rooms[idx], true
}

// TotalCostCents sums quantity times unit cost over every item.
func (s ProjectState) TotalCostCents() int64 {
	var total int64
	for _, it := range s.Items {
		total += int64(it.Quantity) * it.UnitCostCents
	}
	return total
}

// WithPending returns a copy of s with pending records for this project applied in order.
// Records that target missing resources are skipped.
func (s ProjectState) WithPending(records []Record) ProjectState {
	overlay := &pendingOverlay{state: s.Clone()}
	for _, rec := range records {
		if rec.Mutation == nil || rec.ProjectID() != s.ProjectID {
			continue
		}
		overlay.recordID = rec.ID
		_ = rec.Mutation.Accept(overlay)
	}
	return overlay.state
}

// pendingOverlay applies mutations to an in-memory project copy.
type pendingOverlay struct {
	state    ProjectState
	recordID string
}

func (o *pendingOverlay) HandleCreateItem(m CreateItem) error {
	item := m.Item
	if strings.TrimSpace(item.ID) == "" {
		item.ID = LocalIDPrefix + o.recordID
	}
	o.state.Items = append(o.state.Items, item)
	return nil
}

func (o *pendingOverlay) HandleUpdateItem(m UpdateItem) error {
	for i := range o.state.Items {
		if o.state.Items[i].ID == m.ItemID {
			o.state.Items[i].ApplyPatch(m.ItemPatch)
			return nil
		}
	}
	return ErrInvalidID
}

func (o *pendingOverlay) HandleDeleteItem(m DeleteItem) error {
	o.state.Items = slices.DeleteFunc(o.state.Items, func(it Item) bool { return it.ID == m.ItemID })
	return nil
}

func (o *pendingOverlay) HandleCreateRoom(m CreateRoom) error {
	room := m.Room
	if strings.TrimSpace(room.ID) == "" {
		room.ID = LocalIDPrefix + o.recordID
	}
	o.state.Rooms = append(o.state.Rooms, room)
	return nil
}

func (o *pendingOverlay) HandleUpdateRoom(m UpdateRoom) error {
	for i := range o.state.Rooms {
		if o.state.Rooms[i].ID == m.RoomID {
			o.state.Rooms[i].ApplyPatch(m.RoomPatch)
			return nil
		}
	}
	return ErrInvalidID
}

func (o *pendingOverlay) HandleDeleteRoom(m DeleteRoom) error {
	o.state.Rooms = slices.DeleteFunc(o.state.Rooms, func(r Room) bool { return r.ID == m.RoomID })
	return nil
}

// ProjectSnapshot is the last-known-good project state and its fetch time.
type ProjectSnapshot struct {
	State     ProjectState `json:"state"`
	FetchedAt time.Time    `json:"fetched_at"`
}

// Age returns how old the snapshot is at now.
func (s ProjectSnapshot) Age(now time.Time) time.Duration {
	if s.FetchedAt.IsZero() {
		return 0
	}
	return now.Sub(s.FetchedAt)
}
