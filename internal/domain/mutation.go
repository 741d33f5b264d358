package domain

import "strings"

// Mutation is one replayable change against a project resource.
//
// The variant set is sealed by the unexported methods. Dispatch goes through
// Accept, so adding a variant breaks every MutationHandler until it handles it.
type Mutation interface {
	Kind() Kind
	Project() string
	Validate() error
	Accept(MutationHandler) error
	normalized() Mutation
	clone() Mutation
}

// MutationHandler handles every Mutation variant.
type MutationHandler interface {
	HandleCreateItem(CreateItem) error
	HandleUpdateItem(UpdateItem) error
	HandleDeleteItem(DeleteItem) error
	HandleCreateRoom(CreateRoom) error
	HandleUpdateRoom(UpdateRoom) error
	HandleDeleteRoom(DeleteRoom) error
}

// Normalize returns a trimmed, defaulted copy of m.
func Normalize(m Mutation) Mutation {
	if m == nil {
		return nil
	}
	return m.normalized()
}

// CloneMutation returns a deep copy of m.
func CloneMutation(m Mutation) Mutation {
	if m == nil {
		return nil
	}
	return m.clone()
}

// CreateItem adds a new item to a project.
type CreateItem struct {
	Item Item
}

func (CreateItem) Kind() Kind                       { return KindItemCreate }
func (m CreateItem) Project() string                { return m.Item.ProjectID }
func (m CreateItem) Validate() error                { return m.Item.Validate() }
func (m CreateItem) Accept(v MutationHandler) error { return v.HandleCreateItem(m) }
func (m CreateItem) normalized() Mutation           { return CreateItem{Item: m.Item.normalized()} }
func (m CreateItem) clone() Mutation                { return m }

// UpdateItem patches one existing item. The patch fields sit beside the ids on the wire.
type UpdateItem struct {
	ProjectID string `json:"project_id"`
	ItemID    string `json:"id"`
	ItemPatch
}

func (UpdateItem) Kind() Kind                       { return KindItemUpdate }
func (m UpdateItem) Project() string                { return m.ProjectID }
func (m UpdateItem) Accept(v MutationHandler) error { return v.HandleUpdateItem(m) }

// Validate checks ids and the patch.
func (m UpdateItem) Validate() error {
	if m.ProjectID == "" || m.ItemID == "" {
		return ErrInvalidID
	}
	return m.ItemPatch.Validate()
}

func (m UpdateItem) normalized() Mutation {
	return UpdateItem{
		ProjectID: strings.TrimSpace(m.ProjectID),
		ItemID:    strings.TrimSpace(m.ItemID),
		ItemPatch: m.ItemPatch.normalized(),
	}
}

func (m UpdateItem) clone() Mutation {
	m.ItemPatch = m.ItemPatch.Clone()
	return m
}

// DeleteItem removes one item.
type DeleteItem struct {
	ProjectID string `json:"project_id"`
	ItemID    string `json:"id"`
}

func (DeleteItem) Kind() Kind                       { return KindItemDelete }
func (m DeleteItem) Project() string                { return m.ProjectID }
func (m DeleteItem) Accept(v MutationHandler) error { return v.HandleDeleteItem(m) }
func (m DeleteItem) clone() Mutation                { return m }

// Validate checks ids.
func (m DeleteItem) Validate() error {
	if m.ProjectID == "" || m.ItemID == "" {
		return ErrInvalidID
	}
	return nil
}

func (m DeleteItem) normalized() Mutation {
	return DeleteItem{ProjectID: strings.TrimSpace(m.ProjectID), ItemID: strings.TrimSpace(m.ItemID)}
}

// CreateRoom adds a new room to a project.
type CreateRoom struct {
	Room Room
}

func (CreateRoom) Kind() Kind                       { return KindRoomCreate }
func (m CreateRoom) Project() string                { return m.Room.ProjectID }
func (m CreateRoom) Validate() error                { return m.Room.Validate() }
func (m CreateRoom) Accept(v MutationHandler) error { return v.HandleCreateRoom(m) }
func (m CreateRoom) normalized() Mutation           { return CreateRoom{Room: m.Room.normalized()} }
func (m CreateRoom) clone() Mutation                { return m }

// UpdateRoom patches one existing room.
type UpdateRoom struct {
	ProjectID string `json:"project_id"`
	RoomID    string `json:"id"`
	RoomPatch
}

func (UpdateRoom) Kind() Kind                       { return KindRoomUpdate }
func (m UpdateRoom) Project() string                { return m.ProjectID }
func (m UpdateRoom) Accept(v MutationHandler) error { return v.HandleUpdateRoom(m) }

// Validate checks ids and the patch.
func (m UpdateRoom) Validate() error {
	if m.ProjectID == "" || m.RoomID == "" {
		return ErrInvalidID
	}
	return m.RoomPatch.Validate()
}

func (m UpdateRoom) normalized() Mutation {
	return UpdateRoom{
		ProjectID: strings.TrimSpace(m.ProjectID),
		RoomID:    strings.TrimSpace(m.RoomID),
		RoomPatch: m.RoomPatch.normalized(),
	}
}

func (m UpdateRoom) clone() Mutation {
	m.RoomPatch = m.RoomPatch.Clone()
	return m
}

// DeleteRoom removes one room.
type DeleteRoom struct {
	ProjectID string `json:"project_id"`
	RoomID    string `json:"id"`
}

func (DeleteRoom) Kind() Kind                       { return KindRoomDelete }
func (m DeleteRoom) Project() string                { return m.ProjectID }
func (m DeleteRoom) Accept(v MutationHandler) error { return v.HandleDeleteRoom(m) }
func (m DeleteRoom) clone() Mutation                { return m }

// Validate checks ids.
func (m DeleteRoom) Validate() error {
	if m.ProjectID == "" || m.RoomID == "" {
		return ErrInvalidID
	}
	return nil
}

func (m DeleteRoom) normalized() Mutation {
	return DeleteRoom{ProjectID: strings.TrimSpace(m.ProjectID), RoomID: strings.TrimSpace(m.RoomID)}
}
