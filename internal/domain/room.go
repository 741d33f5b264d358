package domain

import "strings"

// Room groups items inside one project.
type Room struct {
	ID        string `json:"id,omitempty"`
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
	Level     string `json:"level,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

// normalized trims room text fields.
func (r Room) normalized() Room {
	r.ID = strings.TrimSpace(r.ID)
	r.ProjectID = strings.TrimSpace(r.ProjectID)
	r.Name = strings.TrimSpace(r.Name)
	r.Level = strings.TrimSpace(r.Level)
	r.Notes = strings.TrimSpace(r.Notes)
	return r
}

// Validate checks a normalized room.
func (r Room) Validate() error {
	if r.ProjectID == "" {
		return ErrInvalidID
	}
	if r.Name == "" {
		return ErrInvalidName
	}
	return nil
}

// ApplyPatch copies every set patch field onto the room.
func (r *Room) ApplyPatch(p RoomPatch) {
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Level != nil {
		r.Level = *p.Level
	}
	if p.Notes != nil {
		r.Notes = *p.Notes
	}
}

// RoomPatch carries the optional fields of a room update.
type RoomPatch struct {
	Name  *string `json:"name,omitempty"`
	Level *string `json:"level,omitempty"`
	Notes *string `json:"notes,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p RoomPatch) IsEmpty() bool {
	return p.Name == nil && p.Level == nil && p.Notes == nil
}

// Clone deep-copies every set field.
func (p RoomPatch) Clone() RoomPatch {
	return RoomPatch{
		Name:  clonePtr(p.Name),
		Level: clonePtr(p.Level),
		Notes: clonePtr(p.Notes),
	}
}

func (p RoomPatch) normalized() RoomPatch {
	return RoomPatch{
		Name:  trimPtr(p.Name),
		Level: trimPtr(p.Level),
		Notes: trimPtr(p.Notes),
	}
}

// Validate checks a normalized patch.
func (p RoomPatch) Validate() error {
	if p.IsEmpty() {
		return ErrEmptyPatch
	}
	if p.Name != nil && *p.Name == "" {
		return ErrInvalidName
	}
	return nil
}
