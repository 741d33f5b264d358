package domain

import (
	"slices"
	"strings"
)

// Kind identifies one mutation variant as "<resource>.<action>".
type Kind string

// Kind values. The set is closed; every value maps to exactly one Mutation type.
const (
	KindItemCreate Kind = "item.create"
	KindItemUpdate Kind = "item.update"
	KindItemDelete Kind = "item.delete"
	KindRoomCreate Kind = "room.create"
	KindRoomUpdate Kind = "room.update"
	KindRoomDelete Kind = "room.delete"
)

// validKinds stores all supported kinds in canonical order.
var validKinds = []Kind{
	KindItemCreate,
	KindItemUpdate,
	KindItemDelete,
	KindRoomCreate,
	KindRoomUpdate,
	KindRoomDelete,
}

// Action is the verb half of a Kind.
type Action string

// Action values.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Resource is the noun half of a Kind.
type Resource string

// Resource values.
const (
	ResourceItem Resource = "item"
	ResourceRoom Resource = "room"
)

// Kinds returns every supported kind.
func Kinds() []Kind {
	return append([]Kind(nil), validKinds...)
}

// NormalizeKind canonicalizes kind input.
func NormalizeKind(k Kind) Kind {
	return Kind(strings.TrimSpace(strings.ToLower(string(k))))
}

// ParseKind normalizes and validates raw kind input.
func ParseKind(raw string) (Kind, error) {
	k := NormalizeKind(Kind(raw))
	if !slices.Contains(validKinds, k) {
		return "", ErrInvalidKind
	}
	return k, nil
}

// Resource returns the resource the kind targets.
func (k Kind) Resource() Resource {
	resource, _, _ := strings.Cut(string(k), ".")
	return Resource(resource)
}

// Action returns the verb the kind performs.
func (k Kind) Action() Action {
	_, action, _ := strings.Cut(string(k), ".")
	return Action(action)
}
