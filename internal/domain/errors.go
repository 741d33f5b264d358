package domain

import "errors"

var (
	ErrInvalidID       = errors.New("invalid id")
	ErrInvalidName     = errors.New("invalid name")
	ErrInvalidKind     = errors.New("invalid mutation kind")
	ErrInvalidPayload  = errors.New("invalid mutation payload")
	ErrInvalidCategory = errors.New("invalid item category")
	ErrInvalidStatus   = errors.New("invalid item status")
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrInvalidCost     = errors.New("invalid unit cost")
	ErrInvalidURL      = errors.New("invalid product url")
	ErrEmptyPatch      = errors.New("patch sets no fields")
)
