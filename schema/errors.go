package schema

import "errors"

var (
	// ErrInvalidRequest indicates a malformed request payload.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidIndex indicates an item index outside [0, totalItems).
	ErrInvalidIndex = errors.New("invalid item index")
	// ErrItemNotFound indicates the item slot for a valid index is empty.
	ErrItemNotFound = errors.New("item not found")
	// ErrInvalidCategory indicates a category outside 1..len(categories).
	ErrInvalidCategory = errors.New("invalid category")
	// ErrEmptyComment indicates a comment that is empty after trimming.
	ErrEmptyComment = errors.New("comment must not be empty")
	// ErrInvalidDirection indicates an unknown scan direction.
	ErrInvalidDirection = errors.New("invalid direction")
	// ErrMalformedSession indicates a persisted session failed shape validation.
	ErrMalformedSession = errors.New("malformed persisted session")
	// ErrInvalidConfig indicates an invalid run configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
)
