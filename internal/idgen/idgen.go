package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// ExportPrefix prefixes export session ids.
const ExportPrefix = "session-"

const (
	alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	length   = 12
)

// New returns prefix followed by a random URL-safe suffix.
func New(prefix string) (string, error) {
	id, err := nanoid.Generate(alphabet, length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}

// ExportID returns a fresh export session id.
func ExportID() (string, error) {
	return New(ExportPrefix)
}
