package util

import "github.com/google/uuid"

// NewID returns a random uuid, optionally namespaced as prefix_uuid.
func NewID(prefix string) string {
	id := uuid.NewString()
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}
