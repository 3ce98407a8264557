// Package repository defines the record store collaborators the kernel
// needs, with MongoDB implementations for production and in-memory
// implementations for tests and framework-agnostic embedding.
package repository

import "errors"

var (
	// ErrNotFound is returned when no record matches a lookup.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when a unique constraint is violated.
	ErrDuplicate = errors.New("record already exists")
)
