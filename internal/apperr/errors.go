// Package apperr defines the domain errors shared by the service, API and
// MCP layers. Callers match them with errors.Is.
package apperr

import "errors"

var (
	// ErrNotFound means no post exists at the requested path.
	ErrNotFound = errors.New("not found")
	// ErrConflict means an If-Match checksum no longer matches the stored post.
	ErrConflict = errors.New("conflict")
	// ErrAlreadyExists is returned by create and move when the target is taken.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidFormat covers unparseable markup, unknown input formats and
	// paths without a post extension.
	ErrInvalidFormat = errors.New("invalid format")
	// ErrInvalidPath means a path resolves outside the vault root.
	ErrInvalidPath = errors.New("invalid path")
)
