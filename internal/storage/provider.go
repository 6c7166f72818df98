// Package storage defines the vault file-system abstraction.
package storage

import (
	"path/filepath"
	"strings"

	"github.com/starford/vowpost/internal/models"
)

// Ext is the file extension of stored posts.
const Ext = ".html"

// Provider is the interface for vault file operations.
type Provider interface {
	// List returns metadata for every post under dir (relative to vault root).
	List(dir string) ([]models.DocumentMetadata, error)
	// Read returns the raw bytes of the file at path (relative to vault root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to vault root).
	Write(path string, content []byte) error
	// Delete removes the file at path (relative to vault root).
	Delete(path string) error
	// Move renames oldPath to newPath (both relative to vault root).
	Move(oldPath, newPath string) error
}

// IsDocument reports whether a vault-relative path names a post. Hidden
// files and anything inside a hidden directory never do; in-flight temp files
// are hidden.
func IsDocument(rel string) bool {
	if !strings.EqualFold(filepath.Ext(rel), Ext) {
		return false
	}
	for _, seg := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(seg, ".") && seg != "." {
			return false
		}
	}
	return true
}
