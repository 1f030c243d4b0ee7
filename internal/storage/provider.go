// Package storage defines the vault file-system abstraction.
package storage

import "time"

// FileMeta is a lightweight representation returned by list operations.
type FileMeta struct {
	Path     string    `json:"path"`
	Checksum string    `json:"checksum"`
	ModTime  time.Time `json:"mod_time"`
}

// Provider is the interface for vault file operations. Paths are always
// relative to the vault root.
type Provider interface {
	// List returns metadata for every vault file under dir.
	List(dir string) ([]FileMeta, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Stat returns metadata for a single file.
	Stat(path string) (FileMeta, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Move renames oldPath to newPath.
	Move(oldPath, newPath string) error
}
