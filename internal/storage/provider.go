// Package storage defines the vault file-system abstraction.
//
// Paths are vault-relative and slash-separated. The provider has no delete
// operation: notes, once written, are owned by the user.
package storage

import "time"

// NoteMetadata is a lightweight representation returned by List.
type NoteMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Provider is the interface for vault file operations.
type Provider interface {
	// List returns metadata for every .md file under dir.
	List(dir string) ([]NoteMetadata, error)
	// Read returns the raw bytes of the file at path. A missing file yields
	// an error matching fs.ErrNotExist.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
	// Root is the absolute vault directory.
	Root() string
}
